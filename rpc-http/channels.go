package rpchttp

import (
	"fmt"
	"io"

	"github.com/sensepost/tsgw/utils"
)

//InChannel carries PDUs from the client to the gateway. Implementations
//wrap the RPC_IN_DATA request body.
type InChannel interface {
	WritePDU(pdu []byte) error
}

//OutChannel yields PDUs the gateway sends back on the RPC_OUT_DATA leg
type OutChannel interface {
	ReadPDU() ([]byte, error)
}

//writerChannel adapts any io.Writer into an InChannel. A short write is
//a channel failure, there is no partial-PDU recovery.
type writerChannel struct {
	w io.Writer
}

//NewWriterChannel wraps w as an InChannel
func NewWriterChannel(w io.Writer) InChannel {
	return &writerChannel{w: w}
}

func (c *writerChannel) WritePDU(pdu []byte) error {
	n, err := c.w.Write(pdu)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrChannelIO, err)
	}
	if n != len(pdu) {
		return fmt.Errorf("%w: short write, %d of %d bytes", ErrChannelIO, n, len(pdu))
	}
	return nil
}

//readerChannel adapts any io.Reader into an OutChannel, reassembling
//whole PDUs from an arbitrarily chunked byte stream
type readerChannel struct {
	r       io.Reader
	pending []byte
}

//NewReaderChannel wraps r as an OutChannel
func NewReaderChannel(r io.Reader) OutChannel {
	return &readerChannel{r: r}
}

//ReadPDU accumulates bytes until a whole PDU is buffered, then returns
//exactly frag_length bytes. Anything past the fragment stays buffered
//for the next call.
func (c *readerChannel) ReadPDU() ([]byte, error) {
	for {
		if len(c.pending) >= 10 {
			fragLen, _ := utils.ReadUint16(8, c.pending)
			if fragLen < 16 {
				return nil, fmt.Errorf("%w: frag_length %d shorter than common header", ErrMalformedPdu, fragLen)
			}
			if len(c.pending) >= int(fragLen) {
				pdu := make([]byte, fragLen)
				copy(pdu, c.pending[:fragLen])
				c.pending = c.pending[fragLen:]
				return pdu, nil
			}
		}
		chunk := make([]byte, 4096)
		n, err := c.r.Read(chunk)
		if n > 0 {
			c.pending = append(c.pending, chunk[:n]...)
			continue
		}
		if err != nil {
			if err == io.EOF && len(c.pending) == 0 {
				return nil, fmt.Errorf("%w: connection closed", ErrChannelIO)
			}
			if err == io.EOF {
				return nil, fmt.Errorf("%w: connection closed mid-pdu with %d bytes buffered", ErrChannelIO, len(c.pending))
			}
			return nil, fmt.Errorf("%w: %s", ErrChannelIO, err)
		}
	}
}
