package rpchttp

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

//chunkReader hands out its script one slice per Read call
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func pduOfSize(size int, fill byte) []byte {
	w := &pduWriter{}
	w.header(DCERPC_PKT_RESPONSE, PFC_FIRST_FRAG|PFC_LAST_FRAG, 0, 1)
	for w.Len() < size {
		w.Uint8(fill)
	}
	w.PatchUint16(8, uint16(size))
	return w.buf
}

func TestReaderChannelSplitPDU(t *testing.T) {
	pdu := pduOfSize(40, 0xaa)
	r := &chunkReader{chunks: [][]byte{pdu[:7], pdu[7:25], pdu[25:]}}
	ch := NewReaderChannel(r)

	got, err := ch.ReadPDU()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pdu) {
		t.Errorf("reassembled pdu differs: % X", got)
	}
}

func TestReaderChannelCoalescedPDUs(t *testing.T) {
	first := pduOfSize(24, 0x11)
	second := pduOfSize(32, 0x22)
	r := &chunkReader{chunks: [][]byte{append(append([]byte{}, first...), second...)}}
	ch := NewReaderChannel(r)

	got, err := ch.ReadPDU()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("first pdu differs: % X", got)
	}
	got, err = ch.ReadPDU()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, second) {
		t.Errorf("second pdu differs: % X", got)
	}
}

func TestReaderChannelEOFMidPDU(t *testing.T) {
	pdu := pduOfSize(40, 0xaa)
	r := &chunkReader{chunks: [][]byte{pdu[:20]}}
	ch := NewReaderChannel(r)

	if _, err := ch.ReadPDU(); !errors.Is(err, ErrChannelIO) {
		t.Errorf("expected ErrChannelIO, got %v", err)
	}
}

func TestReaderChannelClosed(t *testing.T) {
	ch := NewReaderChannel(&chunkReader{})
	if _, err := ch.ReadPDU(); !errors.Is(err, ErrChannelIO) {
		t.Errorf("expected ErrChannelIO, got %v", err)
	}
}

func TestReaderChannelBadFragLength(t *testing.T) {
	raw := pduOfSize(24, 0x00)
	copy(raw[8:10], []byte{0x02, 0x00}) //frag_length 2, below the common header
	ch := NewReaderChannel(&chunkReader{chunks: [][]byte{raw}})
	if _, err := ch.ReadPDU(); !errors.Is(err, ErrMalformedPdu) {
		t.Errorf("expected ErrMalformedPdu, got %v", err)
	}
}

//shortWriter accepts fewer bytes than offered
type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	if len(p) > 4 {
		return 4, nil
	}
	return len(p), nil
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("reset by peer")
}

func TestWriterChannel(t *testing.T) {
	var buf bytes.Buffer
	ch := NewWriterChannel(&buf)
	pdu := pduOfSize(24, 0x33)
	if err := ch.WritePDU(pdu); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), pdu) {
		t.Errorf("written bytes differ")
	}
}

func TestWriterChannelShortWrite(t *testing.T) {
	ch := NewWriterChannel(shortWriter{})
	if err := ch.WritePDU(pduOfSize(24, 0x00)); !errors.Is(err, ErrChannelIO) {
		t.Errorf("expected ErrChannelIO, got %v", err)
	}
}

func TestWriterChannelFailure(t *testing.T) {
	ch := NewWriterChannel(failWriter{})
	if err := ch.WritePDU(pduOfSize(24, 0x00)); !errors.Is(err, ErrChannelIO) {
		t.Errorf("expected ErrChannelIO, got %v", err)
	}
}
