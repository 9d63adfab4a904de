package rpchttp

import (
	"fmt"

	"github.com/sensepost/tsgw/utils"
)

//ndrDrep little-endian NDR, ASCII, IEEE
var ndrDrep = []byte{0x10, 0x00, 0x00, 0x00}

//SyntaxID pairs an interface UUID (wire order) with its version
type SyntaxID struct {
	UUID    []byte //16 bytes
	Version uint32
}

//PresentationContext a client-proposed (abstract, transfer) pairing
type PresentationContext struct {
	ContextID        uint16
	AbstractSyntax   SyntaxID
	TransferSyntaxes []SyntaxID
}

//AuthVerifier the sec_trailer carried by authenticated PDUs
type AuthVerifier struct {
	AuthType      uint8
	AuthLevel     uint8
	AuthPadLength uint8
	AuthContextID uint32
	AuthValue     []byte
}

//BindPDU the SECURE_BIND request
type BindPDU struct {
	PFCFlags     uint8
	CallID       uint32
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	Contexts     []PresentationContext
	Auth         AuthVerifier
}

//Auth3PDU the third leg of the three-leg authentication exchange
type Auth3PDU struct {
	PFCFlags    uint8
	CallID      uint32
	MaxXmitFrag uint16
	MaxRecvFrag uint16
	Auth        AuthVerifier
}

//BindAck the fields of a SECURE_BIND_ACK the client acts on
type BindAck struct {
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
	AuthValue    []byte
}

//pduWriter appends little-endian fields to a growing buffer and tracks
//the current offset so trailers land 4-byte aligned
type pduWriter struct {
	buf []byte
}

func (w *pduWriter) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *pduWriter) Uint16(v uint16) {
	w.buf = append(w.buf, utils.EncodeNum(v)...)
}

func (w *pduWriter) Uint32(v uint32) {
	w.buf = append(w.buf, utils.EncodeNum(v)...)
}

func (w *pduWriter) Bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *pduWriter) Syntax(s SyntaxID) {
	w.Bytes(s.UUID)
	w.Uint32(s.Version)
}

//Align pads with zero bytes to an n byte boundary and returns the pad count
func (w *pduWriter) Align(n int) int {
	pad := (n - len(w.buf)%n) % n
	for i := 0; i < pad; i++ {
		w.buf = append(w.buf, 0x00)
	}
	return pad
}

func (w *pduWriter) Len() int {
	return len(w.buf)
}

//PatchUint16 overwrites a previously written field, used for frag_length
func (w *pduWriter) PatchUint16(off int, v uint16) {
	copy(w.buf[off:off+2], utils.EncodeNum(v))
}

//header writes the 16 byte common PDU header with frag_length zeroed,
//returning the offset of frag_length for later patching
func (w *pduWriter) header(ptype uint8, pfcFlags uint8, authLen uint16, callID uint32) int {
	w.Uint8(0x05)
	w.Uint8(0x00)
	w.Uint8(ptype)
	w.Uint8(pfcFlags)
	w.Bytes(ndrDrep)
	fragOff := w.Len()
	w.Uint16(0)
	w.Uint16(authLen)
	w.Uint32(callID)
	return fragOff
}

//authTrailer writes pad bytes and the 8 byte sec_trailer plus auth_value
func (w *pduWriter) authTrailer(auth *AuthVerifier) {
	pad := w.Align(4)
	auth.AuthPadLength = uint8(pad)
	w.Uint8(auth.AuthType)
	w.Uint8(auth.AuthLevel)
	w.Uint8(auth.AuthPadLength)
	w.Uint8(0x00) //auth_reserved
	w.Uint32(auth.AuthContextID)
	w.Bytes(auth.AuthValue)
}

//Marshal serializes the bind PDU. The returned buffer length always
//equals the frag_length written into the header.
func (pdu *BindPDU) Marshal() ([]byte, error) {
	w := &pduWriter{}
	fragOff := w.header(DCERPC_PKT_BIND, pdu.PFCFlags, uint16(len(pdu.Auth.AuthValue)), pdu.CallID)
	w.Uint16(pdu.MaxXmitFrag)
	w.Uint16(pdu.MaxRecvFrag)
	w.Uint32(pdu.AssocGroupID)
	w.Uint8(uint8(len(pdu.Contexts)))
	w.Uint8(0x00)  //reserved
	w.Uint16(0x00) //reserved2
	for _, ctx := range pdu.Contexts {
		w.Uint16(ctx.ContextID)
		w.Uint8(uint8(len(ctx.TransferSyntaxes)))
		w.Uint8(0x00) //reserved
		w.Syntax(ctx.AbstractSyntax)
		for _, ts := range ctx.TransferSyntaxes {
			w.Syntax(ts)
		}
	}
	w.authTrailer(&pdu.Auth)
	if w.Len() > 0xffff {
		return nil, fmt.Errorf("%w: bind is %d bytes", ErrFragTooLarge, w.Len())
	}
	w.PatchUint16(fragOff, uint16(w.Len()))
	return w.buf, nil
}

//Marshal serializes the rpc_auth_3 PDU. No assoc_group_id and no
//context list, just the fixed prefix and the auth trailer.
func (pdu *Auth3PDU) Marshal() ([]byte, error) {
	w := &pduWriter{}
	fragOff := w.header(DCERPC_PKT_AUTH_3, pdu.PFCFlags, uint16(len(pdu.Auth.AuthValue)), pdu.CallID)
	w.Uint16(pdu.MaxXmitFrag)
	w.Uint16(pdu.MaxRecvFrag)
	w.authTrailer(&pdu.Auth)
	if w.Len() > 0xffff {
		return nil, fmt.Errorf("%w: auth3 is %d bytes", ErrFragTooLarge, w.Len())
	}
	w.PatchUint16(fragOff, uint16(w.Len()))
	return w.buf, nil
}

//DecodeBindAck parses the fields of a bind_ack the engine needs: the
//two fragment sizes from the fixed prefix, the association group id and
//the trailing auth_value blob of auth_length bytes.
func DecodeBindAck(buff []byte) (*BindAck, error) {
	if len(buff) < 24 {
		return nil, fmt.Errorf("%w: bind_ack shorter than fixed prefix", ErrMalformedPdu)
	}
	if buff[2] != DCERPC_PKT_BIND_ACK {
		return nil, fmt.Errorf("%w: expected bind_ack, got ptype %d", ErrMalformedPdu, buff[2])
	}
	fragLen, pos := utils.ReadUint16(8, buff)
	authLen, _ := utils.ReadUint16(pos, buff)
	if int(fragLen) > len(buff) {
		return nil, fmt.Errorf("%w: frag_length %d exceeds buffer %d", ErrMalformedPdu, fragLen, len(buff))
	}
	if fragLen < 24 {
		return nil, fmt.Errorf("%w: frag_length %d shorter than fixed prefix", ErrMalformedPdu, fragLen)
	}
	if int(authLen) > int(fragLen)-24 {
		return nil, fmt.Errorf("%w: auth_length %d does not fit frag_length %d", ErrMalformedPdu, authLen, fragLen)
	}

	ack := &BindAck{}
	pos = 16
	ack.MaxXmitFrag, pos = utils.ReadUint16(pos, buff)
	ack.MaxRecvFrag, pos = utils.ReadUint16(pos, buff)
	ack.AssocGroupID, _ = utils.ReadUint32(pos, buff)
	ack.AuthValue, _ = utils.ReadBytes(int(fragLen)-int(authLen), int(authLen), buff)
	return ack, nil
}

//Marshal produces a well formed bind_ack frame from the acted-on
//fields, filling the secondary address and result list with the values
//a gateway returns for the two offered contexts.
func (ack *BindAck) Marshal() []byte {
	secAddr := append([]byte("135"), 0x00)

	w := &pduWriter{}
	fragOff := w.header(DCERPC_PKT_BIND_ACK, PFC_FIRST_FRAG|PFC_LAST_FRAG|PFC_SUPPORT_HEADER_SIGN|PFC_CONC_MPX,
		uint16(len(ack.AuthValue)), BindCallID)
	w.Uint16(ack.MaxXmitFrag)
	w.Uint16(ack.MaxRecvFrag)
	w.Uint32(ack.AssocGroupID)
	w.Uint16(uint16(len(secAddr)))
	w.Bytes(secAddr)
	w.Align(4)
	//result list: NDR accepted, BTFN negotiated
	w.Uint8(2)
	w.Uint8(0x00)
	w.Uint16(0x00)
	w.Uint16(0) //acceptance
	w.Uint16(0)
	w.Syntax(SyntaxID{UUID: NDRUUID, Version: NDRSyntaxVersion})
	w.Uint16(3) //negotiate_ack
	w.Uint16(3)
	w.Syntax(SyntaxID{UUID: make([]byte, 16), Version: 0})
	if len(ack.AuthValue) > 0 {
		auth := AuthVerifier{
			AuthType:  RPC_C_AUTHN_WINNT,
			AuthLevel: RPC_C_AUTHN_LEVEL_PKT_INTEGRITY,
		}
		auth.AuthValue = ack.AuthValue
		w.authTrailer(&auth)
	}
	w.PatchUint16(fragOff, uint16(w.Len()))
	return w.buf
}
