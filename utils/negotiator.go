package utils

//Forked from https://github.com/vadimi/go-http-ntlm
//All credits go to them
//Used under MIT License -- see LICENSE for details

const (
	negotiateUnicode    = 0x0001 // Text strings are in unicode
	negotiateOEM        = 0x0002 // Text strings are in OEM
	requestTarget       = 0x0004 // Server return its auth realm
	negotiateSign       = 0x0010 // Request signature capability
	negotiateSeal       = 0x0020 // Request confidentiality
	negotiateNTLM       = 0x0200 // NTLM authentication
	negotiateAlwaysSign = 0x8000 // Sign for all security levels
)

//NegotiateSP builds a raw NTLM type-1 message. Some gateway frontends
//reject the one go-ntlm generates, so the flag set here is fixed.
func NegotiateSP() []byte {
	ret := make([]byte, 40)
	flags := negotiateAlwaysSign | negotiateNTLM | requestTarget | negotiateOEM | negotiateUnicode

	copy(ret, []byte("NTLMSSP\x00")) // protocol
	put32(ret[8:], 1)                // type
	put32(ret[12:], uint32(flags))
	put16(ret[14:], 0xe208)
	put32(ret[32:], 0x2800000a) // version: 10.0 build 10240
	put32(ret[36:], 0x0f000000) // NTLMSSP revision
	return ret
}
