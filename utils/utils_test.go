package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestGUIDToByteArray(t *testing.T) {
	tests := []struct {
		name string
		guid string
		want []byte
	}{
		{
			name: "documented example",
			guid: "35918bc9-196d-40ea-9779-889d79b753f0",
			want: []byte{0xC9, 0x8B, 0x91, 0x35, 0x6D, 0x19, 0xEA, 0x40, 0x97, 0x79, 0x88, 0x9D, 0x79, 0xB7, 0x53, 0xF0},
		},
		{
			name: "gateway interface",
			guid: "44e265dd-7daf-42cd-8560-3cdb6e7a2729",
			want: []byte{0xDD, 0x65, 0xE2, 0x44, 0xAF, 0x7D, 0xCD, 0x42, 0x85, 0x60, 0x3C, 0xDB, 0x6E, 0x7A, 0x27, 0x29},
		},
		{
			name: "ndr transfer syntax",
			guid: "8a885d04-1ceb-11c9-9fe8-08002b104860",
			want: []byte{0x04, 0x5D, 0x88, 0x8A, 0xEB, 0x1C, 0xC9, 0x11, 0x9F, 0xE8, 0x08, 0x00, 0x2B, 0x10, 0x48, 0x60},
		},
		{
			name: "braced form",
			guid: "{35918bc9-196d-40ea-9779-889d79b753f0}",
			want: []byte{0xC9, 0x8B, 0x91, 0x35, 0x6D, 0x19, 0xEA, 0x40, 0x97, 0x79, 0x88, 0x9D, 0x79, 0xB7, 0x53, 0xF0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GUIDToByteArray(tt.guid)
			if err != nil {
				t.Fatalf("GUIDToByteArray(%q) error: %v", tt.guid, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("GUIDToByteArray(%q) = % X, want % X", tt.guid, got, tt.want)
			}
		})
	}
}

func TestGUIDToByteArrayInvalid(t *testing.T) {
	for _, guid := range []string{"", "not-a-guid", "35918bc9-196d-40ea-9779", "zz918bc9-196d-40ea-9779-889d79b753f0"} {
		if _, err := GUIDToByteArray(guid); err == nil {
			t.Errorf("GUIDToByteArray(%q) expected error", guid)
		}
	}
}

func TestEncodeNum(t *testing.T) {
	if got := EncodeNum(uint16(0x0ff8)); !bytes.Equal(got, []byte{0xf8, 0x0f}) {
		t.Errorf("EncodeNum(uint16) = % X", got)
	}
	if got := EncodeNum(uint32(0x11223344)); !bytes.Equal(got, []byte{0x44, 0x33, 0x22, 0x11}) {
		t.Errorf("EncodeNum(uint32) = % X", got)
	}
}

func TestReadHelpers(t *testing.T) {
	buff := []byte{0x44, 0x33, 0x22, 0x11, 0xf8, 0x0f, 0x07, 'h', 'i', 0x00}

	v32, pos := ReadUint32(0, buff)
	if v32 != 0x11223344 || pos != 4 {
		t.Errorf("ReadUint32 = %x, %d", v32, pos)
	}
	v16, pos := ReadUint16(pos, buff)
	if v16 != 0x0ff8 || pos != 6 {
		t.Errorf("ReadUint16 = %x, %d", v16, pos)
	}
	v8, pos := ReadUint8(pos, buff)
	if v8 != 0x07 || pos != 7 {
		t.Errorf("ReadUint8 = %x, %d", v8, pos)
	}
	str, pos := ReadASCIIString(pos, buff)
	if !bytes.Equal(str, []byte{'h', 'i', 0x00}) || pos != 10 {
		t.Errorf("ReadASCIIString = % X, %d", str, pos)
	}
}

func TestReadBytes(t *testing.T) {
	buff := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	b, pos := ReadBytes(1, 3, buff)
	if !bytes.Equal(b, []byte{0x02, 0x03, 0x04}) || pos != 4 {
		t.Errorf("ReadBytes = % X, %d", b, pos)
	}
}

func TestCookieGen(t *testing.T) {
	a := CookieGen()
	b := CookieGen()
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("cookie lengths %d and %d, want 16", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Error("two generated cookies are identical")
	}
}

func TestBodyToBytes(t *testing.T) {
	type inner struct {
		A uint16
		B []byte
	}
	type outer struct {
		V  uint8
		N  uint32
		In inner
	}
	got := BodyToBytes(outer{V: 0x05, N: 0x01020304, In: inner{A: 0xbeef, B: []byte{0xaa, 0xbb}}})
	want := []byte{0x05, 0x04, 0x03, 0x02, 0x01, 0xef, 0xbe, 0xaa, 0xbb}
	if !bytes.Equal(got, want) {
		t.Errorf("BodyToBytes = % X, want % X", got, want)
	}
}

func TestReadYml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := "username: tester\npassword: secret\ndomain: corp\nhostname: gw.example.com\nproxy: socks5://127.0.0.1:1080\ninsecure: true\nsamecreds: true\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	config, err := ReadYml(path)
	if err != nil {
		t.Fatalf("ReadYml error: %v", err)
	}
	if config.Username != "tester" || config.Password != "secret" || config.Domain != "corp" {
		t.Errorf("credentials not parsed: %+v", config)
	}
	if config.Hostname != "gw.example.com" || config.Proxy != "socks5://127.0.0.1:1080" {
		t.Errorf("endpoint not parsed: %+v", config)
	}
	if !config.Insecure || !config.SameCreds {
		t.Errorf("flags not parsed: %+v", config)
	}
}

func TestReadYmlMissingFile(t *testing.T) {
	if _, err := ReadYml(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGatewayCredentials(t *testing.T) {
	s := Session{GatewayUsername: "u", GatewayDomain: "d", GatewayPassword: "p"}
	creds := s.GatewayCredentials()
	if creds.Username != "u" || creds.Domain != "d" || creds.Password != "p" {
		t.Errorf("GatewayCredentials = %+v", creds)
	}
}

func TestNegotiateSP(t *testing.T) {
	msg := NegotiateSP()
	if len(msg) != 40 {
		t.Fatalf("negotiate message is %d bytes, want 40", len(msg))
	}
	if !bytes.Equal(msg[:8], []byte("NTLMSSP\x00")) {
		t.Errorf("missing NTLMSSP signature: % X", msg[:8])
	}
	if msg[8] != 0x01 {
		t.Errorf("message type = %d, want 1", msg[8])
	}
}
