package rpchttp

import (
	"bytes"
	"testing"

	"github.com/sensepost/tsgw/utils"
)

func TestConnA1Marshal(t *testing.T) {
	cookie := utils.CookieGen()
	frame := ConnA1(cookie).Marshal()

	if len(frame) != 76 {
		t.Fatalf("conn/a1 is %d bytes, want 76", len(frame))
	}
	if frame[2] != DCERPC_PKT_RTS {
		t.Errorf("ptype = %d, want %d", frame[2], DCERPC_PKT_RTS)
	}
	fragLen, _ := utils.ReadUint16(8, frame)
	if int(fragLen) != len(frame) {
		t.Errorf("frag_length %d but frame is %d bytes", fragLen, len(frame))
	}
	numCommands, _ := utils.ReadUint16(18, frame)
	if numCommands != 4 {
		t.Errorf("command count = %d, want 4", numCommands)
	}
	//virtual connect cookie is the first command after the version
	if !bytes.Equal(frame[32:48], cookie) {
		t.Errorf("virtual connect cookie not carried: % X", frame[32:48])
	}
}

func TestConnB1Marshal(t *testing.T) {
	connB1 := ConnB1()
	frame := connB1.Marshal()

	if len(frame) != 104 {
		t.Fatalf("conn/b1 is %d bytes, want 104", len(frame))
	}
	fragLen, _ := utils.ReadUint16(8, frame)
	if int(fragLen) != len(frame) {
		t.Errorf("frag_length %d but frame is %d bytes", fragLen, len(frame))
	}
	numCommands, _ := utils.ReadUint16(18, frame)
	if numCommands != 6 {
		t.Errorf("command count = %d, want 6", numCommands)
	}
	if len(connB1.VirtualConnectCookie.Cookie) != 16 || len(connB1.InChannelCookie.Cookie) != 16 {
		t.Error("cookies are not 16 bytes")
	}
	if bytes.Equal(connB1.VirtualConnectCookie.Cookie, connB1.InChannelCookie.Cookie) {
		t.Error("virtual connect and in channel cookies are identical")
	}
}

func TestConnA1SharesCookie(t *testing.T) {
	connB1 := ConnB1()
	connA1 := ConnA1(connB1.VirtualConnectCookie.Cookie)
	if !bytes.Equal(connA1.VirtualConnectCookie.Cookie, connB1.VirtualConnectCookie.Cookie) {
		t.Error("conn/a1 does not carry the conn/b1 virtual connect cookie")
	}
}

func TestPingMarshal(t *testing.T) {
	frame := Ping().Marshal()
	if len(frame) != 20 {
		t.Fatalf("ping is %d bytes, want 20", len(frame))
	}
	fragLen, _ := utils.ReadUint16(8, frame)
	if fragLen != 20 {
		t.Errorf("frag_length = %d, want 20", fragLen)
	}
	flags, _ := utils.ReadUint16(16, frame)
	if flags != RTS_FLAG_PING {
		t.Errorf("rts flags = %d, want %d", flags, RTS_FLAG_PING)
	}
}
