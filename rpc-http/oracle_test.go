package rpchttp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sensepost/tsgw/utils"
)

func TestNTLMOracleInitialToken(t *testing.T) {
	oracle, err := NewNTLMOracle(utils.Credentials{Username: "user", Domain: "corp", Password: "pass"}, "gw.example.com")
	if err != nil {
		t.Fatal(err)
	}
	token, status, err := oracle.InitialToken()
	if err != nil {
		t.Fatal(err)
	}
	if status != AuthContinue {
		t.Errorf("status = %d, want continue", status)
	}
	if !bytes.HasPrefix(token, []byte("NTLMSSP\x00")) {
		t.Errorf("negotiate token lacks NTLMSSP signature: % X", token[:8])
	}
}

func TestNTLMOracleRejectsGarbageChallenge(t *testing.T) {
	oracle, err := NewNTLMOracle(utils.Credentials{Username: "user", Password: "pass"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := oracle.InitialToken(); err != nil {
		t.Fatal(err)
	}
	if _, err := oracle.AcceptToken([]byte{0x00, 0x01, 0x02}); !errors.Is(err, ErrMalformedPdu) {
		t.Errorf("expected ErrMalformedPdu, got %v", err)
	}
}
