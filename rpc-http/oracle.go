package rpchttp

import (
	"fmt"

	"github.com/sensepost/tsgw/utils"
	"github.com/staaldraad/go-ntlm/ntlm"
)

//AuthStatus reports where the token exchange stands
type AuthStatus int

const (
	//AuthContinue more legs are required
	AuthContinue AuthStatus = iota
	//AuthComplete the context is established
	AuthComplete
)

//AuthOracle produces and consumes the opaque tokens embedded in the
//handshake PDUs. The engine treats it as a black box; it is stateful
//and owned by the session.
type AuthOracle interface {
	InitialToken() ([]byte, AuthStatus, error)
	AcceptToken(token []byte) (AuthStatus, error)
	NextToken() ([]byte, AuthStatus, error)
}

//OracleFactory builds an oracle for a credential triple and the
//gateway hostname the context targets
type OracleFactory func(creds utils.Credentials, hostname string) (AuthOracle, error)

//NTLMOracle drives a three-leg NTLM exchange: negotiate out, challenge
//in, authenticate out
type NTLMOracle struct {
	session  ntlm.ClientSession
	hostname string
}

//NewNTLMOracle initializes an NTLM client session with the resolved
//credentials. Satisfies OracleFactory.
func NewNTLMOracle(creds utils.Credentials, hostname string) (AuthOracle, error) {
	session, err := ntlm.CreateClientSession(ntlm.Version2, ntlm.ConnectionOrientedMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAuthOracleInit, err)
	}
	session.SetUserInfo(creds.Username, creds.Password, creds.Domain)
	return &NTLMOracle{session: session, hostname: hostname}, nil
}

//InitialToken the NTLM negotiate message
func (o *NTLMOracle) InitialToken() ([]byte, AuthStatus, error) {
	negotiate, err := o.session.GenerateNegotiateMessage()
	if err != nil {
		return nil, AuthContinue, fmt.Errorf("%w: negotiate: %s", ErrAuthOracleInit, err)
	}
	return negotiate.Bytes(), AuthContinue, nil
}

//AcceptToken consumes the server challenge
func (o *NTLMOracle) AcceptToken(token []byte) (AuthStatus, error) {
	//a CHALLENGE_MESSAGE has a 48 byte fixed part, and go-ntlm slices
	//into it without checking the length
	if len(token) < 48 {
		return AuthContinue, fmt.Errorf("%w: challenge of %d bytes is shorter than its fixed part", ErrMalformedPdu, len(token))
	}
	challenge, err := ntlm.ParseChallengeMessage(token)
	if err != nil {
		return AuthContinue, fmt.Errorf("%w: parse challenge: %s", ErrMalformedPdu, err)
	}
	if err := o.session.ProcessChallengeMessage(challenge); err != nil {
		return AuthContinue, fmt.Errorf("%w: process challenge: %s", ErrAuthOracleInit, err)
	}
	return AuthContinue, nil
}

//NextToken the NTLM authenticate message, the final leg
func (o *NTLMOracle) NextToken() ([]byte, AuthStatus, error) {
	authenticate, err := o.session.GenerateAuthenticateMessage()
	if err != nil {
		return nil, AuthContinue, fmt.Errorf("%w: authenticate: %s", ErrAuthOracleInit, err)
	}
	if o.hostname != "" {
		if workstation, err := ntlm.CreateStringPayload(o.hostname); err == nil {
			authenticate.Workstation = workstation
		}
	}
	return authenticate.Bytes(), AuthComplete, nil
}
