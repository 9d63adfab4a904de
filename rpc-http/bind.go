package rpchttp

import (
	"context"
	"errors"
	"fmt"

	"github.com/sensepost/tsgw/utils"
)

//State of the bind engine. The engine only moves forward, a failure in
//any state lands in StateFailed and the virtual connection must be
//re-established from scratch.
type State int

const (
	StateInit State = iota
	StateBindSent
	StateAwaitingBindAck
	StateAuth3Send
	StateEstablished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBindSent:
		return "bind-sent"
	case StateAwaitingBindAck:
		return "awaiting-bind-ack"
	case StateAuth3Send:
		return "auth3-send"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

//CredentialPrompt asks the user for the gateway credential triple when
//the configured one is incomplete. Returning ok=false aborts the bind.
type CredentialPrompt func(hostname string) (creds utils.Credentials, ok bool, err error)

//NegotiatedParams what a successful bind leaves behind for the caller
type NegotiatedParams struct {
	MaxXmitFrag  uint16
	MaxRecvFrag  uint16
	AssocGroupID uint32
}

//BindSession drives the SECURE_BIND handshake over an established
//virtual connection. It keeps the settings pointer the caller handed
//in, so a prompted credential is written back into the caller's
//settings before the oracle is built from them.
type BindSession struct {
	settings  *utils.Session
	prompt    CredentialPrompt
	newOracle OracleFactory
	in        InChannel
	out       OutChannel

	oracle AuthOracle
	calls  *CallRegistry
	state  State

	maxXmitFrag  uint16
	maxRecvFrag  uint16
	assocGroupID uint32
}

//NewBindSession a session in StateInit with the default fragment sizes
func NewBindSession(settings *utils.Session, prompt CredentialPrompt, factory OracleFactory, in InChannel, out OutChannel) *BindSession {
	if factory == nil {
		factory = NewNTLMOracle
	}
	return &BindSession{
		settings:    settings,
		prompt:      prompt,
		newOracle:   factory,
		in:          in,
		out:         out,
		calls:       NewCallRegistry(),
		state:       StateInit,
		maxXmitFrag: DefaultMaxXmitFrag,
		maxRecvFrag: DefaultMaxRecvFrag,
	}
}

//State the engine's current state
func (s *BindSession) State() State {
	return s.state
}

//Params the negotiated parameters, meaningful once Established
func (s *BindSession) Params() NegotiatedParams {
	return NegotiatedParams{
		MaxXmitFrag:  s.maxXmitFrag,
		MaxRecvFrag:  s.maxRecvFrag,
		AssocGroupID: s.assocGroupID,
	}
}

//fail records terminal failure, dropping every outstanding call
func (s *BindSession) fail(err error) error {
	s.state = StateFailed
	s.calls.Clear()
	return err
}

//ensureCredentials fills in missing gateway credentials, prompting at
//most once. With samecreds set the session triple mirrors whatever the
//gateway triple ends up being, both when the gateway side was already
//complete and when the prompt supplied it.
func (s *BindSession) ensureCredentials() error {
	if s.settings.GatewayUsername == "" || s.settings.GatewayPassword == "" {
		if s.prompt == nil {
			return fmt.Errorf("%w: no credentials and no prompt", ErrAuthOracleInit)
		}
		creds, ok, err := s.prompt(s.settings.GatewayHostname)
		if err != nil {
			return fmt.Errorf("%w: prompt: %s", ErrAuthOracleInit, err)
		}
		if !ok {
			return ErrCancelled
		}
		s.settings.GatewayUsername = creds.Username
		s.settings.GatewayDomain = creds.Domain
		s.settings.GatewayPassword = creds.Password
	}
	if s.settings.UseSameCredentialsForSession {
		if s.settings.GatewayUsername == "" || s.settings.GatewayPassword == "" {
			return fmt.Errorf("%w: incomplete gateway credentials to mirror", ErrAuthOracleInit)
		}
		s.settings.Username = s.settings.GatewayUsername
		s.settings.Domain = s.settings.GatewayDomain
		s.settings.Password = s.settings.GatewayPassword
	}
	return nil
}

//buildBind assembles the SECURE_BIND PDU offering both presentation
//contexts with the initial security token in the trailer
func (s *BindSession) buildBind(token []byte) *BindPDU {
	ndr := SyntaxID{UUID: NDRUUID, Version: NDRSyntaxVersion}
	btfn := SyntaxID{UUID: BTFNUUID, Version: BTFNSyntaxVersion}
	tsgu := SyntaxID{UUID: TSGUUUID, Version: TSGUSyntaxVersion}
	return &BindPDU{
		PFCFlags:    PFC_FIRST_FRAG | PFC_LAST_FRAG | PFC_SUPPORT_HEADER_SIGN | PFC_CONC_MPX,
		CallID:      BindCallID,
		MaxXmitFrag: s.maxXmitFrag,
		MaxRecvFrag: s.maxRecvFrag,
		Contexts: []PresentationContext{
			{ContextID: 0, AbstractSyntax: tsgu, TransferSyntaxes: []SyntaxID{ndr}},
			{ContextID: 1, AbstractSyntax: tsgu, TransferSyntaxes: []SyntaxID{btfn}},
		},
		Auth: AuthVerifier{
			AuthType:  RPC_C_AUTHN_WINNT,
			AuthLevel: RPC_C_AUTHN_LEVEL_PKT_INTEGRITY,
			AuthValue: token,
		},
	}
}

//readPDU reads one PDU off the out channel, honouring ctx. The read
//itself cannot be interrupted so a late arrival after cancellation is
//discarded with the goroutine.
func (s *BindSession) readPDU(ctx context.Context) ([]byte, error) {
	type result struct {
		pdu []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pdu, err := s.out.ReadPDU()
		ch <- result{pdu, err}
	}()
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: waiting for bind_ack", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %s", ErrCancelled, ctx.Err())
	case res := <-ch:
		return res.pdu, res.err
	}
}

//Run drives the handshake to completion. On success the session is
//Established and Params holds the negotiated values; on any error the
//session is Failed and the returned error wraps one of the terminal
//kinds in errors.go.
func (s *BindSession) Run(ctx context.Context) (NegotiatedParams, error) {
	if err := s.ensureCredentials(); err != nil {
		return NegotiatedParams{}, s.fail(err)
	}

	oracle, err := s.newOracle(s.settings.GatewayCredentials(), s.settings.GatewayHostname)
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	s.oracle = oracle

	token, _, err := s.oracle.InitialToken()
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}

	bind := s.buildBind(token)
	frame, err := bind.Marshal()
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	if _, err := s.calls.NewCall(BindCallID, 0); err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	s.state = StateBindSent
	utils.Trace.Printf("bind: sending secure_bind, %d byte auth token", len(token))
	if err := s.in.WritePDU(frame); err != nil {
		return NegotiatedParams{}, s.fail(err)
	}

	s.state = StateAwaitingBindAck
	raw, err := s.readPDU(ctx)
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	ack, err := DecodeBindAck(raw)
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	if err := s.calls.Complete(BindCallID); err != nil {
		return NegotiatedParams{}, s.fail(err)
	}

	//the peer's transmit ceiling bounds what we may receive and its
	//receive ceiling bounds what we may transmit
	s.maxRecvFrag = ack.MaxXmitFrag
	s.maxXmitFrag = ack.MaxRecvFrag
	s.assocGroupID = ack.AssocGroupID
	utils.Trace.Printf("bind: bind_ack, xmit %d recv %d assoc 0x%08x", s.maxXmitFrag, s.maxRecvFrag, s.assocGroupID)

	status, err := s.oracle.AcceptToken(ack.AuthValue)
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	if status == AuthComplete {
		s.state = StateEstablished
		return s.Params(), nil
	}

	s.state = StateAuth3Send
	final, _, err := s.oracle.NextToken()
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	auth3 := &Auth3PDU{
		PFCFlags:    PFC_FIRST_FRAG | PFC_LAST_FRAG | PFC_CONC_MPX,
		CallID:      BindCallID,
		MaxXmitFrag: s.maxXmitFrag,
		MaxRecvFrag: s.maxRecvFrag,
		Auth: AuthVerifier{
			AuthType:  RPC_C_AUTHN_WINNT,
			AuthLevel: RPC_C_AUTHN_LEVEL_PKT_INTEGRITY,
			AuthValue: final,
		},
	}
	frame, err = auth3.Marshal()
	if err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	if _, err := s.calls.EnsureCall(BindCallID, 0); err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	utils.Trace.Printf("bind: sending rpc_auth_3, %d byte auth token", len(final))
	if err := s.in.WritePDU(frame); err != nil {
		return NegotiatedParams{}, s.fail(err)
	}
	//auth3 has no matched response, retire it once it is on the wire
	if err := s.calls.Complete(BindCallID); err != nil {
		return NegotiatedParams{}, s.fail(err)
	}

	s.state = StateEstablished
	return s.Params(), nil
}
