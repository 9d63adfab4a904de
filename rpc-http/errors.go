package rpchttp

import "errors"

//Terminal error kinds surfaced by the bind core. Everything the engine
//returns wraps one of these; callers match with errors.Is and decide
//whether to re-establish the virtual connection.
var (
	//ErrAuthOracleInit the security package could not initialize with the supplied credentials
	ErrAuthOracleInit = errors.New("rpchttp: auth oracle initialization failed")
	//ErrMalformedPdu an incoming PDU failed decode invariants
	ErrMalformedPdu = errors.New("rpchttp: malformed pdu")
	//ErrChannelIO short write, read failure or connection reset on a channel
	ErrChannelIO = errors.New("rpchttp: channel i/o error")
	//ErrDuplicateCall a call id collided in the registry
	ErrDuplicateCall = errors.New("rpchttp: duplicate call id")
	//ErrUnknownCall completion of a call id that was never registered
	ErrUnknownCall = errors.New("rpchttp: unknown call id")
	//ErrCancelled the user or host aborted the handshake
	ErrCancelled = errors.New("rpchttp: cancelled")
	//ErrTimeout the response deadline expired
	ErrTimeout = errors.New("rpchttp: timeout")
	//ErrFragTooLarge a PDU would exceed the 65535 byte frag_length limit
	ErrFragTooLarge = errors.New("rpchttp: fragment exceeds 65535 bytes")
)
