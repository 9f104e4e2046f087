package server

import "errors"

var (
	// ErrProtocolVersion indicates a handshake negotiated a version below TLS 1.3
	ErrProtocolVersion = errors.New("TLS protocol version below 1.3")
	// ErrNotListening indicates Serve was called before Listen
	ErrNotListening = errors.New("server is not listening")
)
