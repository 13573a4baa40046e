package network

import "errors"

var (
	ErrPayloadTooLarge = errors.New("network: payload exceeds frame limit")
	ErrMalformedFrame  = errors.New("network: malformed frame")
	ErrMaxPeers        = errors.New("network: max peers reached")
	ErrHandshake       = errors.New("network: handshake rejected")
	ErrSendQueueFull   = errors.New("network: send queue full")
	ErrNotRunning      = errors.New("network: transport not running")
)
