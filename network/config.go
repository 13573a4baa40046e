package network

import (
	"crypto/tls"
	"fmt"
	"time"
)

// Role defines the network topology role
type Role uint8

const (
	RoleNone   Role = iota // Network disabled
	RoleClient             // Dials Address
	RoleServer             // Accepts connections on Address
)

// ParseRole maps a config string to a Role
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "none":
		return RoleNone, nil
	case "client":
		return RoleClient, nil
	case "server":
		return RoleServer, nil
	default:
		return RoleNone, fmt.Errorf("network: unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "none"
	}
}

// TransportKind selects the byte stream frames travel over
type TransportKind uint8

const (
	TransportTCP TransportKind = iota
	TransportWebSocket
)

// ParseTransport maps a config string to a TransportKind
func ParseTransport(s string) (TransportKind, error) {
	switch s {
	case "", "tcp":
		return TransportTCP, nil
	case "ws", "websocket":
		return TransportWebSocket, nil
	default:
		return TransportTCP, fmt.Errorf("network: unknown transport %q", s)
	}
}

func (k TransportKind) String() string {
	if k == TransportWebSocket {
		return "websocket"
	}
	return "tcp"
}

// Config holds network configuration
type Config struct {
	// Role determines connection behavior
	Role      Role
	Transport TransportKind

	// Address to bind (server) or connect to (client)
	// WebSocket clients use ws://host:port/Path
	Address string
	Path    string

	// TLS configuration (nil = plaintext, debug only)
	TLS *tls.Config

	// Connection limits
	MaxPeers int

	// Timing
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	DisconnectTimeout time.Duration

	// Buffer sizes
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
}

// DefaultConfig returns production-safe defaults
func DefaultConfig() *Config {
	return &Config{
		Role:              RoleNone,
		Transport:         TransportTCP,
		Address:           ":7777",
		Path:              "/session",
		TLS:               nil, // Must be explicitly configured for production
		MaxPeers:          8,
		ConnectTimeout:    5 * time.Second,
		WriteTimeout:      5 * time.Second,
		HeartbeatInterval: time.Second,
		DisconnectTimeout: 10 * time.Second,
		ReadBufferSize:    16 * 1024,
		WriteBufferSize:   16 * 1024,
		SendQueueSize:     256,
	}
}

// DebugConfig returns config with TLS disabled for local testing
func DebugConfig(role Role, addr string) *Config {
	cfg := DefaultConfig()
	cfg.Role = role
	cfg.Address = addr
	cfg.TLS = nil
	return cfg
}
