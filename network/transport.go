package network

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
)

// Transport handles network I/O for a specific role
type Transport struct {
	config   *Config
	listener net.Listener
	httpSrv  *http.Server
	peers    *PeerManager

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTransport creates a transport; zero sizes and timeouts take defaults
func NewTransport(cfg *Config) *Transport {
	c := withDefaults(cfg)
	return &Transport{
		config: c,
		peers:  NewPeerManager(c),
		stopCh: make(chan struct{}),
	}
}

func withDefaults(cfg *Config) *Config {
	c := *cfg
	d := DefaultConfig()
	if c.MaxPeers <= 0 {
		c.MaxPeers = d.MaxPeers
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.DisconnectTimeout <= 0 {
		c.DisconnectTimeout = d.DisconnectTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = d.SendQueueSize
	}
	return &c
}

// SetHandlers configures message and connection callbacks
func (t *Transport) SetHandlers(
	onConnect func(*Peer),
	onDisconnect func(*Peer),
	onMessage func(*Peer, *Frame),
) {
	t.peers.SetHandlers(onConnect, onDisconnect, onMessage)
}

// Start begins listening (server) or connecting (client)
func (t *Transport) Start() error {
	if !t.running.CompareAndSwap(false, true) {
		return nil // Already running
	}

	var err error
	switch t.config.Role {
	case RoleServer:
		err = t.startServer()
	case RoleClient:
		err = t.startClient()
	default:
		return nil // RoleNone, no-op
	}
	if err != nil {
		t.running.Store(false)
	}
	return err
}

func (t *Transport) startServer() error {
	ln, err := net.Listen("tcp", t.config.Address)
	if err != nil {
		return err
	}
	t.listener = ln

	if t.config.Transport == TransportWebSocket {
		srv := newWSServer(t.config, t.peers)
		t.httpSrv = srv
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if t.config.TLS != nil {
				srv.ServeTLS(ln, "", "")
				return
			}
			srv.Serve(ln)
		}()
		return nil
	}

	if t.config.TLS != nil {
		t.listener = tls.NewListener(ln, t.config.TLS)
	}
	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

func (t *Transport) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
				continue
			}
		}
		t.peers.AddConnection(newTCPConn(conn, t.config))
	}
}

func (t *Transport) startClient() error {
	var fc frameConn
	if t.config.Transport == TransportWebSocket {
		c, err := dialWS(t.config)
		if err != nil {
			return err
		}
		fc = c
	} else {
		c, err := dialTCP(t.config.Address, t.config)
		if err != nil {
			return err
		}
		fc = newTCPConn(c, t.config)
	}

	_, err := t.peers.AddConnection(fc)
	return err
}

// Addr returns the bound listener address, nil for clients
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop halts the transport and waits for every connection goroutine
func (t *Transport) Stop() error {
	if !t.running.CompareAndSwap(true, false) {
		return nil
	}

	close(t.stopCh)

	if t.httpSrv != nil {
		t.httpSrv.Close()
	} else if t.listener != nil {
		t.listener.Close()
	}

	t.wg.Wait()
	t.peers.Close()
	return nil
}

func (t *Transport) Send(id PeerID, f *Frame) bool {
	return t.peers.Send(id, f)
}

// Broadcast sends to all peers accepted by filter
func (t *Transport) Broadcast(f *Frame, filter func(*Peer) bool) int {
	return t.peers.Broadcast(f, filter)
}

func (t *Transport) PeerCount() int {
	return t.peers.PeerCount()
}

func (t *Transport) IsRunning() bool {
	return t.running.Load()
}
