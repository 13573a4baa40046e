package network

import (
	"bufio"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// PeerID uniquely identifies a connected peer within one transport
type PeerID uint32

// ConnState represents connection lifecycle state
type ConnState uint8

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// frameConn moves whole frames over some byte stream
type frameConn interface {
	ReadFrame() (*Frame, error)
	WriteFrame(f *Frame, deadline time.Time) error
	Close() error
	RemoteAddr() string
}

// tcpConn frames a stream socket with the fixed header
type tcpConn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

func newTCPConn(conn net.Conn, cfg *Config) *tcpConn {
	return &tcpConn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, cfg.ReadBufferSize),
		writer: bufio.NewWriterSize(conn, cfg.WriteBufferSize),
	}
}

func (c *tcpConn) ReadFrame() (*Frame, error) { return Decode(c.reader) }
func (c *tcpConn) Close() error               { return c.conn.Close() }
func (c *tcpConn) RemoteAddr() string         { return c.conn.RemoteAddr().String() }

func (c *tcpConn) WriteFrame(f *Frame, deadline time.Time) error {
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := f.Encode(c.writer); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Peer represents a remote endpoint
type Peer struct {
	ID       PeerID
	Addr     string
	State    atomic.Uint32 // ConnState
	LastSeen atomic.Int64  // UnixNano

	// Sequence tracking
	OutSeq atomic.Uint32 // Next outbound sequence
	InSeq  atomic.Uint32 // Last processed inbound sequence

	// Handshake result; nil until the remote hello is accepted
	remote atomic.Pointer[Hello]

	conn   frameConn
	sendCh chan *Frame

	closeCh   chan struct{}
	closeOnce sync.Once
}

func newPeer(id PeerID, conn frameConn, sendQueueSize int) *Peer {
	p := &Peer{
		ID:      id,
		Addr:    conn.RemoteAddr(),
		conn:    conn,
		sendCh:  make(chan *Frame, sendQueueSize),
		closeCh: make(chan struct{}),
	}
	p.State.Store(uint32(StateConnected))
	p.LastSeen.Store(time.Now().UnixNano())
	return p
}

// Remote returns the accepted hello of this peer
func (p *Peer) Remote() (Hello, bool) {
	h := p.remote.Load()
	if h == nil {
		return Hello{}, false
	}
	return *h, true
}

// Send queues a frame for transmission
// Returns false if peer is disconnected or queue full
func (p *Peer) Send(f *Frame) bool {
	if ConnState(p.State.Load()) != StateConnected {
		return false
	}

	f.Seq = p.OutSeq.Add(1)
	f.Ack = p.InSeq.Load()

	select {
	case p.sendCh <- f:
		return true
	default:
		return false
	}
}

// CloseAfterSend closes the peer once every frame queued so far is written
func (p *Peer) CloseAfterSend() {
	select {
	case p.sendCh <- nil:
	default:
		p.Close()
	}
}

// Close initiates shutdown; safe to call repeatedly
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.State.Store(uint32(StateDisconnecting))
		close(p.closeCh)
		p.conn.Close()
	})
}

// Done is closed once the peer shuts down
func (p *Peer) Done() <-chan struct{} {
	return p.closeCh
}

func (p *Peer) readLoop(handler func(*Peer, *Frame)) {
	defer p.Close()

	for {
		f, err := p.conn.ReadFrame()
		if err != nil {
			return
		}

		p.LastSeen.Store(time.Now().UnixNano())
		if f.Seq > p.InSeq.Load() {
			p.InSeq.Store(f.Seq)
		}
		if f.Type == MsgHeartbeat {
			continue
		}
		handler(p, f)
	}
}

// writeLoop drains the send queue and keeps the link alive
// A peer silent for longer than timeout is closed
func (p *Peer) writeLoop(writeTimeout, heartbeat, timeout time.Duration) {
	defer p.Close()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeCh:
			return
		case f := <-p.sendCh:
			if f == nil {
				return
			}
			if err := p.conn.WriteFrame(f, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case now := <-ticker.C:
			if now.Sub(time.Unix(0, p.LastSeen.Load())) > timeout {
				return
			}
			hb := NewFrame(MsgHeartbeat, nil)
			hb.Seq = p.OutSeq.Load()
			hb.Ack = p.InSeq.Load()
			if err := p.conn.WriteFrame(hb, now.Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// PeerManager handles multiple peer connections
type PeerManager struct {
	mu       sync.RWMutex
	peers    map[PeerID]*Peer
	nextID   atomic.Uint32
	maxPeers int
	config   *Config
	closed   bool
	wg       sync.WaitGroup

	onConnect    func(*Peer)
	onDisconnect func(*Peer)
	onMessage    func(*Peer, *Frame)
}

func NewPeerManager(cfg *Config) *PeerManager {
	return &PeerManager{
		peers:    make(map[PeerID]*Peer),
		maxPeers: cfg.MaxPeers,
		config:   cfg,
	}
}

// SetHandlers configures event callbacks; call before the first connection
func (pm *PeerManager) SetHandlers(
	onConnect func(*Peer),
	onDisconnect func(*Peer),
	onMessage func(*Peer, *Frame),
) {
	pm.onConnect = onConnect
	pm.onDisconnect = onDisconnect
	pm.onMessage = onMessage
}

// AddConnection registers a peer and starts its I/O loops
func (pm *PeerManager) AddConnection(conn frameConn) (*Peer, error) {
	pm.mu.Lock()
	if pm.closed {
		pm.mu.Unlock()
		conn.Close()
		return nil, ErrNotRunning
	}
	if len(pm.peers) >= pm.maxPeers {
		pm.mu.Unlock()
		conn.Close()
		return nil, ErrMaxPeers
	}

	id := PeerID(pm.nextID.Add(1))
	peer := newPeer(id, conn, pm.config.SendQueueSize)
	pm.peers[id] = peer
	pm.wg.Add(3)
	pm.mu.Unlock()

	go func() {
		defer pm.wg.Done()
		peer.readLoop(pm.handleMessage)
	}()
	go func() {
		defer pm.wg.Done()
		peer.writeLoop(pm.config.WriteTimeout, pm.config.HeartbeatInterval, pm.config.DisconnectTimeout)
	}()
	go func() {
		defer pm.wg.Done()
		pm.monitorPeer(peer)
	}()

	if pm.onConnect != nil {
		pm.onConnect(peer)
	}
	return peer, nil
}

func (pm *PeerManager) handleMessage(p *Peer, f *Frame) {
	if pm.onMessage != nil {
		pm.onMessage(p, f)
	}
}

// monitorPeer removes the peer once it closes
func (pm *PeerManager) monitorPeer(peer *Peer) {
	<-peer.closeCh

	pm.mu.Lock()
	delete(pm.peers, peer.ID)
	pm.mu.Unlock()
	peer.State.Store(uint32(StateDisconnected))

	if pm.onDisconnect != nil {
		pm.onDisconnect(peer)
	}
}

// Send transmits a frame to a specific peer
func (pm *PeerManager) Send(id PeerID, f *Frame) bool {
	pm.mu.RLock()
	peer, ok := pm.peers[id]
	pm.mu.RUnlock()

	if !ok {
		return false
	}
	return peer.Send(f)
}

// Broadcast sends f to every peer accepted by filter (nil = all)
// Returns the number of peers whose queue rejected the frame
func (pm *PeerManager) Broadcast(f *Frame, filter func(*Peer) bool) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	dropped := 0
	for _, peer := range pm.peers {
		if filter != nil && !filter(peer) {
			continue
		}
		// Clone for independent sequence numbers
		clone := *f
		if !peer.Send(&clone) {
			dropped++
		}
	}
	return dropped
}

func (pm *PeerManager) GetPeer(id PeerID) (*Peer, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.peers[id]
	return p, ok
}

func (pm *PeerManager) PeerCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// Close disconnects all peers and waits for their goroutines
func (pm *PeerManager) Close() {
	pm.mu.Lock()
	pm.closed = true
	peers := make([]*Peer, 0, len(pm.peers))
	for _, peer := range pm.peers {
		peers = append(peers, peer)
	}
	pm.mu.Unlock()

	for _, peer := range peers {
		peer.Close()
	}
	pm.wg.Wait()
}

// dialTCP establishes a connection with optional TLS
func dialTCP(addr string, cfg *Config) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: cfg.ConnectTimeout,
	}

	if cfg.TLS != nil {
		return tls.DialWithDialer(dialer, "tcp", addr, cfg.TLS)
	}
	return dialer.Dial("tcp", addr)
}
