package network

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn carries one frame per binary WebSocket message
// gorilla allows one concurrent reader and one writer, matching the peer loops
type wsConn struct {
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadFrame() (*Frame, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		return DecodeBytes(data)
	}
}

func (c *wsConn) WriteFrame(f *Frame, deadline time.Time) error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() error       { return c.conn.Close() }
func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// wsHandler upgrades requests on cfg.Path and hands the socket to pm
func wsHandler(cfg *Config, pm *PeerManager) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return // Upgrade already wrote the HTTP error
		}
		conn.SetReadLimit(HeaderSize + MaxPayload)
		pm.AddConnection(newWSConn(conn))
	})
	return mux
}

func newWSServer(cfg *Config, pm *PeerManager) *http.Server {
	return &http.Server{
		Handler:           wsHandler(cfg, pm),
		ReadHeaderTimeout: cfg.ConnectTimeout,
		TLSConfig:         cfg.TLS,
	}
}

// wsURL builds the dial URL from an address that may lack a scheme
func wsURL(cfg *Config) string {
	if strings.HasPrefix(cfg.Address, "ws://") || strings.HasPrefix(cfg.Address, "wss://") {
		return cfg.Address
	}
	scheme := "ws"
	if cfg.TLS != nil {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, cfg.Address, cfg.Path)
}

func dialWS(cfg *Config) (*wsConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.ConnectTimeout,
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		TLSClientConfig:  cfg.TLS,
	}
	conn, resp, err := dialer.Dial(wsURL(cfg), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(HeaderSize + MaxPayload)
	return newWSConn(conn), nil
}
