package network

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType identifies the semantic meaning of a frame
type MessageType uint8

const (
	// Control
	MsgHeartbeat  MessageType = 0x01
	MsgConnect    MessageType = 0x02 // Handshake, payload ConnectPayload
	MsgDisconnect MessageType = 0x03
	MsgReject     MessageType = 0x04 // Handshake refused, payload RejectPayload

	// Session
	MsgInput MessageType = 0x10 // One authoritative sample, payload InputPayload
)

func (t MessageType) String() string {
	switch t {
	case MsgHeartbeat:
		return "heartbeat"
	case MsgConnect:
		return "connect"
	case MsgDisconnect:
		return "disconnect"
	case MsgReject:
		return "reject"
	case MsgInput:
		return "input"
	default:
		return fmt.Sprintf("type(0x%02x)", uint8(t))
	}
}

// HeaderSize is the fixed frame header length
// [Type:1][Flags:1][Seq:4][Ack:4][Len:2], big endian
const HeaderSize = 12

// MaxPayload is the largest payload the length field can carry
const MaxPayload = 1<<16 - 1

const (
	FlagNone    uint8 = 0x00
	FlagNeedAck uint8 = 0x01
)

// Frame is one framed network message
type Frame struct {
	Type    MessageType
	Flags   uint8
	Seq     uint32 // Sender's sequence number
	Ack     uint32 // Last received sequence from peer
	Payload []byte
}

// Encode writes header then payload to w
func (f *Frame) Encode(w io.Writer) error {
	payloadLen := len(f.Payload)
	if payloadLen > MaxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	var header [HeaderSize]byte
	header[0] = byte(f.Type)
	header[1] = f.Flags
	binary.BigEndian.PutUint32(header[2:6], f.Seq)
	binary.BigEndian.PutUint32(header[6:10], f.Ack)
	binary.BigEndian.PutUint16(header[10:12], uint16(payloadLen))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if payloadLen > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the encoded frame, used by message-oriented transports
func (f *Frame) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(f.Payload))
	if err := f.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads one frame from r
func Decode(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	payloadLen := binary.BigEndian.Uint16(header[10:12])
	f := &Frame{
		Type:  MessageType(header[0]),
		Flags: header[1],
		Seq:   binary.BigEndian.Uint32(header[2:6]),
		Ack:   binary.BigEndian.Uint32(header[6:10]),
	}

	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("%w: payload: %w", ErrMalformedFrame, err)
		}
	}
	return f, nil
}

// DecodeBytes parses a frame delivered whole; trailing bytes are an error
func DecodeBytes(b []byte) (*Frame, error) {
	r := bytes.NewReader(b)
	f, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, r.Len())
	}
	return f, nil
}

// NewFrame creates a frame with the given type and payload
func NewFrame(t MessageType, payload []byte) *Frame {
	return &Frame{
		Type:    t,
		Flags:   FlagNone,
		Payload: payload,
	}
}
