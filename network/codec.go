package network

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/input"
)

// InputPayload is the wire form of input.Message
// Resend carries earlier ticks of the same participant whose frames were
// dropped on a full send queue, oldest first
type InputPayload struct {
	Participant uint16        `msgpack:"p"`
	Tick        int64         `msgpack:"t"`
	Move        uint8         `msgpack:"m"`
	Jump        uint8         `msgpack:"j"`
	Resend      []ResendInput `msgpack:"b,omitempty"`
}

type ResendInput struct {
	Tick int64 `msgpack:"t"`
	Move uint8 `msgpack:"m"`
	Jump uint8 `msgpack:"j"`
}

// ConnectPayload announces a peer and the parameters it simulates with
// Peers only exchange input when session, tick rate and horizon agree
type ConnectPayload struct {
	Session     []byte `msgpack:"s"` // uuid bytes
	Participant uint16 `msgpack:"p"`
	TickRate    int    `msgpack:"r"`
	Horizon     int    `msgpack:"h"`
	Delay       int    `msgpack:"d"`
}

// RejectPayload explains a refused handshake
type RejectPayload struct {
	Reason string `msgpack:"reason"`
}

// Hello is the decoded handshake
type Hello struct {
	Session     uuid.UUID
	Participant input.ParticipantID
	TickRate    int
	Horizon     int
	Delay       int
}

// Compatible reports whether two peers can share input
func (h Hello) Compatible(other Hello) error {
	switch {
	case h.Session != other.Session:
		return fmt.Errorf("%w: session %s, want %s", ErrHandshake, other.Session, h.Session)
	case h.TickRate != other.TickRate:
		return fmt.Errorf("%w: tick rate %d, want %d", ErrHandshake, other.TickRate, h.TickRate)
	case h.Horizon != other.Horizon:
		return fmt.Errorf("%w: horizon %d, want %d", ErrHandshake, other.Horizon, h.Horizon)
	case h.Participant == other.Participant:
		return fmt.Errorf("%w: participant %d already local", ErrHandshake, other.Participant)
	}
	return nil
}

// EncodeInput packs msg with resend, earlier messages of the same participant
func EncodeInput(msg input.Message, resend ...input.Message) ([]byte, error) {
	p := InputPayload{
		Participant: uint16(msg.Participant),
		Tick:        int64(msg.Tick),
		Move:        uint8(msg.Sample.Move),
		Jump:        uint8(msg.Sample.Jump),
	}
	for _, r := range resend {
		if r.Participant != msg.Participant {
			return nil, fmt.Errorf("network: resend for participant %d in frame of %d", r.Participant, msg.Participant)
		}
		p.Resend = append(p.Resend, ResendInput{
			Tick: int64(r.Tick),
			Move: uint8(r.Sample.Move),
			Jump: uint8(r.Sample.Jump),
		})
	}
	return msgpack.Marshal(&p)
}

// DecodeInput parses and validates an input payload
// Resent messages come first, the frame's own message last
func DecodeInput(b []byte) ([]input.Message, error) {
	var p InputPayload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: input: %w", ErrMalformedFrame, err)
	}
	id := input.ParticipantID(p.Participant)
	msgs := make([]input.Message, 0, len(p.Resend)+1)
	for _, r := range p.Resend {
		msgs = append(msgs, inputMessage(id, r.Tick, r.Move, r.Jump))
	}
	msgs = append(msgs, inputMessage(id, p.Tick, p.Move, p.Jump))

	for _, msg := range msgs {
		if !msg.Tick.Valid() || !msg.Sample.Valid() {
			return nil, fmt.Errorf("%w: input tick %d sample %v", ErrMalformedFrame, msg.Tick, msg.Sample)
		}
	}
	return msgs, nil
}

func inputMessage(id input.ParticipantID, tick int64, move, jump uint8) input.Message {
	return input.Message{
		Participant: id,
		Tick:        core.Tick(tick),
		Sample: input.Sample{
			Move: input.MoveDirection(move),
			Jump: input.JumpInput(jump),
		},
	}
}

func EncodeHello(h Hello) ([]byte, error) {
	return msgpack.Marshal(&ConnectPayload{
		Session:     h.Session[:],
		Participant: uint16(h.Participant),
		TickRate:    h.TickRate,
		Horizon:     h.Horizon,
		Delay:       h.Delay,
	})
}

func DecodeHello(b []byte) (Hello, error) {
	var p ConnectPayload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return Hello{}, fmt.Errorf("%w: connect: %w", ErrMalformedFrame, err)
	}
	id, err := uuid.FromBytes(p.Session)
	if err != nil {
		return Hello{}, fmt.Errorf("%w: session id: %w", ErrMalformedFrame, err)
	}
	return Hello{
		Session:     id,
		Participant: input.ParticipantID(p.Participant),
		TickRate:    p.TickRate,
		Horizon:     p.Horizon,
		Delay:       p.Delay,
	}, nil
}

func EncodeReject(reason string) ([]byte, error) {
	return msgpack.Marshal(&RejectPayload{Reason: reason})
}

func DecodeReject(b []byte) (string, error) {
	var p RejectPayload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return "", fmt.Errorf("%w: reject: %w", ErrMalformedFrame, err)
	}
	return p.Reason, nil
}
