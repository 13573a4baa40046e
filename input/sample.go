package input

import (
	"fmt"

	"github.com/lixenwraith/rollback/core"
)

// ParticipantID identifies one input source within a session
type ParticipantID uint16

// MoveDirection is the horizontal intent of a participant
type MoveDirection uint8

const (
	MoveNone MoveDirection = iota
	MoveLeft
	MoveRight
)

func (m MoveDirection) String() string {
	switch m {
	case MoveNone:
		return "none"
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	default:
		return fmt.Sprintf("move(%d)", m)
	}
}

// JumpInput is the jump button state
type JumpInput uint8

const (
	JumpNone JumpInput = iota
	JumpPressed
)

func (j JumpInput) String() string {
	switch j {
	case JumpNone:
		return "none"
	case JumpPressed:
		return "pressed"
	default:
		return fmt.Sprintf("jump(%d)", j)
	}
}

// Sample is one participant's input for one tick; comparable by value
type Sample struct {
	Move MoveDirection
	Jump JumpInput
}

// Neutral is the sample used when nothing is known
var Neutral = Sample{}

// Axis returns -1, 0 or +1 for the move direction
func (s Sample) Axis() int {
	switch s.Move {
	case MoveLeft:
		return -1
	case MoveRight:
		return 1
	default:
		return 0
	}
}

// Jumping reports whether jump is held
func (s Sample) Jumping() bool {
	return s.Jump == JumpPressed
}

// Valid reports whether both fields hold known values
func (s Sample) Valid() bool {
	return s.Move <= MoveRight && s.Jump <= JumpPressed
}

func (s Sample) String() string {
	return fmt.Sprintf("move=%s jump=%s", s.Move, s.Jump)
}

// Message carries one authoritative sample between peers
type Message struct {
	Participant ParticipantID
	Tick        core.Tick
	Sample      Sample
}
