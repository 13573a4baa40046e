package input

import "errors"

var (
	ErrInputOutsideWindow   = errors.New("input: tick outside history window")
	ErrUnknownParticipant   = errors.New("input: unknown participant")
	ErrDuplicateParticipant = errors.New("input: participant already registered")
	ErrInvalidSample        = errors.New("input: invalid sample")
	ErrInboxFull            = errors.New("input: inbox full")
)
