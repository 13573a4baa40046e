package physics

import "errors"

var (
	ErrUnknownBody          = errors.New("physics: unknown body")
	ErrInvalidBody          = errors.New("physics: invalid body")
	ErrInvalidShape         = errors.New("physics: invalid shape")
	ErrWorldStepping        = errors.New("physics: structural change during step")
	ErrSnapshotBodyMismatch = errors.New("physics: snapshot body mismatch")
)
