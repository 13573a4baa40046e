package audio

import (
	"errors"
	"fmt"
	"time"
)

// Cue identifies a sound effect
type Cue int

const (
	CueContact  Cue = iota // Two bodies started touching
	CueRollback            // A late input forced a correction
	cueCount
)

func (c Cue) String() string {
	switch c {
	case CueContact:
		return "contact"
	case CueRollback:
		return "rollback"
	default:
		return fmt.Sprintf("cue(%d)", int(c))
	}
}

// PCM output format shared by every backend
const (
	SampleRate    = 44100
	Channels      = 2
	BytesPerFrame = Channels * 2 // s16le

	// BufferDuration sets mixer latency and write cadence
	BufferDuration = 50 * time.Millisecond
	BufferSamples  = SampleRate * 50 / 1000
)

// BackendType identifies the audio backend
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
)

// BackendConfig describes a CLI audio backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

var (
	ErrNoAudioBackend = errors.New("no compatible audio backend found")
	ErrPipeClosed     = errors.New("audio pipe closed")
)
