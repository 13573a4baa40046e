package audio

import (
	"math"
	"math/rand"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// WaveType defines oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSaw
	WaveNoise
)

// Cue timing
const (
	contactDuration = 90 * time.Millisecond
	contactAttack   = 2 * time.Millisecond
	contactRelease  = 70 * time.Millisecond
	noiseDuration   = 25 * time.Millisecond

	blipDuration = 40 * time.Millisecond
	blipAttack   = 3 * time.Millisecond
	blipRelease  = 25 * time.Millisecond
)

// oscillator generates raw audio waves
type oscillator struct {
	freq     float64
	phase    float64
	duration int
	position int
	wave     WaveType
	rate     beep.SampleRate
}

// NewOscillator creates a finite streamer of one wave shape
func NewOscillator(freq float64, duration time.Duration, wave WaveType, rate beep.SampleRate) beep.Streamer {
	return &oscillator{
		freq:     freq,
		duration: rate.N(duration),
		wave:     wave,
		rate:     rate,
	}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		var val float64
		switch o.wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveSquare:
			if o.phase < 0.5 {
				val = 1.0
			} else {
				val = -1.0
			}
		case WaveSaw:
			val = 2.0 * (o.phase - 0.5)
		case WaveNoise:
			val = rand.Float64()*2 - 1
		}

		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase) // Keep in [0, 1)
		o.position++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// envelope applies linear attack and release to a stream
type envelope struct {
	streamer       beep.Streamer
	position       int
	attackSamples  int
	releaseSamples int
	releaseStart   int
	totalSamples   int
}

// NewEnvelope shapes s; the release ends exactly at duration
func NewEnvelope(s beep.Streamer, duration, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	total := rate.N(duration)
	att := rate.N(attack)
	rel := rate.N(release)
	start := max(total-rel, att)

	return &envelope{
		streamer:       s,
		attackSamples:  att,
		releaseSamples: rel,
		releaseStart:   start,
		totalSamples:   total,
	}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)

	for i := 0; i < n; i++ {
		if e.position >= e.totalSamples {
			return i, i > 0
		}

		vol := 1.0
		if e.position < e.attackSamples {
			vol = float64(e.position) / float64(e.attackSamples)
		} else if e.position >= e.releaseStart && e.releaseSamples > 0 {
			vol = math.Max(0, float64(e.totalSamples-e.position)/float64(e.releaseSamples))
		}

		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// newVolume wraps s with a linear gain
// math.Log2(0) is -Inf, so zero gain maps to Silent
func newVolume(s beep.Streamer, gain float64) beep.Streamer {
	if gain <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(gain), Silent: false}
}

// contactStreamer is a low thump with a short noise transient
func contactStreamer(rate beep.SampleRate) beep.Streamer {
	body := NewEnvelope(NewOscillator(140, contactDuration, WaveSine, rate), contactDuration, contactAttack, contactRelease, rate)
	click := NewEnvelope(NewOscillator(0, noiseDuration, WaveNoise, rate), noiseDuration, 0, noiseDuration, rate)
	return beep.Take(rate.N(contactDuration), beep.Mix(
		newVolume(body, 0.8),
		newVolume(click, 0.2),
	))
}

// rollbackStreamer is a falling two-note blip
func rollbackStreamer(rate beep.SampleRate) beep.Streamer {
	note := func(freq float64) beep.Streamer {
		return NewEnvelope(NewOscillator(freq, blipDuration, WaveSquare, rate), blipDuration, blipAttack, blipRelease, rate)
	}
	return beep.Seq(note(1320), note(990))
}

// CueStreamer returns a fresh unity-gain streamer for cue, nil if unknown
func CueStreamer(cue Cue, rate beep.SampleRate) beep.Streamer {
	switch cue {
	case CueContact:
		return contactStreamer(rate)
	case CueRollback:
		return rollbackStreamer(rate)
	default:
		return nil
	}
}
