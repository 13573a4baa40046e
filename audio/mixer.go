package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// voice is one playing cue
type voice struct {
	buffer floatBuffer
	pos    int
	gain   float64
}

type playRequest struct {
	cue  Cue
	gain float64
}

// Mixer sums playing cues and writes s16le stereo PCM every BufferDuration
// Silence is written while idle so the backend pipe stays open
type Mixer struct {
	output io.Writer
	cache  *soundCache
	period time.Duration

	queue    chan playRequest
	stopChan chan struct{}
	stopped  atomic.Bool
	done     sync.WaitGroup

	// Owned by the mix goroutine
	active []voice

	played  atomic.Uint64
	dropped atomic.Uint64

	errChan chan error
}

func NewMixer(out io.Writer, cache *soundCache) *Mixer {
	return &Mixer{
		output:   out,
		cache:    cache,
		period:   BufferDuration,
		queue:    make(chan playRequest, 32),
		stopChan: make(chan struct{}),
		active:   make([]voice, 0, 8),
		errChan:  make(chan error, 1),
	}
}

func (m *Mixer) Start() {
	m.done.Add(1)
	go m.loop()
}

// Stop halts the mix goroutine and waits for it
func (m *Mixer) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopChan)
	}
	m.done.Wait()
}

// Play queues cue at gain; drops it when the queue is full
func (m *Mixer) Play(cue Cue, gain float64) bool {
	if m.stopped.Load() {
		return false
	}
	select {
	case m.queue <- playRequest{cue: cue, gain: gain}:
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// Errors reports the first write failure
func (m *Mixer) Errors() <-chan error {
	return m.errChan
}

func (m *Mixer) Stats() (played, dropped uint64) {
	return m.played.Load(), m.dropped.Load()
}

func (m *Mixer) loop() {
	defer m.done.Done()

	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	mixBuf := make([]float64, BufferSamples)
	outBytes := make([]byte, BufferSamples*BytesPerFrame)

	for {
		select {
		case <-m.stopChan:
			return

		case req := <-m.queue:
			m.start(req)

		case <-ticker.C:
			clear(mixBuf)
			m.active = mixVoices(m.active, mixBuf)
			floatToBytes(mixBuf, outBytes)

			if _, err := m.output.Write(outBytes); err != nil {
				select {
				case m.errChan <- fmt.Errorf("%w: %w", ErrPipeClosed, err):
				default:
				}
				return
			}
		}
	}
}

func (m *Mixer) start(req playRequest) {
	buf := m.cache.get(req.cue)
	if len(buf) == 0 || req.gain <= 0 {
		return
	}
	m.active = append(m.active, voice{buffer: buf, gain: req.gain})
	m.played.Add(1)
}

// mixVoices adds every voice into buf and returns the unfinished ones
func mixVoices(active []voice, buf []float64) []voice {
	remaining := active[:0]
	for i := range active {
		v := active[i]
		for j := 0; j < len(buf) && v.pos < len(v.buffer); j++ {
			buf[j] += v.buffer[v.pos] * v.gain
			v.pos++
		}
		if v.pos < len(v.buffer) {
			remaining = append(remaining, v)
		}
	}
	return remaining
}

// floatToBytes converts mono floats to interleaved stereo int16 LE
// A soft knee above 0.8 precedes the hard clip
func floatToBytes(in []float64, out []byte) {
	for i, v := range in {
		if v > 0.8 {
			v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
		} else if v < -0.8 {
			v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
		}
		v = max(-1.0, min(1.0, v))

		s := uint16(int16(v * 32767))
		idx := i * BytesPerFrame
		binary.LittleEndian.PutUint16(out[idx:], s)
		binary.LittleEndian.PutUint16(out[idx+2:], s)
	}
}
