package audio

import (
	"sync"

	"github.com/gopxl/beep"
)

// floatBuffer is mono float64 samples at unity gain
type floatBuffer []float64

// soundCache stores cues rendered once from their beep streamers
type soundCache struct {
	mu    sync.RWMutex
	store [cueCount]floatBuffer
	ready [cueCount]bool
}

func newSoundCache() *soundCache {
	return &soundCache{}
}

// get returns the cached buffer, rendering on first use
func (c *soundCache) get(cue Cue) floatBuffer {
	if cue < 0 || cue >= cueCount {
		return nil
	}

	c.mu.RLock()
	if c.ready[cue] {
		buf := c.store[cue]
		c.mu.RUnlock()
		return buf
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready[cue] {
		return c.store[cue]
	}
	buf := render(CueStreamer(cue, SampleRate))
	c.store[cue] = buf
	c.ready[cue] = true
	return buf
}

func (c *soundCache) preload() {
	for cue := Cue(0); cue < cueCount; cue++ {
		c.get(cue)
	}
}

// maxCueSamples bounds rendering of a streamer that never drains
const maxCueSamples = 2 * SampleRate

// render drains s and keeps the left channel
func render(s beep.Streamer) floatBuffer {
	if s == nil {
		return nil
	}
	var out floatBuffer
	chunk := make([][2]float64, 512)
	for len(out) < maxCueSamples {
		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			out = append(out, chunk[i][0])
		}
		if !ok || n == 0 {
			break
		}
	}
	return out
}
