package audio

import (
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"
)

const testRate = beep.SampleRate(SampleRate)

func TestOscillatorStaysInRange(t *testing.T) {
	for _, wave := range []WaveType{WaveSine, WaveSquare, WaveSaw, WaveNoise} {
		osc := NewOscillator(440, 20*time.Millisecond, wave, testRate)
		samples := make([][2]float64, 256)
		n, ok := osc.Stream(samples)
		if !ok || n != 256 {
			t.Fatalf("wave %d: streamed %d ok=%v", wave, n, ok)
		}
		for i := 0; i < n; i++ {
			if samples[i][0] < -1 || samples[i][0] > 1 {
				t.Fatalf("wave %d: sample %d out of range: %f", wave, i, samples[i][0])
			}
			if samples[i][0] != samples[i][1] {
				t.Fatalf("wave %d: channels differ at %d", wave, i)
			}
		}
	}
}

func TestOscillatorEndsAtDuration(t *testing.T) {
	d := 10 * time.Millisecond
	osc := NewOscillator(220, d, WaveSquare, testRate)
	total := 0
	buf := make([][2]float64, 100)
	for {
		n, ok := osc.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	if want := testRate.N(d); total != want {
		t.Errorf("streamed %d samples, want %d", total, want)
	}
}

func TestEnvelopeShape(t *testing.T) {
	d := 20 * time.Millisecond
	src := NewOscillator(0, d, WaveSquare, testRate) // constant 1.0
	env := NewEnvelope(src, d, 5*time.Millisecond, 5*time.Millisecond, testRate)

	out := render(env)
	if len(out) != testRate.N(d) {
		t.Fatalf("rendered %d samples, want %d", len(out), testRate.N(d))
	}
	if out[0] != 0 {
		t.Errorf("attack should start at zero, got %f", out[0])
	}
	mid := len(out) / 2
	if math.Abs(out[mid]-1) > 1e-9 {
		t.Errorf("sustain should be unity, got %f", out[mid])
	}
	if last := out[len(out)-1]; last > 0.01 {
		t.Errorf("release should end near zero, got %f", last)
	}
}

func TestCueStreamersRender(t *testing.T) {
	for cue := Cue(0); cue < cueCount; cue++ {
		buf := render(CueStreamer(cue, testRate))
		if len(buf) == 0 {
			t.Fatalf("%s rendered empty", cue)
		}
		if len(buf) >= maxCueSamples {
			t.Errorf("%s did not terminate", cue)
		}
		peak := 0.0
		for _, v := range buf {
			peak = math.Max(peak, math.Abs(v))
		}
		if peak == 0 {
			t.Errorf("%s is silent", cue)
		}
	}

	if CueStreamer(cueCount, testRate) != nil {
		t.Error("unknown cue should have no streamer")
	}
}

func TestSoundCacheRendersOnce(t *testing.T) {
	c := newSoundCache()
	a := c.get(CueRollback)
	b := c.get(CueRollback)
	if len(a) == 0 || &a[0] != &b[0] {
		t.Error("second get should return the cached buffer")
	}
	if c.get(Cue(-1)) != nil {
		t.Error("negative cue should miss")
	}
}

func TestConfigGain(t *testing.T) {
	cfg := DefaultConfig().WithExponent(-1)
	if cfg.MasterVolume != 0.5 {
		t.Errorf("exponent -1 should halve, got %f", cfg.MasterVolume)
	}
	if g := cfg.gain(CueContact); math.Abs(g-0.3) > 1e-9 {
		t.Errorf("contact gain = %f, want 0.3", g)
	}
	if cfg.WithExponent(3).MasterVolume != 1 {
		t.Error("master volume should clamp at 1")
	}
	if cfg.gain(cueCount) != 0 {
		t.Error("unknown cue should be silent")
	}
}
