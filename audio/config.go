package audio

import "math"

// Config controls playback; volumes are linear gains in [0, 1]
type Config struct {
	Enabled      bool
	MasterVolume float64
	CueVolumes   [cueCount]float64
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		MasterVolume: 0.5,
		CueVolumes: [cueCount]float64{
			CueContact:  0.6,
			CueRollback: 0.25,
		},
	}
}

// WithExponent sets MasterVolume from a base 2 exponent, the unit of
// beep's effects.Volume; 0 is unity, -1 is half
func (c *Config) WithExponent(exp float64) *Config {
	c.MasterVolume = math.Min(1, math.Exp2(exp))
	return c
}

func (c *Config) gain(cue Cue) float64 {
	if cue < 0 || cue >= cueCount {
		return 0
	}
	return c.MasterVolume * c.CueVolumes[cue]
}
