package audio

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// pipeBackends lists CLI players in preference order
var pipeBackends = []struct {
	typ  BackendType
	name string
	args func(rate, channels string) []string
}{
	{BackendPulse, "pacat", func(rate, ch string) []string {
		return []string{"--raw", "--format=s16le", "--rate=" + rate, "--channels=" + ch, "--latency-msec=50", "--playback"}
	}},
	{BackendPipeWire, "pw-cat", func(rate, ch string) []string {
		return []string{"--playback", "--format=s16", "--rate=" + rate, "--channels=" + ch, "--latency=50ms", "-"}
	}},
	{BackendALSA, "aplay", func(rate, ch string) []string {
		return []string{"-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch, "-q"}
	}},
	{BackendSoX, "play", func(rate, ch string) []string {
		return []string{"-t", "raw", "-e", "signed", "-b", "16", "-c", ch, "-r", rate, "-", "-d", "-q"}
	}},
	{BackendFFplay, "ffplay", func(rate, ch string) []string {
		return []string{"-nodisp", "-autoexit", "-f", "s16le", "-ac", ch, "-ar", rate,
			"-probesize", "32", "-analyzeduration", "0", "-i", "pipe:0", "-loglevel", "quiet"}
	}},
}

// DetectBackend finds a player accepting raw s16le stereo on stdin
// FreeBSD falls back to writing /dev/dsp directly
func DetectBackend() (*BackendConfig, error) {
	rate, ch := strconv.Itoa(SampleRate), strconv.Itoa(Channels)
	for _, b := range pipeBackends {
		path, err := exec.LookPath(b.name)
		if err != nil {
			continue
		}
		return &BackendConfig{Type: b.typ, Name: b.name, Path: path, Args: b.args(rate, ch)}, nil
	}

	if runtime.GOOS == "freebsd" {
		if _, err := os.Stat("/dev/dsp"); err == nil {
			return &BackendConfig{Type: BackendOSS, Name: "oss", Path: "/dev/dsp"}, nil
		}
	}
	return nil, ErrNoAudioBackend
}
