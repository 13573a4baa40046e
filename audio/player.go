// Package audio plays short cues for simulation events through a CLI backend
package audio

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Player owns the backend process and the mixer feeding it
// With no usable backend it runs silent: Play reports false and nothing fails
type Player struct {
	config *Config
	cache  *soundCache
	mixer  *Mixer
	log    *slog.Logger

	backend *BackendConfig
	cmd     *exec.Cmd
	sink    io.Closer

	running atomic.Bool
	muted   atomic.Bool
	silent  atomic.Bool

	mu sync.RWMutex // Protects config
	wg sync.WaitGroup
}

// NewPlayer creates a stopped player; nil cfg takes DefaultConfig
func NewPlayer(cfg *Config, log *slog.Logger) *Player {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Player{
		config: cfg,
		cache:  newSoundCache(),
		log:    log.With("component", "audio"),
	}
	p.muted.Store(!cfg.Enabled)
	return p
}

// Start detects a backend and starts mixing into it
func (p *Player) Start() error {
	if p.running.Load() {
		return nil
	}

	backend, err := DetectBackend()
	if err != nil {
		p.goSilent("no backend", err)
		return nil
	}
	p.backend = backend

	if backend.Type == BackendOSS {
		f, err := os.OpenFile(backend.Path, os.O_WRONLY, 0)
		if err != nil {
			p.goSilent("open device", err)
			return nil
		}
		return p.StartWithWriter(f, f)
	}

	cmd := exec.Command(backend.Path, backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.goSilent("stdin pipe", err)
		return nil
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		p.goSilent("start backend", err)
		return nil
	}
	p.cmd = cmd

	p.wg.Add(1)
	go p.monitorProcess()
	p.log.Info("audio backend started", "backend", backend.Name)
	return p.StartWithWriter(stdin, stdin)
}

// StartWithWriter mixes into w instead of a detected backend; closer may be nil
func (p *Player) StartWithWriter(w io.Writer, closer io.Closer) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	p.cache.preload()
	p.sink = closer
	p.mixer = NewMixer(w, p.cache)
	p.mixer.Start()

	p.wg.Add(1)
	go p.monitorMixer()
	return nil
}

func (p *Player) goSilent(step string, err error) {
	p.silent.Store(true)
	p.running.Store(true)
	p.log.Debug("audio disabled", "step", step, "err", err)
}

func (p *Player) monitorProcess() {
	defer p.wg.Done()
	if err := p.cmd.Wait(); err != nil && p.running.Load() {
		p.silent.Store(true)
	}
}

func (p *Player) monitorMixer() {
	defer p.wg.Done()
	select {
	case err := <-p.mixer.Errors():
		p.silent.Store(true)
		p.log.Debug("audio output failed", "err", err)
	case <-p.mixer.stopChan:
	}
}

// Stop terminates mixing and the backend process
func (p *Player) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	if p.mixer != nil {
		p.mixer.Stop()
	}
	if p.sink != nil {
		p.sink.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.wg.Wait()
}

// Play queues cue; false when muted, silent, stopped or the queue is full
func (p *Player) Play(cue Cue) bool {
	if !p.Enabled() || p.mixer == nil {
		return false
	}
	p.mu.RLock()
	gain := p.config.gain(cue)
	p.mu.RUnlock()
	return p.mixer.Play(cue, gain)
}

// ToggleMute flips mute and reports whether sound is now on
func (p *Player) ToggleMute() bool {
	muted := !p.muted.Load()
	p.muted.Store(muted)
	return !muted
}

func (p *Player) Enabled() bool {
	return p.running.Load() && !p.muted.Load() && !p.silent.Load()
}

func (p *Player) Silent() bool {
	return p.silent.Load()
}

// SetVolume updates the master gain, clamped to [0, 1]
func (p *Player) SetVolume(vol float64) {
	p.mu.Lock()
	p.config.MasterVolume = max(0, min(1, vol))
	p.mu.Unlock()
}

// Stats returns cues played and dropped by the mixer
func (p *Player) Stats() (played, dropped uint64) {
	if p.mixer == nil {
		return 0, 0
	}
	return p.mixer.Stats()
}
