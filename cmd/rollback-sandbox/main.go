// Command rollback-sandbox shows a two-participant arena in the terminal
// The second participant's input loops back with artificial latency, so
// corrections and the rollbacks they cause are visible and audible
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/rollback/arena"
	"github.com/lixenwraith/rollback/audio"
	"github.com/lixenwraith/rollback/config"
	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
)

const frameInterval = time.Second / 60

var (
	configPath = flag.String("config", "", "YAML file overlaying the built-in defaults")
	latency    = flag.Duration("latency", 120*time.Millisecond, "one-way delay of the looped-back participant")
	jitter     = flag.Duration("jitter", 40*time.Millisecond, "random extra delay added per message")
	seed       = flag.Uint64("seed", 7, "seed of the looped-back participant's choices")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, logFile, err := config.SetupLogging(cfg.Log, "sandbox")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", err)
		os.Exit(1)
	}

	// Restore the terminal before printing a crash
	defer func() {
		if r := recover(); r != nil {
			screen.Fini()
			fmt.Fprintf(os.Stderr, "\n\x1b[31mSANDBOX CRASHED: %v\x1b[0m\n", r)
			fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	err = run(cfg, screen, logger)
	screen.Fini()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, screen tcell.Screen, logger *slog.Logger) error {
	reg := status.NewRegistry()

	world := physics.NewWorld(cfg.PhysicsConfig())
	sim, err := engine.NewSimulation(cfg.EngineConfig(), world, reg, logger)
	if err != nil {
		return err
	}
	session, err := input.NewSession(cfg.SessionConfig(), reg, logger)
	if err != nil {
		return err
	}

	// The sandbox always plays participant 0 against a looped-back participant 1
	const local, remote = input.ParticipantID(0), input.ParticipantID(1)
	if err := session.AddParticipant(local, true); err != nil {
		return err
	}
	if err := session.AddParticipant(remote, false); err != nil {
		return err
	}
	a, err := arena.Build(sim, session, cfg.PlayerBody)
	if err != nil {
		return err
	}

	keys := newKeyboard()
	session.SetSource(keys)
	session.Attach(sim)
	input.NewDriver(session, cfg.DriverConfig()).Attach(sim)

	sent := reg.Ints.Get("sandbox.remote_sent")
	frameMs := reg.Floats.Get("sandbox.frame_ms")
	bot := newLoopback(session, remote, *latency, *jitter, *seed, sent)
	bot.Attach(sim)
	defer bot.Stop()

	player := audio.NewPlayer(cfg.AudioConfig(), logger)
	if err := player.Start(); err != nil {
		logger.Warn("audio unavailable", "err", err)
	}
	defer player.Stop()
	audio.NewObserver(player).Attach(sim)

	// Listeners run inside Poll on this goroutine
	rolledBack := false
	sim.OnRollback(func(from, to core.Tick) { rolledBack = true })

	v := newView(screen, a, local)
	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	defer close(quit)

	frame := time.NewTicker(frameInterval)
	defer frame.Stop()

	flashUntil := time.Time{}
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				v.resize()
			case *tcell.EventKey:
				switch act := lookup(ev); act {
				case ActionQuit:
					return nil
				case ActionPause:
					if sim.Paused() {
						sim.Resume()
					} else {
						sim.Pause()
					}
				case ActionMute:
					player.ToggleMute()
				default:
					keys.apply(act)
				}
			}

		case now := <-frame.C:
			if _, err := sim.Poll(now); err != nil {
				return err
			}
			if rolledBack {
				rolledBack = false
				flashUntil = now.Add(150 * time.Millisecond)
			}
			v.draw(sim, reg, hud{
				latency:     latency.String(),
				paused:      sim.Paused(),
				sound:       player.Enabled(),
				flash:       now.Before(flashUntil),
				remoteSends: sent.Load(),
			})
			frameMs.Store(float64(time.Since(now).Microseconds()) / 1000)
		}
	}
}
