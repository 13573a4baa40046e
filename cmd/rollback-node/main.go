// Command rollback-node runs a headless session peer
// It serves or dials according to the network section, drives the local
// participant from a seeded autopilot and can trace every live tick to CSV
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/lixenwraith/rollback/arena"
	"github.com/lixenwraith/rollback/config"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/network"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/status"
	"github.com/lixenwraith/rollback/telemetry"
)

var (
	configPath  = flag.String("config", "", "YAML file overlaying the built-in defaults")
	duration    = flag.Duration("duration", 0, "stop after this long; 0 runs until interrupted")
	statusEvery = flag.Duration("status", 5*time.Second, "interval of the status log line; 0 disables")
	seed        = flag.Uint64("seed", 0, "autopilot seed; 0 derives one from the participant id")
	dumpConfig  = flag.String("dump-config", "", "write the effective configuration to this file and exit")
)

// errNoSession is returned when a client has no session to join
var errNoSession = errors.New("network.session is required for the client role")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *dumpConfig != "" {
		if err := cfg.WriteYAML(*dumpConfig); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, logFile, err := config.SetupLogging(cfg.Log, "node")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("node failed", "err", err)
		fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
}

// sessionID picks the id announced in the handshake
func sessionID(cfg *config.Config) (uuid.UUID, error) {
	if cfg.Derived.Session != uuid.Nil {
		return cfg.Derived.Session, nil
	}
	if cfg.Derived.Role == network.RoleClient {
		return uuid.Nil, errNoSession
	}
	return uuid.New(), nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	id, err := sessionID(cfg)
	if err != nil {
		return err
	}
	reg := status.NewRegistry()

	sim, err := engine.NewSimulation(cfg.EngineConfig(), physics.NewWorld(cfg.PhysicsConfig()), reg, logger)
	if err != nil {
		return err
	}
	session, err := input.NewSession(cfg.SessionConfig(), reg, logger)
	if err != nil {
		return err
	}
	local := cfg.Local()
	for _, pid := range cfg.Participants() {
		if err := session.AddParticipant(pid, pid == local); err != nil {
			return err
		}
	}
	if _, err := arena.Build(sim, session, cfg.PlayerBody); err != nil {
		return err
	}

	pilotSeed := *seed
	if pilotSeed == 0 {
		pilotSeed = uint64(local) + 1
	}
	session.SetSource(newAutopilot(pilotSeed, cfg.Simulation.TickRate))
	session.Attach(sim)
	input.NewDriver(session, cfg.DriverConfig()).Attach(sim)

	svc := network.NewService(cfg.NetworkConfig(), session, cfg.Hello(id), reg, logger)
	if cfg.Derived.Role != network.RoleNone {
		session.SetSender(svc)
	}
	if err := svc.Start(); err != nil {
		return err
	}
	defer svc.Stop()
	logger.Info("node started", "session", id, "participant", local, "role", cfg.Derived.Role.String(), "addr", svc.Addr())

	var rec *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		if rec, err = telemetry.OpenRecorder(cfg.Telemetry.Dir, reg); err != nil {
			return err
		}
		rec.Attach(sim)
	}

	if *statusEvery > 0 {
		go logStatus(ctx, reg, logger, *statusEvery)
	}

	runErr := sim.Run(ctx, nil)

	if rec != nil {
		rep := rec.Summary()
		logger.Info("telemetry summary",
			"rollbacks", rep.Rollbacks, "mean_depth", rep.MeanDepth,
			"stddev_depth", rep.StdDevDepth, "max_depth", rep.MaxDepth,
			"live_ticks", rep.LiveTicks, "resim_ticks", rep.ResimTicks)
		if err := rec.Close(); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	logger.Info("node stopped", "tick", sim.Tick())
	return runErr
}

// logStatus writes every metric as one record per interval
func logStatus(ctx context.Context, reg *status.Registry, logger *slog.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics := reg.Collect()
			attrs := make([]any, 0, len(metrics))
			for _, m := range metrics {
				attrs = append(attrs, slog.String(m.Key, m.Value))
			}
			logger.Info("status", attrs...)
		}
	}
}
