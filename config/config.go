// Package config loads the YAML configuration shared by the sandbox and the node
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/rollback/audio"
	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/network"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/vmath"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("config: invalid value")

// Config holds every tunable, as read from YAML
// Floats stop here: Derived holds the fixed-point values the simulation uses
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Player     PlayerConfig     `yaml:"player"`
	Network    NetworkConfig    `yaml:"network"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Audio      AudioConfig      `yaml:"audio"`
	Log        LogConfig        `yaml:"log"`

	Derived DerivedConfig `yaml:"-"`
}

type SimulationConfig struct {
	TickRate        int `yaml:"tick_rate"`
	HistoryTicks    int `yaml:"history_ticks"` // rollback horizon
	InputDelay      int `yaml:"input_delay"`   // ticks between local capture and use
	MaxTicksPerPoll int `yaml:"max_ticks_per_poll"`
	MaxBacklogTicks int `yaml:"max_backlog_ticks"`
	InboxSize       int `yaml:"inbox_size"`
	Participants    int `yaml:"participants"` // ids 0..participants-1
}

type PhysicsConfig struct {
	GravityY          float64 `yaml:"gravity_y"`
	Damping           float64 `yaml:"damping"` // fraction of velocity kept per step
	CorrectionPercent float64 `yaml:"correction_percent"`
	Slop              float64 `yaml:"slop"`
	Iterations        int     `yaml:"iterations"`
}

// PlayerConfig shapes the box each participant drives
type PlayerConfig struct {
	MoveForce  float64 `yaml:"move_force"`
	JumpForce  float64 `yaml:"jump_force"`
	MaxSpeed   float64 `yaml:"max_speed"`
	Mass       float64 `yaml:"mass"`
	HalfWidth  float64 `yaml:"half_width"`
	HalfHeight float64 `yaml:"half_height"`
	Friction   float64 `yaml:"friction"`
}

type NetworkConfig struct {
	Role              string        `yaml:"role"`      // none, client, server
	Transport         string        `yaml:"transport"` // tcp, websocket
	Address           string        `yaml:"address"`
	Path              string        `yaml:"path"`
	Session           string        `yaml:"session"` // uuid; empty lets a server pick one
	Participant       int           `yaml:"participant"`
	MaxPeers          int           `yaml:"max_peers"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout"`
	SendQueueSize     int           `yaml:"send_queue_size"`
}

type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type AudioConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"` // beep volume exponent, base 2
}

type LogConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
}

// DerivedConfig holds values computed once after loading
type DerivedConfig struct {
	TickInterval time.Duration
	Gravity      vmath.Vec2
	Damping      int64
	Correction   int64
	Slop         int64
	MoveForce    int64
	JumpForce    int64
	MaxSpeed     int64
	Mass         int64
	HalfWidth    int64
	HalfHeight   int64
	Friction     int64
	Role         network.Role
	Transport    network.TransportKind
	Session      uuid.UUID // uuid.Nil when unset
}

// Load reads the embedded defaults, then overlays path when it is not empty
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first out-of-range value, wrapping ErrInvalid
func (c *Config) Validate() error {
	s := c.Simulation
	switch {
	case s.TickRate <= 0:
		return fmt.Errorf("%w: simulation.tick_rate %d", ErrInvalid, s.TickRate)
	case s.HistoryTicks <= 0:
		return fmt.Errorf("%w: simulation.history_ticks %d", ErrInvalid, s.HistoryTicks)
	case s.InputDelay < 0 || s.InputDelay >= s.HistoryTicks:
		return fmt.Errorf("%w: simulation.input_delay %d outside [0, history_ticks)", ErrInvalid, s.InputDelay)
	case s.MaxTicksPerPoll <= 0:
		return fmt.Errorf("%w: simulation.max_ticks_per_poll %d", ErrInvalid, s.MaxTicksPerPoll)
	case s.MaxBacklogTicks < s.MaxTicksPerPoll:
		return fmt.Errorf("%w: simulation.max_backlog_ticks %d below max_ticks_per_poll", ErrInvalid, s.MaxBacklogTicks)
	case s.InboxSize <= 0:
		return fmt.Errorf("%w: simulation.inbox_size %d", ErrInvalid, s.InboxSize)
	case s.Participants <= 0 || s.Participants > 0xffff:
		return fmt.Errorf("%w: simulation.participants %d", ErrInvalid, s.Participants)
	}

	p := c.Physics
	switch {
	case p.Damping <= 0 || p.Damping > 1:
		return fmt.Errorf("%w: physics.damping %g outside (0, 1]", ErrInvalid, p.Damping)
	case p.CorrectionPercent < 0 || p.CorrectionPercent > 1:
		return fmt.Errorf("%w: physics.correction_percent %g outside [0, 1]", ErrInvalid, p.CorrectionPercent)
	case p.Slop < 0:
		return fmt.Errorf("%w: physics.slop %g", ErrInvalid, p.Slop)
	case p.Iterations <= 0:
		return fmt.Errorf("%w: physics.iterations %d", ErrInvalid, p.Iterations)
	}

	pl := c.Player
	if pl.Mass <= 0 || pl.HalfWidth <= 0 || pl.HalfHeight <= 0 {
		return fmt.Errorf("%w: player mass and extents must be positive", ErrInvalid)
	}
	if pl.MaxSpeed < 0 || pl.Friction < 0 {
		return fmt.Errorf("%w: player max_speed and friction must not be negative", ErrInvalid)
	}

	n := c.Network
	if n.Participant < 0 || n.Participant >= s.Participants {
		return fmt.Errorf("%w: network.participant %d outside [0, %d)", ErrInvalid, n.Participant, s.Participants)
	}
	if _, err := network.ParseRole(n.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := network.ParseTransport(n.Transport); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if n.Session != "" {
		if _, err := uuid.Parse(n.Session); err != nil {
			return fmt.Errorf("%w: network.session: %w", ErrInvalid, err)
		}
	}
	return nil
}

// computeDerived converts floats to fixed point; Validate must pass first
func (c *Config) computeDerived() error {
	d := &c.Derived
	d.TickInterval = core.TickInterval(c.Simulation.TickRate)
	d.Gravity = vmath.V2(0, vmath.FromFloat(c.Physics.GravityY))
	d.Damping = vmath.FromFloat(c.Physics.Damping)
	d.Correction = vmath.FromFloat(c.Physics.CorrectionPercent)
	d.Slop = vmath.FromFloat(c.Physics.Slop)
	d.MoveForce = vmath.FromFloat(c.Player.MoveForce)
	d.JumpForce = vmath.FromFloat(c.Player.JumpForce)
	d.MaxSpeed = vmath.FromFloat(c.Player.MaxSpeed)
	d.Mass = vmath.FromFloat(c.Player.Mass)
	d.HalfWidth = vmath.FromFloat(c.Player.HalfWidth)
	d.HalfHeight = vmath.FromFloat(c.Player.HalfHeight)
	d.Friction = vmath.FromFloat(c.Player.Friction)

	var err error
	if d.Role, err = network.ParseRole(c.Network.Role); err != nil {
		return err
	}
	if d.Transport, err = network.ParseTransport(c.Network.Transport); err != nil {
		return err
	}
	d.Session = uuid.Nil
	if c.Network.Session != "" {
		d.Session = uuid.MustParse(c.Network.Session)
	}
	return nil
}

// EngineConfig returns the scheduler settings
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		TickRate:        c.Simulation.TickRate,
		HistoryTicks:    c.Simulation.HistoryTicks,
		MaxTicksPerPoll: c.Simulation.MaxTicksPerPoll,
		MaxBacklogTicks: c.Simulation.MaxBacklogTicks,
	}
}

func (c *Config) PhysicsConfig() physics.Config {
	return physics.Config{
		Damping:           c.Derived.Damping,
		CorrectionPercent: c.Derived.Correction,
		Slop:              c.Derived.Slop,
		Iterations:        c.Physics.Iterations,
	}
}

func (c *Config) SessionConfig() input.SessionConfig {
	return input.SessionConfig{
		Horizon:   c.Simulation.HistoryTicks,
		Delay:     c.Simulation.InputDelay,
		InboxSize: c.Simulation.InboxSize,
	}
}

func (c *Config) DriverConfig() input.DriverConfig {
	return input.DriverConfig{
		MoveForce: c.Derived.MoveForce,
		JumpForce: c.Derived.JumpForce,
	}
}

// Participants returns every session participant id in ascending order
func (c *Config) Participants() []input.ParticipantID {
	ids := make([]input.ParticipantID, c.Simulation.Participants)
	for i := range ids {
		ids[i] = input.ParticipantID(i)
	}
	return ids
}

// Local is the participant this process captures input for
func (c *Config) Local() input.ParticipantID {
	return input.ParticipantID(c.Network.Participant)
}

func (c *Config) AudioConfig() *audio.Config {
	cfg := audio.DefaultConfig().WithExponent(c.Audio.Volume)
	cfg.Enabled = c.Audio.Enabled
	return cfg
}

// PlayerBody describes a participant's box at x, y (world units)
func (c *Config) PlayerBody(x, y int64) physics.BodyDesc {
	d := c.Derived
	shape := physics.Box(d.HalfWidth, d.HalfHeight).WithMaterial(physics.DefaultRestitution, d.Friction)
	return physics.BodyDesc{
		Kind:           physics.Dynamic,
		Position:       vmath.V2(x, y),
		Mass:           d.Mass,
		Gravity:        d.Gravity,
		MaxSpeed:       d.MaxSpeed,
		FreezeRotation: true,
		Shapes:         []physics.Shape{shape},
	}
}

func (c *Config) NetworkConfig() *network.Config {
	n := c.Network
	cfg := network.DefaultConfig()
	cfg.Role = c.Derived.Role
	cfg.Transport = c.Derived.Transport
	cfg.Address = n.Address
	cfg.Path = n.Path
	cfg.MaxPeers = n.MaxPeers
	cfg.ConnectTimeout = n.ConnectTimeout
	cfg.WriteTimeout = n.WriteTimeout
	cfg.HeartbeatInterval = n.HeartbeatInterval
	cfg.DisconnectTimeout = n.DisconnectTimeout
	cfg.SendQueueSize = n.SendQueueSize
	return cfg
}

// Hello builds the handshake this node announces
func (c *Config) Hello(session uuid.UUID) network.Hello {
	return network.Hello{
		Session:     session,
		Participant: c.Local(),
		TickRate:    c.Simulation.TickRate,
		Horizon:     c.Simulation.HistoryTicks,
		Delay:       c.Simulation.InputDelay,
	}
}

// WriteYAML writes the configuration to a YAML file
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
