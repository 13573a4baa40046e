package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/rollback/network"
	"github.com/lixenwraith/rollback/vmath"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollback.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Simulation.TickRate)
	assert.Equal(t, 360, cfg.Simulation.HistoryTicks)
	assert.Equal(t, 2, cfg.Simulation.InputDelay)
	assert.Equal(t, network.RoleNone, cfg.Derived.Role)
	assert.Equal(t, uuid.Nil, cfg.Derived.Session)
	assert.Equal(t, time.Second/120, cfg.Derived.TickInterval)

	assert.Equal(t, vmath.V2(0, -vmath.FromInt(20)), cfg.Derived.Gravity)
	assert.Equal(t, int64(vmath.Scale), cfg.Derived.Damping)
	assert.Equal(t, vmath.FromInt(1)/2, cfg.Derived.HalfWidth)
	assert.Equal(t, 10*time.Second, cfg.Network.DisconnectTimeout)

	e := cfg.EngineConfig()
	assert.Equal(t, cfg.Simulation.HistoryTicks, e.HistoryTicks)
	s := cfg.SessionConfig()
	assert.Equal(t, e.HistoryTicks, s.Horizon)
}

func TestLoadOverlaysUserFile(t *testing.T) {
	id := uuid.New()
	path := writeConfig(t, `
simulation:
  tick_rate: 60
  participants: 4
network:
  role: client
  transport: websocket
  address: "10.0.0.2:9000"
  session: "`+id.String()+`"
  participant: 3
  heartbeat_interval: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Simulation.TickRate)
	assert.Equal(t, 360, cfg.Simulation.HistoryTicks, "fields absent from the file keep defaults")
	assert.Equal(t, id, cfg.Derived.Session)

	n := cfg.NetworkConfig()
	assert.Equal(t, network.RoleClient, n.Role)
	assert.Equal(t, network.TransportWebSocket, n.Transport)
	assert.Equal(t, 250*time.Millisecond, n.HeartbeatInterval)

	assert.Len(t, cfg.Participants(), 4)
	assert.EqualValues(t, 3, cfg.Local())

	h := cfg.Hello(id)
	assert.EqualValues(t, 3, h.Participant)
	assert.Equal(t, 60, h.TickRate)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"tick rate":    "simulation:\n  tick_rate: 0\n",
		"delay":        "simulation:\n  input_delay: 360\n",
		"backlog":      "simulation:\n  max_backlog_ticks: 0\n",
		"damping":      "physics:\n  damping: 1.5\n",
		"iterations":   "physics:\n  iterations: 0\n",
		"player mass":  "player:\n  mass: 0\n",
		"role":         "network:\n  role: relay\n",
		"transport":    "network:\n  transport: udp\n",
		"session":      "network:\n  session: not-a-uuid\n",
		"participant":  "network:\n  participant: 2\n",
		"participants": "simulation:\n  participants: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadReportsFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "simulation: [1, 2"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestPlayerBodyUsesDerivedValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	desc := cfg.PlayerBody(vmath.FromInt(2), vmath.FromInt(3))
	assert.Equal(t, cfg.Derived.Mass, desc.Mass)
	assert.True(t, desc.FreezeRotation)
	require.Len(t, desc.Shapes, 1)
	assert.Equal(t, cfg.Derived.Friction, desc.Shapes[0].Friction)
}

func TestAudioConfigFromExponent(t *testing.T) {
	cfg, err := Load(writeConfig(t, "audio:\n  enabled: false\n  volume: -2.0\n"))
	require.NoError(t, err)

	a := cfg.AudioConfig()
	assert.False(t, a.Enabled)
	assert.InDelta(t, 0.25, a.MasterVolume, 1e-9)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Simulation.TickRate = 90

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, again.Simulation.TickRate)
	assert.Equal(t, cfg.Network.ConnectTimeout, again.Network.ConnectTimeout)
}
