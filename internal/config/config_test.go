package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capture.RadiusMeters != 50 {
		t.Fatalf("capture radius = %f, want 50", cfg.Capture.RadiusMeters)
	}
	if cfg.Capture.Cooldown != 120*time.Second {
		t.Fatalf("capture cooldown = %v, want 120s", cfg.Capture.Cooldown)
	}
	if cfg.Capture.Probability != 30 {
		t.Fatalf("capture probability = %d, want 30", cfg.Capture.Probability)
	}
	if cfg.Presence.SimulationWindow != 120*time.Second {
		t.Fatalf("simulation window = %v, want 120s", cfg.Presence.SimulationWindow)
	}
	if cfg.Presence.OnlineWindow != 300*time.Second {
		t.Fatalf("online window = %v, want 300s", cfg.Presence.OnlineWindow)
	}
	if cfg.Simulation.Interval != 5*time.Second {
		t.Fatalf("simulation interval = %v, want 5s", cfg.Simulation.Interval)
	}
	if cfg.Simulation.RetryBackoff != 10*time.Second {
		t.Fatalf("retry backoff = %v, want 10s", cfg.Simulation.RetryBackoff)
	}
	if cfg.Movement.ThreatMeters != 200 {
		t.Fatalf("threat distance = %f, want 200", cfg.Movement.ThreatMeters)
	}
	if !cfg.Simulation.Enabled {
		t.Fatal("default config should enable the simulation loop")
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	raw := `
server:
  port: 9090
capture:
  radius_meters: 75
  probability: 55
simulation:
  demo_auto_start: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Capture.RadiusMeters != 75 {
		t.Fatalf("capture radius = %f, want 75", cfg.Capture.RadiusMeters)
	}
	if cfg.Capture.Probability != 55 {
		t.Fatalf("capture probability = %d, want 55", cfg.Capture.Probability)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("server port = %d, want 9090", cfg.Server.Port)
	}
	if !cfg.Simulation.DemoAutoStart {
		t.Fatal("demo_auto_start should be true")
	}
	// Untouched sections keep their defaults.
	if cfg.Capture.Cooldown != 120*time.Second {
		t.Fatalf("capture cooldown = %v, want default 120s", cfg.Capture.Cooldown)
	}
	if cfg.Simulation.Interval != 5*time.Second {
		t.Fatalf("simulation interval = %v, want default 5s", cfg.Simulation.Interval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
