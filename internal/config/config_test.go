package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func newTestFlagSet() *pflag.FlagSet {
	return pflag.NewFlagSet("test", pflag.ContinueOnError)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Environment != DefaultEnvironment {
		t.Errorf("expected environment %s, got %s", DefaultEnvironment, cfg.Environment)
	}
	if len(cfg.Gateways) != 1 {
		t.Fatalf("expected 1 default gateway, got %d", len(cfg.Gateways))
	}
	if cfg.Gateways[0].Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Gateways[0].Port)
	}
	if cfg.Gateways[0].Host != DefaultHost {
		t.Errorf("expected host %s, got %s", DefaultHost, cfg.Gateways[0].Host)
	}
	if !cfg.GracefulShutdown {
		t.Error("expected GracefulShutdown to default true")
	}
	if !cfg.HandleSignals {
		t.Error("expected HandleSignals to default true")
	}
}

func TestLoadConfig_WithoutFile(t *testing.T) {
	fs := Flags(newTestFlagSet())
	cfg, err := Load(fs, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateways[0].Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, cfg.Gateways[0].Port)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	fs := Flags(newTestFlagSet())
	if err := fs.Parse([]string{"--port", "9999", "--host", "127.0.0.1", "--log-level", "debug"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	cfg, err := Load(fs, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateways[0].Port != 9999 {
		t.Errorf("expected overridden port 9999, got %d", cfg.Gateways[0].Port)
	}
	if cfg.Gateways[0].Host != "127.0.0.1" {
		t.Errorf("expected overridden host 127.0.0.1, got %s", cfg.Gateways[0].Host)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected overridden log level debug, got %s", cfg.LogLevel)
	}
}
