package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/connorhough/mediakeyd/internal/config"
	"github.com/connorhough/mediakeyd/internal/version"
	"github.com/spf13/viper"
)

func resetGlobals(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	t.Cleanup(func() {
		viper.Reset()
		cfgFile = ""
	})
}

func TestRootCmd_Version(t *testing.T) {
	resetGlobals(t)
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out.String(), version.String()) {
		t.Errorf("Expected version in output, got %q", out.String())
	}
}

func TestRootCmd_HelpShowsConfigTemplate(t *testing.T) {
	cmd := NewRootCmd()
	if !strings.Contains(cmd.Long, config.Template()) {
		t.Error("Expected long help to include the config template")
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("Expected persistent --config flag")
	}
}

func TestRootCmd_RejectsBeforeStart(t *testing.T) {
	dir := t.TempDir()
	badLevel := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badLevel, []byte("log_level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	badBackend := filepath.Join(dir, "backend.yaml")
	if err := os.WriteFile(badBackend, []byte("power:\n  backend: acpi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "positional args", args: []string{"next"}, wantErr: "unknown command"},
		{name: "missing config file", args: []string{"--config", filepath.Join(dir, "absent.yaml")}, wantErr: "read config"},
		{name: "invalid log level", args: []string{"--config", badLevel}, wantErr: config.KeyLogLevel},
		{name: "invalid power backend", args: []string{"--config", badBackend}, wantErr: config.KeyPowerBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobals(t)
			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetErr(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInitConfig_EnvOverride(t *testing.T) {
	resetGlobals(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MEDIAKEYD_WATCH_HOLD_THRESHOLD", "1500ms")
	t.Setenv("MEDIAKEYD_POWER_BACKEND", "logind")

	if err := initConfig(); err != nil {
		t.Fatalf("initConfig failed: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Watch.HoldThreshold.String() != "1.5s" {
		t.Errorf("hold threshold: got %s", cfg.Watch.HoldThreshold)
	}
	if cfg.Power.Backend != "logind" {
		t.Errorf("power backend: got %q", cfg.Power.Backend)
	}
}
