package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lyricsync/internal/window"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	t.Setenv(EnvRedisAddr, "localhost:6379")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.App.SocketPath != DefaultSocketPath {
		t.Errorf("socket = %s, want %s", cfg.App.SocketPath, DefaultSocketPath)
	}
	if cfg.App.PollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want %v", cfg.App.PollInterval, DefaultPollInterval)
	}
	if cfg.Window != window.DefaultOptions() {
		t.Errorf("window = %+v, want defaults", cfg.Window)
	}
	if cfg.Transport.Skip != 10*time.Second || cfg.Transport.ResumeDelay != 100*time.Millisecond {
		t.Errorf("unexpected transport defaults: %+v", cfg.Transport)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
[app]
socket_path = "/run/user/1000/lyricsync.sock"
poll_interval = "100ms"
metadata_dir = "/srv/songs"
log_level = "debug"

[window]
mode = "Sliding-Window"
window_size = 6
step = 3

[pitch]
min_hz = 80.0
max_hz = 1000.0

[transport]
skip = "5s"
resume_delay = "250"

[redis]
addr = "redis:6379"
db = 2
ttl = "1h"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	tests := []struct {
		name      string
		got, want interface{}
	}{
		{"socket", cfg.App.SocketPath, "/run/user/1000/lyricsync.sock"},
		{"poll", cfg.App.PollInterval, 100 * time.Millisecond},
		{"metadata", cfg.App.MetadataDir, "/srv/songs"},
		{"level", cfg.App.LogLevel, "debug"},
		{"mode", cfg.Window.Mode, window.ModeSliding},
		{"window size", cfg.Window.WindowSize, 6},
		{"step", cfg.Window.Step, 3},
		{"block size kept", cfg.Window.BlockSize, window.DefaultOptions().BlockSize},
		{"min hz", cfg.Pitch.MinHz, 80.0},
		{"max hz", cfg.Pitch.MaxHz, 1000.0},
		{"skip", cfg.Transport.Skip, 5 * time.Second},
		{"resume delay", cfg.Transport.ResumeDelay, 250 * time.Millisecond},
		{"redis db", cfg.Redis.DB, 2},
		{"redis ttl", cfg.Redis.TTL, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	ec := cfg.Engine()
	if ec.Window.Mode != window.ModeSliding || ec.MaxHz != 1000 || ec.Skip != 5*time.Second {
		t.Errorf("unexpected engine config: %+v", ec)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[app]
socket_path = "/tmp/from-file.sock"

[redis]
addr = "file:6379"
`)
	t.Setenv(EnvSocketPath, "/tmp/from-env.sock")
	t.Setenv(EnvRedisAddr, "")
	t.Setenv(EnvRedisPassword, "secret")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.App.SocketPath != "/tmp/from-env.sock" {
		t.Errorf("socket = %s, want env value", cfg.App.SocketPath)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("empty env addr should disable redis, got %q", cfg.Redis.Addr)
	}
	if cfg.Redis.Password != "secret" {
		t.Errorf("password = %q, want secret", cfg.Redis.Password)
	}
}

func TestInvalidDurationKeepsDefault(t *testing.T) {
	path := writeConfig(t, `
[app]
poll_interval = "soon"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.App.PollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want default", cfg.App.PollInterval)
	}
}

func TestLoadFileRejectsBadSections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"UnknownMode", "[window]\nmode = \"spiral\"\n"},
		{"NegativeStep", "[window]\nmode = \"sliding-window\"\nstep = -1\n"},
		{"PitchRange", "[pitch]\nmin_hz = 500.0\nmax_hz = 100.0\n"},
		{"Syntax", "[app\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.content)); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"50ms", 50 * time.Millisecond, false},
		{"1500", 1500 * time.Millisecond, false},
		{"2s", 2 * time.Second, false},
		{"-5", 0, true},
		{"-1s", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
