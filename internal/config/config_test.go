package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Socket.Path != "/tmp/speakd.sock" {
		t.Fatalf("expected default socket path, got %q", cfg.Socket.Path)
	}
	if cfg.Socket.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %v", cfg.Socket.RequestTimeout)
	}
	if cfg.Daemon.MaxTextLen != 500 {
		t.Fatalf("expected max text len 500, got %d", cfg.Daemon.MaxTextLen)
	}
	if cfg.Client.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Client.MaxAttempts)
	}
	if cfg.Client.HealthInterval != 30*time.Second {
		t.Fatalf("expected 30s health interval, got %v", cfg.Client.HealthInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPEAKD_SOCKET_PATH", "/run/user/1000/tts.sock")
	t.Setenv("SPEAKD_DAEMON_DEFAULT_VOICE", "jo")
	t.Setenv("SPEAKD_TTS_MODE", "mock")
	t.Setenv("SPEAKD_CLIENT_BACKOFF_BASE", "250ms")
	t.Setenv("SPEAKD_CLIENT_HEALTH_THRESHOLD", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Socket.Path != "/run/user/1000/tts.sock" {
		t.Fatalf("expected socket path override, got %q", cfg.Socket.Path)
	}
	if cfg.Daemon.DefaultVoice != "jo" {
		t.Fatalf("expected voice override, got %q", cfg.Daemon.DefaultVoice)
	}
	if cfg.TTS.Mode != "mock" {
		t.Fatalf("expected tts mode override, got %q", cfg.TTS.Mode)
	}
	if cfg.Client.BackoffBase != 250*time.Millisecond {
		t.Fatalf("expected backoff override, got %v", cfg.Client.BackoffBase)
	}
	if cfg.Client.HealthThreshold != 5 {
		t.Fatalf("expected threshold override, got %d", cfg.Client.HealthThreshold)
	}
}

func TestRejectsUnknownTTSMode(t *testing.T) {
	t.Setenv("SPEAKD_TTS_MODE", "cloud")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown tts mode")
	}
}
