// Package config handles loading and validating the speakd configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration shared by the daemon and the client.
type Config struct {
	Socket  SocketConfig  `mapstructure:"socket"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Player  PlayerConfig  `mapstructure:"player"`
	History HistoryConfig `mapstructure:"history"`
	Client  ClientConfig  `mapstructure:"client"`
	Hotkeys HotkeysConfig `mapstructure:"hotkeys"`
	Health  HealthConfig  `mapstructure:"health"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SocketConfig holds the Unix socket rendezvous settings.
type SocketConfig struct {
	// Path is the filesystem address both sides agree on.
	Path string `mapstructure:"path"`

	// RequestTimeout bounds one client round trip, generation included.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DaemonConfig holds daemon-side behavior settings.
type DaemonConfig struct {
	// VoicesDir is scanned for pre-encoded reference voices (*.pt with a
	// .txt transcript sibling).
	VoicesDir string `mapstructure:"voices_dir"`

	// DefaultVoice is used by speak requests that do not name a voice.
	DefaultVoice string `mapstructure:"default_voice"`

	// MaxTextLen truncates speak input, in characters.
	MaxTextLen int `mapstructure:"max_text_len"`

	// DrainTimeout bounds the wait for an in-flight generation on shutdown.
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// TTSConfig selects and configures the synthesizer backend.
type TTSConfig struct {
	Mode       string   `mapstructure:"mode"`     // "exec", "wyoming" or "mock"
	Command    []string `mapstructure:"command"`  // model host argv for exec mode
	Endpoint   string   `mapstructure:"endpoint"` // host:port of a Piper Wyoming server
	SampleRate int      `mapstructure:"sample_rate"`
}

// PlayerConfig configures audio playback.
type PlayerConfig struct {
	// Command overrides the platform player argv (afplay/aplay/paplay
	// detected when empty). The clip path is appended as the last argument.
	Command []string `mapstructure:"command"`

	// OutputPath is where the last generated clip is written as WAV.
	OutputPath string `mapstructure:"output_path"`
}

// HistoryConfig configures the optional synthesis history store.
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// ClientConfig holds retry and health-monitor settings for speakctl.
type ClientConfig struct {
	// MaxAttempts is the total number of tries for one request, first
	// attempt included.
	MaxAttempts int `mapstructure:"max_attempts"`

	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration `mapstructure:"backoff_base"`

	// HealthInterval is the period of the background status probe.
	HealthInterval time.Duration `mapstructure:"health_interval"`

	// HealthThreshold is the consecutive-failure count that triggers a
	// "service down" notification.
	HealthThreshold int `mapstructure:"health_threshold"`
}

// HotkeysConfig maps key combinations to client actions.
type HotkeysConfig struct {
	Speak  string `mapstructure:"speak"`
	Replay string `mapstructure:"replay"`
	Quit   string `mapstructure:"quit"`
}

// HealthConfig configures the daemon's optional HTTP liveness endpoint, used
// by process supervisors. The client's health probe goes over the socket and
// is configured in ClientConfig instead.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./speakd.yaml, ./configs/speakd.yaml, /etc/speakd/speakd.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("socket.path", "/tmp/speakd.sock")
	v.SetDefault("socket.request_timeout", "30s")
	v.SetDefault("daemon.voices_dir", "samples")
	v.SetDefault("daemon.default_voice", "dave")
	v.SetDefault("daemon.max_text_len", 500)
	v.SetDefault("daemon.drain_timeout", "10s")
	v.SetDefault("tts.mode", "exec")
	v.SetDefault("tts.endpoint", "127.0.0.1:10200")
	v.SetDefault("tts.sample_rate", 24000)
	v.SetDefault("player.output_path", "/tmp/speakd_output.wav")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "/tmp/speakd_history.db")
	v.SetDefault("history.max_entries", 200)
	v.SetDefault("client.max_attempts", 3)
	v.SetDefault("client.backoff_base", "500ms")
	v.SetDefault("client.health_interval", "30s")
	v.SetDefault("client.health_threshold", 3)
	v.SetDefault("hotkeys.speak", "ctrl+shift+s")
	v.SetDefault("hotkeys.replay", "ctrl+shift+r")
	v.SetDefault("hotkeys.quit", "ctrl+shift+q")
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.port", 8099)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("speakd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/speakd")
	}

	// Environment variables: SPEAKD_SOCKET_PATH, SPEAKD_DAEMON_DEFAULT_VOICE, etc.
	v.SetEnvPrefix("SPEAKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional — env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Socket.Path == "" {
		return fmt.Errorf("socket.path must not be empty")
	}
	if c.Daemon.MaxTextLen <= 0 {
		return fmt.Errorf("daemon.max_text_len must be positive")
	}
	if c.Client.MaxAttempts <= 0 {
		return fmt.Errorf("client.max_attempts must be positive")
	}
	switch c.TTS.Mode {
	case "exec", "wyoming", "mock":
	default:
		return fmt.Errorf("unknown tts.mode %q (want exec, wyoming or mock)", c.TTS.Mode)
	}
	return nil
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
