package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type AppConfig struct {
	Port           int
	IMHost         string
	IMPort         int
	Endpoint       string
	PollInterval   time.Duration
	Variant        string
	Debug          bool
	DebugRate      float64
	RawLogEnabled  bool
	RawLogDir      string
	IngestLogEvery int
}

const (
	defaultPort         = 8888
	defaultIMHost       = "127.0.0.1"
	defaultIMPort       = 6261
	defaultEndpoint     = "tcp://localhost:31002"
	defaultPollInterval = time.Second
	defaultVariant      = "auto"
	defaultRawLogDir    = "rawlog"
)

func Default() AppConfig {
	return AppConfig{
		Port:           defaultPort,
		IMHost:         defaultIMHost,
		IMPort:         defaultIMPort,
		Endpoint:       defaultEndpoint,
		PollInterval:   defaultPollInterval,
		Variant:        defaultVariant,
		DebugRate:      2,
		RawLogDir:      defaultRawLogDir,
		IngestLogEvery: 100,
	}
}

// Load reads an optional TOML file on top of the defaults. An empty path or a
// missing file yields the defaults; blank values keep them.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		HTTPPort     int    `toml:"http_port"`
		IMHost       string `toml:"im_host"`
		IMPort       int    `toml:"im_port"`
		Endpoint     string `toml:"endpoint"`
		PollInterval string `toml:"poll_interval"`
		Variant      string `toml:"variant"`
		RawLog       bool   `toml:"raw_log"`
		RawLogDir    string `toml:"raw_log_dir"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}

	if raw.HTTPPort > 0 {
		cfg.Port = raw.HTTPPort
	}
	if host := strings.TrimSpace(raw.IMHost); host != "" {
		cfg.IMHost = host
	}
	if raw.IMPort > 0 {
		cfg.IMPort = raw.IMPort
	}
	if endpoint := strings.TrimSpace(raw.Endpoint); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if interval := strings.TrimSpace(raw.PollInterval); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil || d <= 0 {
			return AppConfig{}, fmt.Errorf("parse config: invalid poll_interval %q", raw.PollInterval)
		}
		cfg.PollInterval = d
	}
	if variant := strings.TrimSpace(raw.Variant); variant != "" {
		cfg.Variant = variant
	}
	cfg.RawLogEnabled = raw.RawLog
	if dir := strings.TrimSpace(raw.RawLogDir); dir != "" {
		cfg.RawLogDir = expandHome(dir)
	}
	return cfg, nil
}

func expandHome(path string) string {
	trimmed := strings.TrimSpace(path)
	if !strings.HasPrefix(trimmed, "~") {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
}
