package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon settings loaded from the YAML config file.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// Path is the WebSocket upgrade path.
	Path string `yaml:"path"`
	// Bus names the shared pubsub bus connections join.
	Bus string `yaml:"bus"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
}

// defaultConfig returns the settings used when no config file is supplied.
func defaultConfig() Config {
	return Config{
		Listen: ":8080",
		Path:   "/ws",
		Bus:    "WAMPSessions",
	}
}

// loadConfig reads the YAML config at path, applying defaults for omitted
// fields. An empty path returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.Bus == "" {
		cfg.Bus = "WAMPSessions"
	}
	return cfg, nil
}
