package config

import (
	"fmt"
	"time"
)

// Config represents a ferry.yaml configuration file.
// All values are optional and act as defaults for CLI flags.
// CLI flags always override config values.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// ServerConfig holds server daemon defaults from the config file.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	Mode       string `yaml:"mode"`
	Workers    int    `yaml:"workers"`
	Backlog    int    `yaml:"backlog"`
	ScratchDir string `yaml:"scratch_dir"`
}

// StorageConfig holds storage backend defaults from the config file.
type StorageConfig struct {
	// Backend is "dir" or "s3". Empty defaults to dir.
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Spec renders the storage config as the one-line spec the server daemon
// and child processes consume.
func (s StorageConfig) Spec() (string, error) {
	switch s.Backend {
	case "", "dir":
		if s.Path == "" {
			return "", fmt.Errorf("storage: dir backend requires a path")
		}
		return s.Path, nil
	case "s3":
		if s.Bucket == "" {
			return "", fmt.Errorf("storage: s3 backend requires a bucket")
		}
		spec := "s3://" + s.Bucket
		if s.Prefix != "" {
			spec += "/" + s.Prefix
		}
		return spec, nil
	default:
		return "", fmt.Errorf("storage: unknown backend %q (want dir or s3)", s.Backend)
	}
}

// SweepConfig holds benchmark sweep defaults from the config file.
type SweepConfig struct {
	Modes         []string `yaml:"modes"`
	Operations    []string `yaml:"operations"`
	VolumesMB     []int    `yaml:"volumes_mb"`
	ServerWorkers []int    `yaml:"server_workers"`
	ClientWorkers []int    `yaml:"client_workers"`
	BasePort      int      `yaml:"base_port"`
	Output        string   `yaml:"output"`
	Timeout       Duration `yaml:"timeout,omitempty"`
}

// AdapterConfig holds results-delivery adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
