// Package config loads the YAML configuration consumed by cmd/p3bridge and
// translated into the plain structs internal/transport and internal/delivery
// actually accept (spec §6 "Configuration surface").
package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// PostConfig is post.* (spec §6).
type PostConfig struct {
	Enabled                bool              `yaml:"enabled"`
	BaseURL                string            `yaml:"baseUrl"`
	Path                   string            `yaml:"path"`
	Method                 string            `yaml:"method"`
	TimeoutMs              int               `yaml:"timeoutMs"`
	Retries                int               `yaml:"retries"`
	RetryDelayMs           int               `yaml:"retryDelayMs"`
	RetryBackoffMultiplier float64           `yaml:"retryBackoffMultiplier"`
	QueueDrainMaxPerTick   int               `yaml:"queueDrainMaxPerTick"`
	Headers                map[string]string `yaml:"headers"`
}

// ReconnectConfig is decoder.reconnect.* (spec §6).
type ReconnectConfig struct {
	BaseDelayMs      int     `yaml:"baseDelayMs"`
	MaxDelayMs       int     `yaml:"maxDelayMs"`
	BackoffFactor    float64 `yaml:"backoffFactor"`
	JitterRatio      float64 `yaml:"jitterRatio"`
	ConnectTimeoutMs int     `yaml:"connectTimeoutMs"`
}

// DecoderConfig is decoder.* (spec §6).
type DecoderConfig struct {
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// DefaultsConfig is defaults.* (spec §6): the transport mode and bind/connect
// targets when not otherwise overridden per-run.
type DefaultsConfig struct {
	Mode          string `yaml:"mode"` // "tcp" or "udp"
	TCPHost       string `yaml:"tcpHost"`
	TCPPort       int    `yaml:"tcpPort"`
	UDPListenPort int    `yaml:"udpListenPort"`
}

// LoggingConfig is logging.* (spec §6).
type LoggingConfig struct {
	SuppressStatus bool `yaml:"suppressStatus"`
}

// Config is the full YAML document. Unknown keys are ignored by yaml.v3's
// default unmarshal behaviour (spec §6: "Unknown keys are ignored").
type Config struct {
	Post      PostConfig      `yaml:"post"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Logging   LoggingConfig   `yaml:"logging"`
	QueuePath string          `yaml:"queuePath"`
	StatusAPI StatusAPIConfig `yaml:"statusApi"`
}


// StatusAPIConfig configures the ambient observability surface
// (internal/statusapi), not part of the spec's core interfaces.
type StatusAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads and parses the YAML file at path, starting from Defaults() so
// any field the file omits keeps its default value.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Post.Enabled {
		if _, err := url.ParseRequestURI(cfg.Post.BaseURL); err != nil {
			return nil, fmt.Errorf("post.baseUrl %q: %w", cfg.Post.BaseURL, err)
		}
	}
	return cfg, nil
}
