// Package kernel holds the process-wide options and the init/shutdown
// lifecycle. It is the outermost layer an embedding application
// touches: Init once, use the tree/archive packages, Shutdown once.
package kernel

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoggerConfig is a "logger.<name>-*" key family for a single named
// logger channel.
type LoggerConfig struct {
	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	FileFormat    string `json:"file_format"`
	ConsoleFormat string `json:"console_format"`
	FlushLevel    string `json:"flush_level"`
}

// Config is the process-wide configuration, loaded from the JSON file
// named by the BSKERNEL_CONFIG environment variable; its absence means
// defaults.
type Config struct {
	Loggers            map[string]LoggerConfig `json:"loggers"`
	LogFlushIntervalMS int                     `json:"log_flush_interval_ms"`

	// RequestTimeoutMS bounds how long a blocking Data/DataNode call may
	// park on a Busy request before failing with Timeout. Zero or
	// negative means wait forever.
	RequestTimeoutMS int `json:"request_timeout_ms"`

	// ActorSystem is left intentionally opaque upstream of this package;
	// here it only sizes engine mailboxes.
	ActorSystem ActorSystemConfig `json:"actor_system"`
}

// ActorSystemConfig tunes the goroutine-mailbox actor runtime.
type ActorSystemConfig struct {
	MailboxCapacity int `json:"mailbox_capacity"`
}

// ConfigEnvVar is the environment variable selecting the config file.
const ConfigEnvVar = "BSKERNEL_CONFIG"

// DefaultConfig returns the configuration used when ConfigEnvVar is unset.
func DefaultConfig() *Config {
	return &Config{
		Loggers:            map[string]LoggerConfig{},
		LogFlushIntervalMS: 1000,
		ActorSystem:        ActorSystemConfig{MailboxCapacity: 64},
	}
}

// LoadConfig reads Config from ConfigEnvVar's file, or returns
// DefaultConfig if the variable is unset.
func LoadConfig() (*Config, error) {
	path := os.Getenv(ConfigEnvVar)
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading kernel config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing kernel config %s: %w", path, err)
	}
	return cfg, nil
}
