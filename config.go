// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultPort           = 161
	DefaultTimeout        = 5 * time.Second
	DefaultRetries        = 3
	DefaultMaxRepetitions = 10
)

// Config is the configuration surface consumed by ResolveCredentials and
// the session registry. It is typically loaded from a YAML file kept by the
// control plane.
//
// Example:
//
//	host: 192.0.2.10
//	username: admin
//	auth_protocol: sha
//	priv_protocol: aes
//	dual_key: false
type Config struct {
	// Host is the device management address
	Host string `yaml:"host"`

	// Port is the device management port (default 161)
	Port uint16 `yaml:"port"`

	// Community selects v1/v2c community authentication. When set, all
	// v3 fields below are ignored.
	Community string `yaml:"community"`

	// Username selects v3 USM authentication
	Username string `yaml:"username"`

	// AuthProtocol is one of md5, sha, none
	AuthProtocol string `yaml:"auth_protocol"`

	// PrivProtocol is one of des, aes, none
	PrivProtocol string `yaml:"priv_protocol"`

	// EngineID is the authoritative engine ID, if pinned
	EngineID string `yaml:"engine_id"`

	// AuthKey is the authentication secret. Empty means prompt.
	AuthKey string `yaml:"auth_key"`

	// PrivKey is the privacy secret. Empty means prompt.
	PrivKey string `yaml:"priv_key"`

	// DualKey selects independent auth and privacy secrets. When false
	// and both protocols are enabled, one secret serves both.
	DualKey bool `yaml:"dual_key"`

	// Timeout is the per-exchange device timeout (default 5s)
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the device-protocol engine retry count (default 3)
	Retries int `yaml:"retries"`

	// MaxRepetitions bounds each bulk read during a walk (default 10)
	MaxRepetitions uint32 `yaml:"max_repetitions"`
}

// withDefaults returns a copy with unset fields filled in.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.MaxRepetitions == 0 {
		c.MaxRepetitions = DefaultMaxRepetitions
	}
	return c
}

// ParseConfig parses a YAML document into a Config and applies defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, configErrorf("config", "parsing config: %s", err)
	}
	return cfg.withDefaults(), nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configErrorf("config", "reading config: %s", err)
	}
	return ParseConfig(data)
}
