// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"errors"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	doc := []byte(`
host: 192.0.2.10
username: admin
auth_protocol: sha
priv_protocol: aes
dual_key: true
timeout: 10s
max_repetitions: 25
`)
	cfg, err := ParseConfig(doc)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Host != "192.0.2.10" || cfg.Username != "admin" {
		t.Errorf("identity = %q/%q", cfg.Host, cfg.Username)
	}
	if cfg.AuthProtocol != "sha" || cfg.PrivProtocol != "aes" || !cfg.DualKey {
		t.Errorf("protocols = %q/%q dual_key=%v", cfg.AuthProtocol, cfg.PrivProtocol, cfg.DualKey)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.MaxRepetitions != 25 {
		t.Errorf("max_repetitions = %d, want 25", cfg.MaxRepetitions)
	}

	// Unset fields pick up defaults.
	if cfg.Port != DefaultPort {
		t.Errorf("port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Retries != DefaultRetries {
		t.Errorf("retries = %d, want %d", cfg.Retries, DefaultRetries)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("host: sw1.example.net\ncommunity: public\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Port != DefaultPort || cfg.Timeout != DefaultTimeout ||
		cfg.Retries != DefaultRetries || cfg.MaxRepetitions != DefaultMaxRepetitions {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig([]byte("host: [unclosed"))
	if err == nil {
		t.Fatal("ParseConfig accepted malformed yaml")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrorConfig {
		t.Errorf("error = %v, want config kind", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/snmp.yaml")
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrorConfig {
		t.Errorf("error = %v, want config kind", err)
	}
}
