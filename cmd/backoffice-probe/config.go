package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	backoffice "github.com/lendkit/backoffice"
)

// probeConfig is the resolved runtime configuration of the probe after
// defaults, the optional yaml file, and command-line overrides are merged.
type probeConfig struct {
	API struct {
		BaseURL       string
		UserAgent     string
		ThrottleRPS   float64
		ThrottleBurst int
	}
	Store struct {
		Path          string
		PassphraseEnv string
	}
	Session struct {
		TickInterval     time.Duration
		WarningThreshold time.Duration
	}
	Token struct {
		VerifyMethod string
		VerifyKey    []byte
		Issuer       string
		Audience     string
	}
}

// probeFile mirrors the yaml layout. Durations are strings so operators can
// write "90s" or "5m"; yaml.v3 does not decode time.Duration natively.
type probeFile struct {
	API struct {
		BaseURL       string  `yaml:"base_url"`
		UserAgent     string  `yaml:"user_agent"`
		ThrottleRPS   float64 `yaml:"throttle_rps"`
		ThrottleBurst int     `yaml:"throttle_burst"`
	} `yaml:"api"`
	Store struct {
		Path          string `yaml:"path"`
		PassphraseEnv string `yaml:"passphrase_env"`
	} `yaml:"store"`
	Session struct {
		TickInterval     string `yaml:"tick_interval"`
		WarningThreshold string `yaml:"warning_threshold"`
	} `yaml:"session"`
	Token struct {
		VerifyMethod string `yaml:"verify_method"`
		VerifyKeyHex string `yaml:"verify_key_hex"`
		Issuer       string `yaml:"issuer"`
		Audience     string `yaml:"audience"`
	} `yaml:"token"`
}

func loadProbeConfig(path string, demoMode bool) (probeConfig, error) {
	cfg := defaultProbeConfig(demoMode)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var file probeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if file.API.BaseURL != "" {
		cfg.API.BaseURL = file.API.BaseURL
	}
	if file.API.UserAgent != "" {
		cfg.API.UserAgent = file.API.UserAgent
	}
	if file.API.ThrottleRPS > 0 {
		cfg.API.ThrottleRPS = file.API.ThrottleRPS
	}
	if file.API.ThrottleBurst > 0 {
		cfg.API.ThrottleBurst = file.API.ThrottleBurst
	}
	if file.Store.Path != "" {
		cfg.Store.Path = file.Store.Path
	}
	if file.Store.PassphraseEnv != "" {
		cfg.Store.PassphraseEnv = file.Store.PassphraseEnv
	}
	if file.Session.TickInterval != "" {
		d, err := time.ParseDuration(file.Session.TickInterval)
		if err != nil {
			return cfg, fmt.Errorf("session.tick_interval: %w", err)
		}
		cfg.Session.TickInterval = d
	}
	if file.Session.WarningThreshold != "" {
		d, err := time.ParseDuration(file.Session.WarningThreshold)
		if err != nil {
			return cfg, fmt.Errorf("session.warning_threshold: %w", err)
		}
		cfg.Session.WarningThreshold = d
	}
	if file.Token.VerifyMethod != "" {
		cfg.Token.VerifyMethod = file.Token.VerifyMethod
	}
	if file.Token.VerifyKeyHex != "" {
		key, err := hex.DecodeString(file.Token.VerifyKeyHex)
		if err != nil {
			return cfg, fmt.Errorf("token.verify_key_hex: %w", err)
		}
		cfg.Token.VerifyKey = key
	}
	if file.Token.Issuer != "" {
		cfg.Token.Issuer = file.Token.Issuer
	}
	if file.Token.Audience != "" {
		cfg.Token.Audience = file.Token.Audience
	}
	return cfg, nil
}

func defaultProbeConfig(demoMode bool) probeConfig {
	var cfg probeConfig
	cfg.API.UserAgent = appName + "/1.0"
	cfg.Store.PassphraseEnv = "BACKOFFICE_PASSPHRASE"
	cfg.Session.TickInterval = time.Second
	cfg.Session.WarningThreshold = 5 * time.Minute
	cfg.Token.VerifyMethod = "none"

	if demoMode {
		// Demo sessions live in a throwaway store so a real operator
		// session on the same machine is never clobbered.
		cfg.Store.Path = filepath.Join(os.TempDir(), "backoffice-probe-demo.json")
		return cfg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg.Store.Path = filepath.Join(home, ".backoffice", "session.json")
	return cfg
}

// coordinatorConfig maps the probe settings onto the library configuration.
// The probe always runs with metrics and the journal on; it exists to make
// coordinator behavior visible.
func (p probeConfig) coordinatorConfig() backoffice.Config {
	cfg := backoffice.DefaultConfig()
	cfg.Session.TickInterval = p.Session.TickInterval
	cfg.Session.DefaultWarningThreshold = p.Session.WarningThreshold
	cfg.Token.VerifyMethod = p.Token.VerifyMethod
	cfg.Token.VerifyKey = p.Token.VerifyKey
	cfg.Token.Issuer = p.Token.Issuer
	cfg.Token.Audience = p.Token.Audience
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}
