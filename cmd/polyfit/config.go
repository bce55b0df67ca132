// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/polyfit/pkg/logging"
	"github.com/AleutianAI/polyfit/pkg/telemetry"
	"github.com/AleutianAI/polyfit/services/cluster"
	"github.com/AleutianAI/polyfit/services/ga"
	"github.com/AleutianAI/polyfit/services/history"
)

// LogConfig is the "log" section of the config file.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// HistoryConfig is the "history" section of the config file.
type HistoryConfig struct {
	// Enabled records finished runs.
	Enabled bool `yaml:"enabled"`

	history.Config `yaml:",inline"`
}

// MonitorConfig is the "monitor" section of the config file.
type MonitorConfig struct {
	// Addr is the listen address for the monitor server. Empty disables it.
	Addr string `yaml:"addr"`
}

// Config is the polyfit config file.
//
// Every section is optional; missing keys keep their defaults.
//
//	ga:
//	  population: 1000
//	  mutation:
//	    step: 0.01
//	nats:
//	  url: nats://127.0.0.1:4222
//	history:
//	  enabled: true
//	  path: ~/.polyfit/history
type Config struct {
	GA        ga.Config          `yaml:"ga"`
	NATS      cluster.NATSConfig `yaml:"nats"`
	History   HistoryConfig      `yaml:"history"`
	Monitor   MonitorConfig      `yaml:"monitor"`
	Telemetry telemetry.Config   `yaml:"telemetry"`
	Log       LogConfig          `yaml:"log"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		GA:        ga.DefaultConfig(),
		NATS:      cluster.DefaultNATSConfig(),
		History:   HistoryConfig{Enabled: true, Config: history.DefaultConfig()},
		Telemetry: telemetry.DefaultConfig(),
		Log:       LogConfig{Level: logging.LevelInfo.String()},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(logging.ExpandPath(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decodeConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
