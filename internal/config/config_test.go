// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pod.yaml")
	contents := `
settings:
  logLevel: debug
can:
  port: /dev/ttyUSB0
  baudRate: 115200
groundStation:
  address: 10.0.0.1:9000
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Settings.LogLevel != "debug" {
		t.Errorf("logLevel = %q, want debug", cfg.Settings.LogLevel)
	}
	if cfg.CAN.Port != "/dev/ttyUSB0" {
		t.Errorf("can.port = %q, want /dev/ttyUSB0", cfg.CAN.Port)
	}
	// Fields not set in the file should retain their Default() value.
	if cfg.Navigation.MinSamples != 200_000 {
		t.Errorf("navigation.minCalibrationSamples = %d, want default 200000", cfg.Navigation.MinSamples)
	}
	if cfg.Settings.BarrierParties != 2 {
		t.Errorf("settings.barrierParties = %d, want default 2", cfg.Settings.BarrierParties)
	}
	if cfg.Navigation.TubeLength != 1250.0 {
		t.Errorf("navigation.tubeLengthMetres = %v, want default 1250", cfg.Navigation.TubeLength)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default config is valid", func(c *Config) {}, false},
		{"zero barrier parties", func(c *Config) { c.Settings.BarrierParties = 0 }, true},
		{"non-simulated can without port", func(c *Config) {
			c.CAN.Simulated = false
			c.CAN.Port = ""
		}, true},
		{"no ground station address or url", func(c *Config) {
			c.GroundStation.Address = ""
			c.GroundStation.WebSocketURL = ""
		}, true},
		{"bad imu policy", func(c *Config) { c.Sensors.ImuUpdatePolicy = "sometimes" }, true},
		{"zero max acceleration distance", func(c *Config) { c.Navigation.MaxAccelerationDistance = 0 }, true},
		{"tube length not greater than max acceleration distance", func(c *Config) {
			c.Navigation.TubeLength = c.Navigation.MaxAccelerationDistance
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
