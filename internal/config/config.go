// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads and validates the pod's YAML configuration file.
// Command-line flag overrides are applied on top of it by the cmd package.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of pod.yaml.
type Config struct {
	Settings      Settings            `yaml:"settings"`
	CAN           CANConfig           `yaml:"can"`
	GroundStation GroundStationConfig `yaml:"groundStation"`
	Navigation    NavigationConfig    `yaml:"navigation"`
	Sensors       SensorsConfig       `yaml:"sensors"`
}

// Settings holds global process settings.
type Settings struct {
	LogLevel       string `yaml:"logLevel"`
	BarrierParties int    `yaml:"barrierParties"`
}

// CANConfig configures the gateway link to the four wheel motor controllers.
type CANConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudRate"`
	// Simulated runs the firmware against the in-memory Communicator
	// instead of opening a real serial port, for local testing.
	Simulated bool `yaml:"simulated"`
}

// GroundStationConfig configures the link to the ground station.
type GroundStationConfig struct {
	Address           string `yaml:"address"`
	WebSocketURL      string `yaml:"webSocketUrl"`
	SkipSSLVerify     bool   `yaml:"skipSslVerify"`
	AskToken          bool   `yaml:"askToken"`
	MaxReconnectTries int    `yaml:"maxReconnectAttempts"`
}

// NavigationConfig configures the navigation estimator.
type NavigationConfig struct {
	CalibrationTimeout time.Duration `yaml:"calibrationTimeout"`
	MinSamples         int           `yaml:"minCalibrationSamples"`
	StripePitchMetres  float64       `yaml:"stripePitchMetres"`
	// MaxAccelerationDistance is the distance, in metres from launch, at
	// which the estimator reports MaxDistanceReached, moving the pod from
	// Accelerating into Cruising.
	MaxAccelerationDistance float64 `yaml:"maxAccelerationDistanceMetres"`
	// TubeLength is the distance, in metres from launch, at which the
	// estimator reports EndOfTubeReached.
	TubeLength float64 `yaml:"tubeLengthMetres"`
}

// SensorsConfig configures the sensor aggregator.
type SensorsConfig struct {
	ImuUpdatePolicy string `yaml:"imuUpdatePolicy"` // "all" or "any"
}

// Default returns the configuration the firmware runs with when no
// pod.yaml is supplied: simulated CAN, a raw TCP ground-station link to
// localhost:8080, sane timeouts, and the literal (bug-shaped) all-advanced
// IMU policy.
func Default() Config {
	return Config{
		Settings: Settings{
			LogLevel:       "info",
			BarrierParties: 2,
		},
		CAN: CANConfig{
			Simulated: true,
		},
		GroundStation: GroundStationConfig{
			Address:           "localhost:8080",
			MaxReconnectTries: 8,
		},
		Navigation: NavigationConfig{
			CalibrationTimeout:      30 * time.Second,
			MinSamples:              200_000,
			StripePitchMetres:       10.0,
			MaxAccelerationDistance: 800.0,
			TubeLength:              1250.0,
		},
		Sensors: SensorsConfig{
			ImuUpdatePolicy: "all",
		},
	}
}

// Load reads and parses a pod.yaml file at path, starting from Default and
// overlaying whatever the file sets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent enough
// to start a run with. It does not check that referenced devices exist.
func (c Config) Validate() error {
	if c.Settings.BarrierParties < 1 {
		return fmt.Errorf("settings.barrierParties must be >= 1, got %d", c.Settings.BarrierParties)
	}
	if !c.CAN.Simulated && c.CAN.Port == "" {
		return fmt.Errorf("can.port is required unless can.simulated is true")
	}
	if c.GroundStation.Address == "" && c.GroundStation.WebSocketURL == "" {
		return fmt.Errorf("either groundStation.address or groundStation.webSocketUrl is required")
	}
	if c.Navigation.MinSamples < 1 {
		return fmt.Errorf("navigation.minCalibrationSamples must be >= 1, got %d", c.Navigation.MinSamples)
	}
	if c.Navigation.MaxAccelerationDistance <= 0 {
		return fmt.Errorf("navigation.maxAccelerationDistanceMetres must be > 0, got %v", c.Navigation.MaxAccelerationDistance)
	}
	if c.Navigation.TubeLength <= c.Navigation.MaxAccelerationDistance {
		return fmt.Errorf("navigation.tubeLengthMetres must be greater than maxAccelerationDistanceMetres")
	}
	switch c.Sensors.ImuUpdatePolicy {
	case "all", "any":
	default:
		return fmt.Errorf("sensors.imuUpdatePolicy must be \"all\" or \"any\", got %q", c.Sensors.ImuUpdatePolicy)
	}
	return nil
}
