// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sensors

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/hyped/podctl/internal/telemetry"
)

// ImuUpdatePolicy controls how the aggregator decides that the IMU group
// has "updated" and is ready to publish. This is the flagged ambiguity in
// the design notes: the original behavior requires every tracked IMU's
// timestamp to have advanced, which stalls the whole Sensors publication
// the moment a single IMU sticks. AnyAdvanced is the likely intended fix.
type ImuUpdatePolicy int

const (
	// AllAdvanced requires every online IMU's timestamp to have advanced.
	// This is the source's literal (bug-shaped) behavior and is the
	// default, preserving the letter of the original policy.
	AllAdvanced ImuUpdatePolicy = iota
	// AnyAdvanced requires only one online IMU's timestamp to have
	// advanced.
	AnyAdvanced
)

// offlineThreshold is the number of consecutive read failures after which
// a device is marked offline and excluded from the "updated" check.
const offlineThreshold = 5

// Aggregator owns the per-device acquisition and collates device output
// into the Sensors and Batteries substructures it publishes.
type Aggregator struct {
	registry   *telemetry.Registry
	logger     *slog.Logger
	imuPolicy  ImuUpdatePolicy

	imus        [telemetry.NumImus]ImuReader
	proxiFront  ProximityBankReader
	proxiBack   ProximityBankReader
	stripe      StripeCountReader
	lowPower    [telemetry.NumLowPowerBatteries]BatteryReader
	highPower   [telemetry.NumHighPowerBatteries]BatteryReader

	prevSensors   telemetry.Sensors
	prevBatteries telemetry.Batteries

	imuFailures    [telemetry.NumImus]int
	imuOffline     [telemetry.NumImus]bool
	proxiFrontFail int
	proxiBackFail  int
	proxiOffline   [2]bool // [0]=front, [1]=back
	stripeFail     int
	stripeOffline  bool
}

// Config bundles the device readers an Aggregator needs. Every field is
// required; fakes are provided in fakes.go for tests and local running.
type Config struct {
	Imus       [telemetry.NumImus]ImuReader
	ProxiFront ProximityBankReader
	ProxiBack  ProximityBankReader
	Stripe     StripeCountReader
	LowPower   [telemetry.NumLowPowerBatteries]BatteryReader
	HighPower  [telemetry.NumHighPowerBatteries]BatteryReader
	ImuPolicy  ImuUpdatePolicy
}

// New constructs an Aggregator. The aggregator takes ownership of every
// reader in cfg for the lifetime of the run; nothing outside the
// aggregator should hold or use them afterward.
func New(registry *telemetry.Registry, logger *slog.Logger, cfg Config) *Aggregator {
	return &Aggregator{
		registry:   registry,
		logger:     logger.With("component", "sensors"),
		imuPolicy:  cfg.ImuPolicy,
		imus:       cfg.Imus,
		proxiFront: cfg.ProxiFront,
		proxiBack:  cfg.ProxiBack,
		stripe:     cfg.Stripe,
		lowPower:   cfg.LowPower,
		highPower:  cfg.HighPower,
	}
}

// Run polls every device once per cycle until ctx is canceled, publishing
// Sensors and Batteries snapshots only when they change.
func (a *Aggregator) Run(ctx context.Context) {
	for ctx.Err() == nil {
		sensors := a.pollSensors()
		if a.sensorsUpdated(sensors) {
			a.registry.SetSensors(sensors)
			a.prevSensors = sensors
			runtime.Gosched()
		}

		batteries := a.pollBatteries()
		if a.batteriesUpdated(batteries) {
			a.registry.SetBatteries(batteries)
			a.prevBatteries = batteries
			runtime.Gosched()
		}
	}
}

func (a *Aggregator) pollSensors() telemetry.Sensors {
	s := a.prevSensors
	for i, dev := range a.imus {
		reading, err := dev.Read()
		if err != nil {
			a.imuFailures[i]++
			if a.imuFailures[i] >= offlineThreshold && !a.imuOffline[i] {
				a.imuOffline[i] = true
				a.logger.Warn("imu marked offline", "imu", i)
			}
			a.logger.Debug("imu read failed", "imu", i, "error", err)
			continue
		}
		a.imuFailures[i] = 0
		if a.imuOffline[i] {
			a.imuOffline[i] = false
			a.logger.Warn("imu back online", "imu", i)
		}
		s.Imu[i] = reading
	}

	if front, err := a.proxiFront.Read(); err != nil {
		a.proxiFrontFail++
		if a.proxiFrontFail >= offlineThreshold && !a.proxiOffline[0] {
			a.proxiOffline[0] = true
			a.logger.Warn("front proximity bank marked offline")
		}
		a.logger.Debug("front proximity read failed", "error", err)
	} else {
		a.proxiFrontFail = 0
		a.proxiOffline[0] = false
		s.ProxiFront = front
	}

	if back, err := a.proxiBack.Read(); err != nil {
		a.proxiBackFail++
		if a.proxiBackFail >= offlineThreshold && !a.proxiOffline[1] {
			a.proxiOffline[1] = true
			a.logger.Warn("back proximity bank marked offline")
		}
		a.logger.Debug("back proximity read failed", "error", err)
	} else {
		a.proxiBackFail = 0
		a.proxiOffline[1] = false
		s.ProxiBack = back
	}

	if stripe, err := a.stripe.Read(); err != nil {
		a.stripeFail++
		if a.stripeFail >= offlineThreshold && !a.stripeOffline {
			a.stripeOffline = true
			a.logger.Warn("stripe counter marked offline")
		}
		a.logger.Debug("stripe read failed", "error", err)
	} else {
		a.stripeFail = 0
		a.stripeOffline = false
		s.Stripe = stripe
	}

	return s
}

func (a *Aggregator) pollBatteries() telemetry.Batteries {
	b := a.prevBatteries
	for i, dev := range a.lowPower {
		if reading, err := dev.Read(); err != nil {
			a.logger.Debug("low power battery read failed", "battery", i, "error", err)
		} else {
			b.LowPower[i] = reading
		}
	}
	for i, dev := range a.highPower {
		if reading, err := dev.Read(); err != nil {
			a.logger.Debug("high power battery read failed", "battery", i, "error", err)
		} else {
			b.HighPower[i] = reading
		}
	}
	return b
}

// sensorsUpdated implements the aggregator's "updated" check: the IMU
// group (judged by the configured policy) and the tracked proximity banks
// must both have advanced. A device marked offline is excluded regardless
// of policy, so a device whose reads keep failing never permanently blocks
// publication; a stuck but online IMU does block it under AllAdvanced.
// The stripe counter does not take part in the check.
func (a *Aggregator) sensorsUpdated(s telemetry.Sensors) bool {
	return a.imuGroupAdvanced(s) && a.proxiGroupAdvanced(s)
}

func (a *Aggregator) imuGroupAdvanced(s telemetry.Sensors) bool {
	any := false
	all := true
	tracked := false
	for i := range s.Imu {
		if a.imuOffline[i] {
			continue
		}
		tracked = true
		advanced := !s.Imu[i].Timestamp.Equal(a.prevSensors.Imu[i].Timestamp)
		any = any || advanced
		all = all && advanced
	}
	if !tracked {
		return false
	}
	if a.imuPolicy == AnyAdvanced {
		return any
	}
	return all
}

func (a *Aggregator) proxiGroupAdvanced(s telemetry.Sensors) bool {
	frontAdvanced := !a.proxiOffline[0] && !s.ProxiFront.Timestamp.Equal(a.prevSensors.ProxiFront.Timestamp)
	backAdvanced := !a.proxiOffline[1] && !s.ProxiBack.Timestamp.Equal(a.prevSensors.ProxiBack.Timestamp)
	if a.proxiOffline[0] {
		return backAdvanced
	}
	if a.proxiOffline[1] {
		return frontAdvanced
	}
	return frontAdvanced && backAdvanced
}

func (a *Aggregator) batteriesUpdated(b telemetry.Batteries) bool {
	for i := range b.LowPower {
		if b.LowPower[i].Voltage != a.prevBatteries.LowPower[i].Voltage ||
			b.LowPower[i].Temperature != a.prevBatteries.LowPower[i].Temperature {
			return true
		}
	}
	for i := range b.HighPower {
		if b.HighPower[i].Voltage != a.prevBatteries.HighPower[i].Voltage ||
			b.HighPower[i].Temperature != a.prevBatteries.HighPower[i].Temperature {
			return true
		}
	}
	return false
}
