// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sensors polls every sensor device in turn from the aggregator's
// single goroutine and collates the readings into the Sensors and Batteries
// substructures. No per-device goroutines are started.
package sensors

import "github.com/hyped/podctl/internal/telemetry"

// ImuReader is the capability set the aggregator needs from an IMU
// device: a single blocking read per cycle. The source's virtual
// ImuInterface base class is re-expressed here as a plain interface; the
// aggregator holds a slice of these and owns each one for its lifetime.
type ImuReader interface {
	Read() (telemetry.ImuReading, error)
}

// ProximityBankReader reads an entire front or back bank of
// time-of-flight sensors in one call, matching the source's grouping of
// 24 physical sensors behind one proxi manager per bank.
type ProximityBankReader interface {
	Read() (telemetry.ProximityBank, error)
}

// StripeCountReader reads the GPIO edge counter.
type StripeCountReader interface {
	Read() (telemetry.StripeCount, error)
}

// BatteryReader reads one BMS.
type BatteryReader interface {
	Read() (telemetry.BatteryReading, error)
}
