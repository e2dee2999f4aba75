// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sensors

import (
	"sync/atomic"
	"time"

	"github.com/hyped/podctl/internal/telemetry"
)

// FakeImu is a deterministic stand-in for a real MPU9250 transport. It
// advances its timestamp on every Read, matching the role
// src/sensors/fake_batteries.cpp plays for batteries in the source: a
// simple in-memory producer usable for tests and local running without
// hardware.
type FakeImu struct {
	ticks     atomic.Int64
	gravity   float64
	forwardAcc float64
}

// NewFakeImu constructs a FakeImu that reports a constant forward
// acceleration (zero until set via SetForwardAcceleration) and a constant
// 1g on the Z axis.
func NewFakeImu() *FakeImu {
	return &FakeImu{gravity: 9.81}
}

// SetForwardAcceleration lets tests drive a specific acceleration profile.
func (f *FakeImu) SetForwardAcceleration(a float64) {
	f.forwardAcc = a
}

func (f *FakeImu) Read() (telemetry.ImuReading, error) {
	n := f.ticks.Add(1)
	return telemetry.ImuReading{
		AccX:      f.forwardAcc,
		AccY:      0,
		AccZ:      f.gravity,
		GyrX:      0,
		GyrY:      0,
		GyrZ:      0,
		Timestamp: time.Unix(0, n*int64(time.Millisecond)),
	}, nil
}

// FakeProximityBank is a deterministic stand-in for a VL6180 bank.
type FakeProximityBank struct {
	ticks atomic.Int64
}

func NewFakeProximityBank() *FakeProximityBank { return &FakeProximityBank{} }

func (f *FakeProximityBank) Read() (telemetry.ProximityBank, error) {
	n := f.ticks.Add(1)
	var bank telemetry.ProximityBank
	for i := range bank.Values {
		bank.Values[i] = uint8(n % 256)
	}
	bank.Timestamp = time.Unix(0, n*int64(time.Millisecond))
	return bank, nil
}

// FakeStripeCounter is a deterministic stand-in for the GPIO edge
// counter.
type FakeStripeCounter struct {
	count atomic.Uint32
	ticks atomic.Int64
}

func NewFakeStripeCounter() *FakeStripeCounter { return &FakeStripeCounter{} }

// Advance increments the stripe count, simulating a reflective stripe
// passing the sensor.
func (f *FakeStripeCounter) Advance() {
	f.count.Add(1)
}

func (f *FakeStripeCounter) Read() (telemetry.StripeCount, error) {
	n := f.ticks.Add(1)
	return telemetry.StripeCount{
		Value:     f.count.Load(),
		Timestamp: time.Unix(0, n*int64(time.Millisecond)),
	}, nil
}

// FakeBattery is a deterministic stand-in for a BMS transport.
type FakeBattery struct {
	Voltage     float64
	Current     float64
	Temperature float64
	Charge      float64
}

func NewFakeBattery() *FakeBattery {
	return &FakeBattery{Voltage: 48.0, Current: 2.0, Temperature: 25.0, Charge: 100.0}
}

func (f *FakeBattery) Read() (telemetry.BatteryReading, error) {
	return telemetry.BatteryReading{
		Voltage:     f.Voltage,
		Current:     f.Current,
		Temperature: f.Temperature,
		Charge:      f.Charge,
	}, nil
}
