// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package navigation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hyped/podctl/internal/barrier"
	"github.com/hyped/podctl/internal/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopConfig() Config {
	return Config{
		MinCalibrationSamples: 200_000,
		StripePitchMetres:     10.0,
		OnCriticalFailure:     func() {},
		OnCalibrationComplete: func() {},
		OnMaxDistanceReached:  func() {},
		OnEndOfTubeReached:    func() {},
	}
}

func advanceSensors(registry *telemetry.Registry, tick int64, forwardAcc float64) {
	advanceSensorsWithStripe(registry, tick, forwardAcc, 0)
}

func advanceSensorsWithStripe(registry *telemetry.Registry, tick int64, forwardAcc float64, stripe uint32) {
	var s telemetry.Sensors
	ts := time.Unix(0, tick*int64(time.Millisecond))
	for i := range s.Imu {
		s.Imu[i] = telemetry.ImuReading{AccX: forwardAcc, AccZ: 9.81, Timestamp: ts}
	}
	s.ProxiFront.Timestamp = ts
	s.ProxiBack.Timestamp = ts
	s.Stripe = telemetry.StripeCount{Value: stripe, Timestamp: ts}
	registry.SetSensors(s)
}

func TestEstimator_CalibrationTimeoutReportsCriticalFailure(t *testing.T) {
	registry := telemetry.New(discardLogger())
	bar := barrier.New(2)
	var failed bool
	cfg := noopConfig()
	cfg.OnCriticalFailure = func() { failed = true }
	e := New(registry, discardLogger(), bar, cfg)

	advanceSensors(registry, 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Run(ctx, 10*time.Millisecond)

	if !failed {
		t.Error("expected onCriticalFailure to be called after calibration timeout")
	}
}

func TestEstimator_FinishCalibrationRequiresMinSamples(t *testing.T) {
	registry := telemetry.New(discardLogger())
	bar := barrier.New(1)
	e := New(registry, discardLogger(), bar, noopConfig())

	e.state = navCalibrating
	e.calibrationSample = e.minCalibrationSamples - 1
	if e.FinishCalibration() {
		t.Error("FinishCalibration should fail below minCalibrationSamples")
	}

	e.calibrationSample = e.minCalibrationSamples
	if !e.FinishCalibration() {
		t.Error("FinishCalibration should succeed at minCalibrationSamples")
	}
	if e.state != navOperational {
		t.Errorf("state = %v, want navOperational", e.state)
	}
}

func TestEstimator_RunCallsCalibrationCompleteOnceThresholdReached(t *testing.T) {
	registry := telemetry.New(discardLogger())
	bar := barrier.New(2)
	var completed int
	cfg := noopConfig()
	cfg.MinCalibrationSamples = 3
	cfg.OnCalibrationComplete = func() { completed++ }
	e := New(registry, discardLogger(), bar, cfg)

	advanceSensors(registry, 1, 0)

	done := make(chan struct{})
	go func() {
		bar.Wait() // stand in for the motor controller's side of the rendezvous
		close(done)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx, time.Minute)
	defer cancel()

	for i := int64(2); i < 10; i++ {
		advanceSensors(registry, i, 0)
		time.Sleep(time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("barrier never released, FinishCalibration was not called")
	}

	if completed != 1 {
		t.Errorf("onCalibrationComplete called %d times, want 1", completed)
	}
}

func TestEstimator_UpdatesVelocityAndDistanceDuringOperation(t *testing.T) {
	registry := telemetry.New(discardLogger())
	bar := barrier.New(1)
	e := New(registry, discardLogger(), bar, noopConfig())
	e.state = navOperational
	e.gravity = 0

	advanceSensors(registry, 1, 0)
	e.haveSensors = false

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx, 0)
	defer cancel()

	for i := int64(2); i < 50; i++ {
		advanceSensors(registry, i, 2.0) // constant 2 m/s^2 forward acceleration
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	nav := registry.GetNavigation()
	if nav.Velocity <= 0 {
		t.Errorf("expected positive velocity after sustained forward acceleration, got %v", nav.Velocity)
	}
}

func TestEstimator_MaxDistanceAndEndOfTubeFireOnceEach(t *testing.T) {
	registry := telemetry.New(discardLogger())
	bar := barrier.New(1)
	var maxDistanceCount, endOfTubeCount int
	cfg := noopConfig()
	cfg.MaxAccelerationDistance = 5
	cfg.TubeLength = 5
	cfg.OnMaxDistanceReached = func() { maxDistanceCount++ }
	cfg.OnEndOfTubeReached = func() { endOfTubeCount++ }
	e := New(registry, discardLogger(), bar, cfg)
	e.state = navOperational
	e.gravity = 0

	advanceSensors(registry, 1, 0)
	e.haveSensors = false

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx, 0)
	defer cancel()

	// The stripe timestamp advances every tick, so the stripe correction
	// sets distance to count * 10 m; one stripe every ten ticks carries it
	// past both 5 m thresholds and on well beyond them.
	for i := int64(2); i < 100; i++ {
		advanceSensorsWithStripe(registry, i, 5.0, uint32(i/10))
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	if maxDistanceCount != 1 {
		t.Errorf("onMaxDistanceReached called %d times, want 1", maxDistanceCount)
	}
	if endOfTubeCount != 1 {
		t.Errorf("onEndOfTubeReached called %d times, want 1", endOfTubeCount)
	}
}

func TestBrakingDistanceMatchesEmergencyBrakingDistance(t *testing.T) {
	registry := telemetry.New(discardLogger())
	bar := barrier.New(1)
	e := New(registry, discardLogger(), bar, noopConfig())
	e.state = navOperational
	e.velocity = 30

	e.publish(0)

	nav := registry.GetNavigation()
	want := telemetry.BrakingDistance(30)
	if nav.EmergencyBrakingDistance != want {
		t.Errorf("EmergencyBrakingDistance = %v, want %v", nav.EmergencyBrakingDistance, want)
	}
}
