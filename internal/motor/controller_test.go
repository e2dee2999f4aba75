// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hyped/podctl/internal/barrier"
	"github.com/hyped/podctl/internal/telemetry"
	"github.com/hyped/podctl/internal/transport/can"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestController_InitAndPrepareSequence(t *testing.T) {
	registry := telemetry.New(discardLogger())
	comm := can.NewSimulated()
	bar := barrier.New(1)
	c := New(registry, discardLogger(), comm, bar, ConstantStepStrategy{}, func() {}, func() {})

	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateIdle})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	if got := registry.GetMotorData().ModuleStatus; got != telemetry.ModuleInit {
		t.Fatalf("ModuleStatus after Idle = %v, want ModuleInit", got)
	}

	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateCalibrating})
	time.Sleep(20 * time.Millisecond)
	if got := registry.GetMotorData().ModuleStatus; got != telemetry.ModuleReady {
		t.Fatalf("ModuleStatus after Calibrating = %v, want ModuleReady", got)
	}
}

func TestController_VelocityMonotonicDuringAcceleration(t *testing.T) {
	registry := telemetry.New(discardLogger())
	comm := can.NewSimulated()
	bar := barrier.New(1)
	c := New(registry, discardLogger(), comm, bar, ConstantStepStrategy{}, func() {}, func() {})

	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateIdle})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateCalibrating})
	time.Sleep(10 * time.Millisecond)
	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateAccelerating})

	var last int32 = -1
	deadline := time.Now().Add(200 * time.Millisecond)
	samples := 0
	for time.Now().Before(deadline) {
		data := registry.GetMotorData()
		v := data.Velocity[0]
		if last >= 0 && v < last {
			t.Fatalf("velocity decreased during Accelerating: %d -> %d", last, v)
		}
		last = v
		samples++
		time.Sleep(2 * time.Millisecond)
	}
	if samples == 0 {
		t.Fatal("collected no samples")
	}
}

func TestController_CriticalFailureCallbackFiresOnce(t *testing.T) {
	registry := telemetry.New(discardLogger())
	comm := can.NewSimulated()
	bar := barrier.New(1)
	var failures int
	c := New(registry, discardLogger(), comm, bar, ConstantStepStrategy{},
		func() { failures++ }, func() {})

	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateIdle})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateCalibrating})
	time.Sleep(10 * time.Millisecond)
	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateAccelerating})
	time.Sleep(10 * time.Millisecond)

	comm.InjectFault()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("onCriticalFailure was never called")
		default:
		}
		if failures > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if failures != 1 {
		t.Errorf("onCriticalFailure called %d times, want 1", failures)
	}
}

func TestController_StopMotorsReachesAllZero(t *testing.T) {
	registry := telemetry.New(discardLogger())
	comm := can.NewSimulated()
	bar := barrier.New(1)
	var stopped int
	c := New(registry, discardLogger(), comm, bar, ConstantStepStrategy{}, func() {}, func() { stopped++ })

	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateIdle})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateCalibrating})
	time.Sleep(10 * time.Millisecond)
	registry.SetStateMachineData(telemetry.StateMachineData{CurrentState: telemetry.StateAccelerating})
	time.Sleep(30 * time.Millisecond) // let velocity ramp up some

	registry.SetStateMachineData(telemetry.StateMachineData{
		CurrentState:    telemetry.StateEmergencyBraking,
		CriticalFailure: true,
	})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("motors never reached all-stopped")
		default:
		}
		if registry.GetMotorData().AllStopped() {
			time.Sleep(10 * time.Millisecond)
			if stopped != 1 {
				t.Errorf("onAllMotorsStopped called %d times, want 1", stopped)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
