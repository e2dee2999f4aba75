// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"log/slog"
	"os"
	"sync"
)

// Registry is the single point of truth through which the pod's worker
// goroutines exchange published snapshots. Unlike the source's process-wide
// singleton, a Registry is an ordinary value: one is constructed in the
// command that starts the run and passed by reference into every worker's
// constructor. Each substructure has its own exclusive lock so one
// producer's write never blocks another substructure's readers.
type Registry struct {
	logger *slog.Logger

	navigationMu sync.RWMutex
	navigation   Navigation

	sensorsMu sync.RWMutex
	sensors   Sensors

	batteriesMu sync.RWMutex
	batteries   Batteries

	motorMu sync.RWMutex
	motor   MotorData

	stateMu sync.RWMutex
	state   StateMachineData
}

// New constructs a Registry with every substructure zero-valued and
// module_status fields set to Start, per the lifecycle rule in the data
// model: substructures are created once at process start and mutated only
// by their designated producer thereafter.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		motor:  MotorData{ModuleStatus: ModuleStart},
	}
}

// fatal aborts the process with exit code 2, the same code the run command
// uses for a critical failure latched during the run: a write that panics
// mid-mutation leaves a substructure in an undefined state, and a
// partially-written telemetry snapshot is unsafe to let any consumer
// observe.
func (r *Registry) fatal(component string, recovered any) {
	r.logger.Error("registry write panicked, aborting process",
		"component", component, "severity", "CRITICAL", "panic", recovered)
	os.Exit(2)
}

// GetNavigation returns a by-value copy of the latest published Navigation.
func (r *Registry) GetNavigation() Navigation {
	r.navigationMu.RLock()
	defer r.navigationMu.RUnlock()
	return r.navigation
}

// SetNavigation publishes a new Navigation snapshot.
func (r *Registry) SetNavigation(n Navigation) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fatal("navigation", rec)
		}
	}()
	r.navigationMu.Lock()
	defer r.navigationMu.Unlock()
	r.navigation = n
}

// GetSensors returns a by-value copy of the latest published Sensors.
func (r *Registry) GetSensors() Sensors {
	r.sensorsMu.RLock()
	defer r.sensorsMu.RUnlock()
	return r.sensors
}

// SetSensors publishes a new Sensors snapshot.
func (r *Registry) SetSensors(s Sensors) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fatal("sensors", rec)
		}
	}()
	r.sensorsMu.Lock()
	defer r.sensorsMu.Unlock()
	r.sensors = s
}

// GetBatteries returns a by-value copy of the latest published Batteries.
func (r *Registry) GetBatteries() Batteries {
	r.batteriesMu.RLock()
	defer r.batteriesMu.RUnlock()
	return r.batteries
}

// SetBatteries publishes a new Batteries snapshot.
func (r *Registry) SetBatteries(b Batteries) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fatal("batteries", rec)
		}
	}()
	r.batteriesMu.Lock()
	defer r.batteriesMu.Unlock()
	r.batteries = b
}

// GetMotorData returns a by-value copy of the latest published MotorData.
func (r *Registry) GetMotorData() MotorData {
	r.motorMu.RLock()
	defer r.motorMu.RUnlock()
	return r.motor
}

// SetMotorData publishes a new MotorData snapshot.
func (r *Registry) SetMotorData(m MotorData) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fatal("motor", rec)
		}
	}()
	r.motorMu.Lock()
	defer r.motorMu.Unlock()
	r.motor = m
}

// GetStateMachineData returns a by-value copy of the latest published
// StateMachineData.
func (r *Registry) GetStateMachineData() StateMachineData {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

// SetStateMachineData publishes a new StateMachineData snapshot. Once
// CriticalFailure is true, it is latched: a caller trying to publish
// CriticalFailure=false after it was true is a bug in the caller, not
// something the registry will silently allow.
func (r *Registry) SetStateMachineData(s StateMachineData) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fatal("state_machine", rec)
		}
	}()
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state.CriticalFailure && !s.CriticalFailure {
		panic("attempted to clear a latched critical_failure flag")
	}
	r.state = s
}
