// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statemachine

import (
	"context"
	"log/slog"

	"github.com/hyped/podctl/internal/telemetry"
)

// eventQueueSize bounds the single-consumer event channel. Ground-station
// commands and module failure reports are infrequent relative to the loop
// rate of other workers, so a small buffer is enough to never drop one
// under normal load while still surfacing backpressure if something is
// stuck.
const eventQueueSize = 16

// Machine owns the pod's global state and is the sole producer of
// StateMachineData. It consumes events from a single-consumer queue and
// processes them one at a time, publishing the new state atomically after
// each transition.
type Machine struct {
	registry *telemetry.Registry
	logger   *slog.Logger
	events   chan Event

	current         telemetry.State
	criticalFailure bool
}

// New constructs a Machine in the initial Idle state and publishes that
// initial StateMachineData immediately, matching the lifecycle rule that
// every substructure exists from process start.
func New(registry *telemetry.Registry, logger *slog.Logger) *Machine {
	m := &Machine{
		registry: registry,
		logger:   logger.With("component", "state_machine"),
		events:   make(chan Event, eventQueueSize),
		current:  telemetry.StateIdle,
	}
	m.publish()
	return m
}

// Send enqueues an event for processing. It never blocks indefinitely: if
// the queue is full the event is dropped and logged at WARN, matching the
// firmware-wide rule that no shared-state operation blocks forever.
func (m *Machine) Send(e Event) {
	select {
	case m.events <- e:
	default:
		m.logger.Warn("event queue full, dropping event", "event", e.String())
	}
}

// Run processes events until ctx is canceled. It is intended to run in its
// own goroutine for the lifetime of the firmware process.
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.events:
			m.handle(e)
		}
	}
}

// transitions enumerates every legal (from, event) -> to edge. Entries not
// present here are illegal from that state and are rejected by handle.
var transitions = map[telemetry.State]map[Event]telemetry.State{
	telemetry.StateIdle: {
		OnStart: telemetry.StateCalibrating,
	},
	telemetry.StateCalibrating: {
		CalibrationComplete: telemetry.StateReady,
	},
	telemetry.StateReady: {
		OnStart: telemetry.StateAccelerating,
	},
	telemetry.StateAccelerating: {
		MaxDistanceReached: telemetry.StateCruising,
	},
	telemetry.StateCruising: {
		EndOfRunReached: telemetry.StateDecelerating,
	},
	telemetry.StateDecelerating: {
		AllMotorsStopped: telemetry.StateRunComplete,
	},
	telemetry.StateRunComplete: {
		OnExit: telemetry.StateExiting,
	},
	telemetry.StateExiting: {
		EndOfTubeReached: telemetry.StateFailureStopped,
	},
	telemetry.StateEmergencyBraking: {
		AllMotorsStopped: telemetry.StateFailureStopped,
	},
}

// handle processes a single event. It is idempotent for events that are
// not legal from the current state: the state is left unchanged and the
// only side effect is a debug-level log line.
func (m *Machine) handle(e Event) {
	// CriticalFailureDetected is legal from every non-terminal state and
	// always wins, regardless of what the per-state transition table says.
	if e == CriticalFailureDetected {
		if m.current == telemetry.StateFailureStopped {
			m.logger.Debug("ignoring event, already terminal", "event", e.String())
			return
		}
		if m.current == telemetry.StateEmergencyBraking {
			m.logger.Debug("ignoring event, already braking", "event", e.String())
			return
		}
		m.transition(telemetry.StateEmergencyBraking, true)
		return
	}

	to, ok := transitions[m.current][e]
	if !ok {
		m.logger.Debug("ignoring illegal event for current state",
			"event", e.String(), "state", m.current.String())
		return
	}

	// Once critical_failure has latched, no transition may re-enter
	// Accelerating or Cruising even via an edge that would otherwise be
	// legal from the current state.
	if m.criticalFailure && (to == telemetry.StateAccelerating || to == telemetry.StateCruising) {
		m.logger.Warn("refusing to re-enter run state after critical failure",
			"event", e.String(), "attempted_state", to.String())
		return
	}

	m.transition(to, m.criticalFailure)
}

func (m *Machine) transition(to telemetry.State, criticalFailure bool) {
	from := m.current
	m.current = to
	m.criticalFailure = m.criticalFailure || criticalFailure
	m.logger.Info("state transition", "from", from.String(), "to", to.String(),
		"critical_failure", m.criticalFailure)
	m.publish()
}

func (m *Machine) publish() {
	m.registry.SetStateMachineData(telemetry.StateMachineData{
		CurrentState:    m.current,
		CriticalFailure: m.criticalFailure,
	})
}
