// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package motor drives the four CAN wheel motor controllers in lockstep
// with the pod state machine.
package motor

// Communicator is the abstraction over the physical CAN gateway. Frame
// layouts are an external concern (see internal/transport/can for the
// concrete wire-level implementation); the controller only ever talks to
// this interface.
type Communicator interface {
	// RegisterControllers registers all four controllers on the CAN bus.
	RegisterControllers() error
	// ConfigureControllers pushes operating parameters to all four
	// controllers.
	ConfigureControllers() error
	// PrepareMotors puts all four controllers into operational mode.
	PrepareMotors() error
	// HealthCheck polls all four controllers for fault/warning state.
	// ok is false if any controller reports a fault.
	HealthCheck() (ok bool, err error)
	// SendTargetVelocity commands a target velocity (RPM) for each of the
	// four motors, in FL, FR, BL, BR order.
	SendTargetVelocity(target [4]int32) error
	// SendTargetTorque commands a target torque for each of the four
	// motors, in FL, FR, BL, BR order.
	SendTargetTorque(target [4]int16) error
	// RequestActualVelocity polls the actual velocity of each motor.
	RequestActualVelocity() ([4]int32, error)
	// RequestActualTorque polls the actual torque of each motor.
	RequestActualTorque() ([4]int16, error)
	// QuickStopAll issues an immediate quick-stop to all four controllers.
	QuickStopAll() error
	// EnterPreOperational commands all four controllers into the
	// pre-operational (safe) CAN state.
	EnterPreOperational() error
}
