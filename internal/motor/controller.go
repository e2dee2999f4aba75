// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motor

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/hyped/podctl/internal/barrier"
	"github.com/hyped/podctl/internal/telemetry"
)

// Controller is the cooperative worker that tracks the pod state machine
// and drives the four CAN motor controllers. It is the sole producer of
// MotorData.
type Controller struct {
	registry *telemetry.Registry
	logger   *slog.Logger
	comm     Communicator
	barrier  *barrier.Barrier
	strategy SetpointStrategy

	onCriticalFailure  func()
	onAllMotorsStopped func()

	motorsInit       bool
	motorsReady      bool
	motorFailure     bool
	navCalibrated    bool // has this run already hit the post-calibration barrier
	allMotorsStopped bool

	criticalFailureNotified bool
	stoppedNotified         bool

	targetVelocity int32
	targetTorque   int16
}

// New constructs a Controller. barrier must be shared with the Navigation
// estimator: the Controller waits on it exactly once, on first entry into
// Accelerating. onCriticalFailure is called exactly once if a CAN health
// check or register/configure/prepare call fails; onAllMotorsStopped is
// called exactly once, once every motor has actually reached zero velocity
// after a quick-stop. Callers are expected to deliver the matching event to
// the pod state machine.
func New(registry *telemetry.Registry, logger *slog.Logger, comm Communicator, bar *barrier.Barrier, strategy SetpointStrategy, onCriticalFailure func(), onAllMotorsStopped func()) *Controller {
	c := &Controller{
		registry:           registry,
		logger:             logger.With("component", "motor"),
		comm:               comm,
		barrier:            bar,
		strategy:           strategy,
		onCriticalFailure:  onCriticalFailure,
		onAllMotorsStopped: onAllMotorsStopped,
	}
	registry.SetMotorData(telemetry.MotorData{ModuleStatus: telemetry.ModuleStart})
	return c
}

// Run dispatches on the current pod state until ctx is canceled.
func (c *Controller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		state := c.registry.GetStateMachineData()
		switch state.CurrentState {
		case telemetry.StateIdle:
			c.initMotors()
			runtime.Gosched()
		case telemetry.StateCalibrating:
			c.prepareMotors()
			runtime.Gosched()
		case telemetry.StateAccelerating:
			c.accelerateMotors(ctx)
		case telemetry.StateDecelerating:
			c.decelerateMotors(ctx)
		case telemetry.StateRunComplete:
			runtime.Gosched()
		case telemetry.StateExiting:
			c.servicePropulsion()
			runtime.Gosched()
		case telemetry.StateEmergencyBraking:
			c.stopMotors()
		case telemetry.StateFailureStopped:
			_ = c.comm.EnterPreOperational()
			return
		default:
			return
		}
	}
}

// initMotors registers and configures the CAN controllers. It is a no-op
// once it has already succeeded, or once motorFailure has latched.
func (c *Controller) initMotors() {
	if c.motorsInit || c.motorFailure {
		return
	}
	if err := c.comm.RegisterControllers(); err != nil {
		c.fail(err)
		return
	}
	if err := c.comm.ConfigureControllers(); err != nil {
		c.fail(err)
		return
	}
	c.publish(telemetry.ModuleInit)
	c.motorsInit = true
	c.logger.Info("motor state: idle")
}

// prepareMotors puts the controllers into operational mode and runs a
// health check. It is a no-op once it has already succeeded, or once
// motorFailure has latched.
func (c *Controller) prepareMotors() {
	if c.motorsReady || c.motorFailure {
		return
	}
	if err := c.comm.PrepareMotors(); err != nil {
		c.fail(err)
		return
	}
	ok, err := c.comm.HealthCheck()
	if err != nil || !ok {
		c.fail(err)
		return
	}
	c.publish(telemetry.ModuleReady)
	c.motorsReady = true
	c.logger.Info("motor state: ready")
}

// accelerateMotors waits on the post-calibration barrier exactly once,
// then loops while the pod remains in Accelerating, stepping the target
// setpoint upward on every tick.
func (c *Controller) accelerateMotors(ctx context.Context) {
	if !c.navCalibrated {
		c.logger.Info("motor state: waiting at post-calibration barrier")
		c.barrier.Wait()
		c.navCalibrated = true
	}

	c.logger.Info("motor state: accelerating")
	for {
		if ctx.Err() != nil {
			return
		}
		state := c.registry.GetStateMachineData()
		if state.CurrentState != telemetry.StateAccelerating {
			return
		}
		if state.CriticalFailure {
			c.stopMotors()
			return
		}

		ok, err := c.comm.HealthCheck()
		if err != nil || !ok {
			c.fail(err)
			c.stopMotors()
			return
		}

		nav := c.registry.GetNavigation()
		c.targetVelocity = c.strategy.NextAccelerationVelocity(c.targetVelocity, nav.Velocity)
		c.targetTorque = c.strategy.NextAccelerationTorque(c.targetTorque, nav.Velocity)
		c.sendTargets()
		c.refreshActuals()
	}
}

// decelerateMotors is the deceleration mirror of accelerateMotors. It does
// not wait on any barrier.
func (c *Controller) decelerateMotors(ctx context.Context) {
	c.logger.Info("motor state: decelerating")
	for {
		if ctx.Err() != nil {
			return
		}
		state := c.registry.GetStateMachineData()
		if state.CurrentState != telemetry.StateDecelerating {
			return
		}
		if state.CriticalFailure {
			c.stopMotors()
			return
		}

		ok, err := c.comm.HealthCheck()
		if err != nil || !ok {
			c.fail(err)
			c.stopMotors()
			return
		}

		nav := c.registry.GetNavigation()
		c.targetVelocity = c.strategy.NextDecelerationVelocity(c.targetVelocity, nav.Velocity)
		c.targetTorque = c.strategy.NextDecelerationTorque(c.targetTorque, nav.Velocity)
		c.sendTargets()
		c.refreshActuals()
	}
}

// stopMotors issues a quick-stop to all four controllers and polls actual
// velocity until every motor reports zero. It never waits on any other
// module: it is the firmware's fail-safe stop path and must be reachable
// even if every other worker has wedged.
func (c *Controller) stopMotors() {
	if err := c.comm.QuickStopAll(); err != nil {
		c.logger.Error("quick-stop failed", "error", err)
	}

	for !c.allMotorsStopped {
		data := c.refreshActuals()
		if data.AllStopped() {
			c.allMotorsStopped = true
			c.logger.Info("motor state: stopped")
		}
		runtime.Gosched()
	}
	c.refreshActuals()
	_ = c.comm.EnterPreOperational()
	if !c.stoppedNotified {
		c.stoppedNotified = true
		c.onAllMotorsStopped()
	}
}

// servicePropulsion performs maintenance while the pod is Exiting. The
// source leaves this as a TODO; this rendering keeps it a no-op.
func (c *Controller) servicePropulsion() {}

func (c *Controller) sendTargets() {
	targets := [4]int32{c.targetVelocity, c.targetVelocity, c.targetVelocity, c.targetVelocity}
	torques := [4]int16{c.targetTorque, c.targetTorque, c.targetTorque, c.targetTorque}
	if err := c.comm.SendTargetVelocity(targets); err != nil {
		c.logger.Error("send target velocity failed", "error", err)
	}
	if err := c.comm.SendTargetTorque(torques); err != nil {
		c.logger.Error("send target torque failed", "error", err)
	}
}

func (c *Controller) refreshActuals() telemetry.MotorData {
	velocity, err := c.comm.RequestActualVelocity()
	if err != nil {
		c.logger.Debug("request actual velocity failed", "error", err)
	}
	torque, err := c.comm.RequestActualTorque()
	if err != nil {
		c.logger.Debug("request actual torque failed", "error", err)
	}
	status := telemetry.ModuleReady
	if c.motorFailure || c.registry.GetStateMachineData().CriticalFailure {
		status = telemetry.ModuleCriticalFailure
	}
	data := telemetry.MotorData{Velocity: velocity, Torque: torque, ModuleStatus: status}
	c.registry.SetMotorData(data)
	return data
}

func (c *Controller) publish(status telemetry.ModuleStatus) {
	data := c.registry.GetMotorData()
	data.ModuleStatus = status
	c.registry.SetMotorData(data)
}

func (c *Controller) fail(err error) {
	c.logger.Error("motor state: failure", "error", err, "severity", "CRITICAL")
	c.motorFailure = true
	c.publish(telemetry.ModuleCriticalFailure)
	if !c.criticalFailureNotified {
		c.criticalFailureNotified = true
		c.onCriticalFailure()
	}
}
