// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package navigation fuses IMU, proximity, and stripe-count readings into
// the pod's forward-motion estimate.
package navigation

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/hyped/podctl/internal/barrier"
	"github.com/hyped/podctl/internal/telemetry"
)

// navState is the estimator's internal calibration/operational state,
// distinct from the pod state machine's State.
type navState int

const (
	navInit navState = iota
	navCalibrating
	navOperational
	navFailed
)

// Config bundles the thresholds and event hooks an Estimator needs.
// OnCriticalFailure is called exactly once if calibration cannot complete
// within the configured timeout. OnCalibrationComplete, OnMaxDistanceReached,
// and OnEndOfTubeReached each fire exactly once, from the Estimator's own
// goroutine, when their respective condition is first met; callers are
// expected to deliver the matching event to the pod state machine.
type Config struct {
	MinCalibrationSamples   int
	StripePitchMetres       float64
	MaxAccelerationDistance float64
	TubeLength              float64

	OnCriticalFailure     func()
	OnCalibrationComplete func()
	OnMaxDistanceReached  func()
	OnEndOfTubeReached    func()
}

// Estimator is the sole producer of Navigation. It runs its own
// calibration phase, independent of and synchronized with the pod state
// machine only through the post-calibration barrier and the event hooks in
// Config.
type Estimator struct {
	registry *telemetry.Registry
	logger   *slog.Logger
	barrier  *barrier.Barrier

	minCalibrationSamples   int
	stripePitchMetres       float64
	maxAccelerationDistance float64
	tubeLength              float64

	onCriticalFailure     func()
	onCalibrationComplete func()
	onMaxDistanceReached  func()
	onEndOfTubeReached    func()

	state             navState
	calibrationSample int
	gravity           float64
	gyroBiasSum       float64

	maxDistanceSent bool
	endOfTubeSent   bool

	prevSensors telemetry.Sensors
	haveSensors bool

	distance     float64
	velocity     float64
	acceleration float64
}

// New constructs an Estimator.
func New(registry *telemetry.Registry, logger *slog.Logger, bar *barrier.Barrier, cfg Config) *Estimator {
	return &Estimator{
		registry:                registry,
		logger:                  logger.With("component", "navigation"),
		barrier:                 bar,
		minCalibrationSamples:   cfg.MinCalibrationSamples,
		stripePitchMetres:       cfg.StripePitchMetres,
		maxAccelerationDistance: cfg.MaxAccelerationDistance,
		tubeLength:              cfg.TubeLength,
		onCriticalFailure:       cfg.OnCriticalFailure,
		onCalibrationComplete:   cfg.OnCalibrationComplete,
		onMaxDistanceReached:    cfg.OnMaxDistanceReached,
		onEndOfTubeReached:      cfg.OnEndOfTubeReached,
		state:                   navInit,
	}
}

// Run polls the registry for new sensor ticks until ctx is canceled.
// calibrationTimeout bounds how long the Calibrating phase may run before
// the estimator gives up and reports CriticalFailure.
func (e *Estimator) Run(ctx context.Context, calibrationTimeout time.Duration) {
	var calibrationDeadline time.Time

	for {
		if ctx.Err() != nil {
			return
		}

		sensors := e.registry.GetSensors()
		advanced := e.tick(sensors)

		switch e.state {
		case navInit:
			if advanced {
				e.state = navCalibrating
				calibrationDeadline = time.Now().Add(calibrationTimeout)
				e.logger.Info("navigation state: calibrating")
			}
		case navCalibrating:
			if advanced {
				e.calibrationUpdate(sensors)
			}
			if e.calibrationSample >= e.minCalibrationSamples {
				if e.FinishCalibration() {
					e.onCalibrationComplete()
				}
			} else if calibrationTimeout > 0 && time.Now().After(calibrationDeadline) {
				e.state = navFailed
				e.logger.Error("calibration timed out", "severity", "CRITICAL",
					"samples", e.calibrationSample, "required", e.minCalibrationSamples)
				e.onCriticalFailure()
				return
			}
		case navOperational:
			if advanced {
				e.update(sensors)
			}
		case navFailed:
			return
		}

		e.prevSensors = sensors
		e.haveSensors = true
		runtime.Gosched()
	}
}

// FinishCalibration transitions the estimator from Calibrating to
// Operational once at least minCalibrationSamples have been accumulated.
// It hits the post-calibration barrier before returning true, releasing
// the Motor Controller's rendezvous.
func (e *Estimator) FinishCalibration() bool {
	if e.state != navCalibrating || e.calibrationSample < e.minCalibrationSamples {
		return false
	}
	e.state = navOperational
	e.logger.Info("navigation state: operational", "calibration_samples", e.calibrationSample)
	e.barrier.Wait()
	return true
}

// tick reports whether the given Sensors snapshot is new relative to the
// last one this estimator observed (i.e. any tracked group advanced).
func (e *Estimator) tick(s telemetry.Sensors) bool {
	if !e.haveSensors {
		return true
	}
	for i := range s.Imu {
		if !s.Imu[i].Timestamp.Equal(e.prevSensors.Imu[i].Timestamp) {
			return true
		}
	}
	if !s.Stripe.Timestamp.Equal(e.prevSensors.Stripe.Timestamp) {
		return true
	}
	if !s.ProxiFront.Timestamp.Equal(e.prevSensors.ProxiFront.Timestamp) ||
		!s.ProxiBack.Timestamp.Equal(e.prevSensors.ProxiBack.Timestamp) {
		return true
	}
	return false
}

// calibrationUpdate accumulates gravity and gyro bias samples.
func (e *Estimator) calibrationUpdate(s telemetry.Sensors) {
	e.calibrationSample++
	var gSum, gyroSum float64
	for _, imu := range s.Imu {
		gSum += imu.AccZ
		gyroSum += imu.GyrX + imu.GyrY + imu.GyrZ
	}
	n := float64(len(s.Imu))
	e.gravity += (gSum/n - e.gravity) / float64(e.calibrationSample)
	e.gyroBiasSum += (gyroSum/n - e.gyroBiasSum) / float64(e.calibrationSample)
}

// update applies the appropriate fused-estimation step. Which correction
// terms are applied depends on which sensor groups advanced relative to
// the previous tick: IMU alone integrates orientation and acceleration;
// proximity and stripe-count readings, when present, correct displacement.
// On a tie between the two corrections, the stripe-count correction wins.
func (e *Estimator) update(s telemetry.Sensors) {
	dt := e.dt(s)

	proxiAdvanced := !s.ProxiFront.Timestamp.Equal(e.prevSensors.ProxiFront.Timestamp) ||
		!s.ProxiBack.Timestamp.Equal(e.prevSensors.ProxiBack.Timestamp)
	stripeAdvanced := !s.Stripe.Timestamp.Equal(e.prevSensors.Stripe.Timestamp)

	var accSum float64
	for _, imu := range s.Imu {
		accSum += imu.AccX
	}
	meanAcc := accSum/float64(len(s.Imu)) - e.gravity

	e.acceleration = meanAcc
	e.velocity += meanAcc * dt
	if e.velocity < 0 {
		e.velocity = 0
	}
	e.distance += e.velocity * dt

	if stripeAdvanced {
		e.distance = e.stripeDisplacement(s.Stripe.Value)
	} else if proxiAdvanced {
		e.distance = e.proximityDisplacement(s, e.distance)
	}

	e.publish(s.Stripe.Value)
	e.checkDistanceThresholds()
}

func (e *Estimator) dt(s telemetry.Sensors) float64 {
	latest := s.Imu[0].Timestamp
	prev := e.prevSensors.Imu[0].Timestamp
	if prev.IsZero() || !e.haveSensors {
		return 0
	}
	d := latest.Sub(prev).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// stripeDisplacement converts a stripe count into an absolute-ish
// displacement correction, using the configured track stripe pitch.
func (e *Estimator) stripeDisplacement(count uint32) float64 {
	return float64(count) * e.stripePitchMetres
}

// proximityDisplacement Kalman-blends the integrated displacement with a
// proximity-derived estimate. The Kalman math itself is out of scope; this
// rendering keeps the integrated estimate, weighted slightly toward the
// proximity mean, as a stand-in blend.
func (e *Estimator) proximityDisplacement(s telemetry.Sensors, integrated float64) float64 {
	var sum float64
	for _, v := range s.ProxiFront.Values {
		sum += float64(v)
	}
	for _, v := range s.ProxiBack.Values {
		sum += float64(v)
	}
	n := float64(len(s.ProxiFront.Values) + len(s.ProxiBack.Values))
	mean := sum / n
	const proxiWeight = 0.1
	return integrated*(1-proxiWeight) + mean*proxiWeight
}

// checkDistanceThresholds fires MaxDistanceReached and EndOfTubeReached
// exactly once each, as soon as distance first crosses the configured
// threshold. Navigation is the sole owner of these distance-based
// transitions; it fires them regardless of the pod's current state and
// relies on the state machine to reject the event if it arrives from a
// state where it isn't legal.
func (e *Estimator) checkDistanceThresholds() {
	if !e.maxDistanceSent && e.maxAccelerationDistance > 0 && e.distance >= e.maxAccelerationDistance {
		e.maxDistanceSent = true
		e.onMaxDistanceReached()
	}
	if !e.endOfTubeSent && e.tubeLength > 0 && e.distance >= e.tubeLength {
		e.endOfTubeSent = true
		e.onEndOfTubeReached()
	}
}

func (e *Estimator) publish(stripeCount uint32) {
	e.registry.SetNavigation(telemetry.Navigation{
		Distance:                 e.distance,
		Velocity:                 e.velocity,
		Acceleration:             e.acceleration,
		StripeCount:              stripeCount,
		EmergencyBrakingDistance: telemetry.BrakingDistance(e.velocity),
	})
}
