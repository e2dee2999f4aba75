// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package can

import "testing"

func TestSimulated_VelocityRampsTowardTarget(t *testing.T) {
	s := NewSimulated()
	if err := s.SendTargetVelocity([4]int32{500, 500, 500, 500}); err != nil {
		t.Fatalf("SendTargetVelocity: %v", err)
	}

	var last int32 = -1
	for i := 0; i < 20; i++ {
		v, err := s.RequestActualVelocity()
		if err != nil {
			t.Fatalf("RequestActualVelocity: %v", err)
		}
		if v[0] < last {
			t.Fatalf("velocity decreased: %d -> %d", last, v[0])
		}
		last = v[0]
	}
	if last != 500 {
		t.Errorf("expected velocity to reach target 500, got %d", last)
	}
}

func TestSimulated_QuickStopZeroesTargets(t *testing.T) {
	s := NewSimulated()
	s.SendTargetVelocity([4]int32{800, 800, 800, 800})
	for i := 0; i < 30; i++ {
		s.RequestActualVelocity()
	}
	if err := s.QuickStopAll(); err != nil {
		t.Fatalf("QuickStopAll: %v", err)
	}
	for i := 0; i < 30; i++ {
		s.RequestActualVelocity()
	}
	v, _ := s.RequestActualVelocity()
	if v[0] != 0 {
		t.Errorf("expected velocity to ramp down to 0 after QuickStopAll, got %d", v[0])
	}
}

func TestSimulated_HealthCheckReflectsInjectedFault(t *testing.T) {
	s := NewSimulated()
	ok, err := s.HealthCheck()
	if err != nil || !ok {
		t.Fatalf("HealthCheck before fault = (%v, %v), want (true, nil)", ok, err)
	}
	s.InjectFault()
	ok, err = s.HealthCheck()
	if err != nil || ok {
		t.Fatalf("HealthCheck after fault = (%v, %v), want (false, nil)", ok, err)
	}
}
