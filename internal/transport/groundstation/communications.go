// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package groundstation

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hyped/podctl/internal/statemachine"
	"github.com/hyped/podctl/internal/telemetry"
)

// Command codes received from the ground station over the link.
const (
	codeEndOfRun     = 1
	codeCriticalFail = 2
	codeLaunch       = 3
)

// Dialer opens a fresh Connection to the ground station. Communications
// calls it once at startup and again on every reconnect attempt, so the
// same component works against a raw TCP socket or a WebSocket without
// knowing which.
type Dialer func() (Connection, error)

// Communications owns the long-lived link to the ground station: it
// receives command codes and turns them into state-machine events, and it
// periodically pushes telemetry lines upstream. A dropped connection is
// retried with exponential backoff up to maxReconnectAttempts; exhausting
// that budget surfaces CriticalFailureDetected, since a pod that has lost
// its ground-station link cannot be stopped remotely.
type Communications struct {
	dial     Dialer
	registry *telemetry.Registry
	machine  *statemachine.Machine
	logger   *slog.Logger

	maxReconnectAttempts int
	backoffBase          time.Duration
	backoffMax           time.Duration
	telemetryInterval    time.Duration
}

// New constructs a Communications worker. dial is called to establish (and
// re-establish) the underlying Connection.
func New(dial Dialer, registry *telemetry.Registry, machine *statemachine.Machine, logger *slog.Logger) *Communications {
	return &Communications{
		dial:                 dial,
		registry:             registry,
		machine:              machine,
		logger:               logger.With("component", "communications"),
		maxReconnectAttempts: 8,
		backoffBase:          200 * time.Millisecond,
		backoffMax:           10 * time.Second,
		telemetryInterval:    200 * time.Millisecond,
	}
}

// Run connects to the ground station and services the link until ctx is
// canceled, reconnecting on failure. It returns only when ctx is done or
// the reconnect budget is exhausted.
func (c *Communications) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.connectWithBackoff(ctx)
		if err != nil {
			c.logger.Error("ground station unreachable, giving up", "error", err, "severity", "CRITICAL")
			c.machine.Send(statemachine.CriticalFailureDetected)
			return
		}
		if conn == nil {
			return // ctx canceled while backing off
		}

		c.serviceConnection(ctx, conn)
	}
}

func (c *Communications) connectWithBackoff(ctx context.Context) (Connection, error) {
	var lastErr error
	delay := c.backoffBase
	for attempt := 0; attempt < c.maxReconnectAttempts; attempt++ {
		conn, err := c.dial()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("ground station dial failed, retrying", "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.backoffMax {
			delay = c.backoffMax
		}
	}
	return nil, fmt.Errorf("exhausted %d reconnect attempts: %w", c.maxReconnectAttempts, lastErr)
}

// serviceConnection reads inbound command lines and writes telemetry lines
// until either the connection fails or ctx is canceled, at which point it
// closes the connection and returns so Run can reconnect (or exit).
func (c *Communications) serviceConnection(ctx context.Context, conn Connection) {
	defer conn.Close()

	lines := make(chan string, 1)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	ticker := time.NewTicker(c.telemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case line := <-lines:
			c.handleLine(line)
		case err := <-readErr:
			if err != nil {
				c.logger.Warn("ground station link read failed", "error", err)
			} else {
				c.logger.Warn("ground station closed the connection")
			}
			return
		case <-ticker.C:
			if err := c.pushTelemetry(conn); err != nil {
				c.logger.Warn("ground station telemetry write failed", "error", err)
				return
			}
		}
	}
}

func (c *Communications) handleLine(line string) {
	code, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		c.logger.Warn("ignoring malformed ground station command", "line", line)
		return
	}
	switch code {
	case codeEndOfRun:
		c.machine.Send(statemachine.EndOfRunReached)
	case codeCriticalFail:
		c.machine.Send(statemachine.CriticalFailureDetected)
	case codeLaunch:
		c.machine.Send(statemachine.OnStart)
	default:
		c.logger.Warn("ignoring unknown ground station command code", "code", code)
	}
}

// pushTelemetry writes the pod's current navigation and state telemetry as
// newline-terminated "<code> <value>" lines.
func (c *Communications) pushTelemetry(conn Connection) error {
	nav := c.registry.GetNavigation()
	sm := c.registry.GetStateMachineData()

	lines := []string{
		fmt.Sprintf("10 %.3f\n", nav.Velocity),
		fmt.Sprintf("11 %.3f\n", nav.Distance),
		fmt.Sprintf("12 %.3f\n", telemetry.BrakingDistance(nav.Velocity)),
		fmt.Sprintf("13 %d\n", int(sm.CurrentState)),
	}
	for _, line := range lines {
		if _, err := conn.Write([]byte(line)); err != nil {
			return err
		}
	}
	return nil
}
