// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package can

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/hyped/podctl/internal/transport/can/wire"
)

// controllers lists every real motor controller the gateway addresses
// commands to, in FL, FR, BL, BR order.
var controllers = [4]wire.ControllerID{
	wire.ControllerFrontLeft,
	wire.ControllerFrontRight,
	wire.ControllerBackLeft,
	wire.ControllerBackRight,
}

// CanProxi is the motor.Communicator implementation that reaches the four
// wheel motor controllers through a serial-attached CAN-USB gateway
// (slcan-style adapter), a common way to put a CAN bus on a
// BeagleBone-class board without a dedicated CAN SoC. Every operation is
// framed with the gateway wire protocol (internal/transport/can/wire).
type CanProxi struct {
	mu      sync.Mutex
	port    serial.Port
	decoder *wire.Decoder
	timeout time.Duration
}

// OpenCanProxi opens the serial CAN gateway at portName.
func OpenCanProxi(portName string, baudRate int) (*CanProxi, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open can gateway port %s: %w", portName, err)
	}
	return &CanProxi{port: port, decoder: wire.NewDecoder(), timeout: 500 * time.Millisecond}, nil
}

func (c *CanProxi) Close() error {
	return c.port.Close()
}

// roundTrip sends a packet and blocks for the gateway's response frame,
// matching the gateway protocol's one-request-one-response shape.
func (c *CanProxi) roundTrip(req *wire.Packet) (*wire.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded, err := wire.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := c.port.Write(encoded); err != nil {
		return nil, fmt.Errorf("write to gateway: %w", err)
	}

	c.port.SetReadTimeout(c.timeout)
	buf := make([]byte, 64)
	deadline := time.Now().Add(c.timeout)
	for time.Now().Before(deadline) {
		n, err := c.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read from gateway: %w", err)
		}
		for i := 0; i < n; i++ {
			packet, err := c.decoder.DecodeByte(buf[i])
			if err != nil {
				return nil, fmt.Errorf("decode gateway response: %w", err)
			}
			if packet != nil {
				return packet, nil
			}
		}
	}
	return nil, fmt.Errorf("timed out waiting for gateway response")
}

func (c *CanProxi) broadcast(build func(wire.ControllerID) *wire.Packet) error {
	for _, id := range controllers {
		resp, err := c.roundTrip(build(id))
		if err != nil {
			return fmt.Errorf("controller %d: %w", id, err)
		}
		if resp.MsgType == wire.MsgNack {
			return fmt.Errorf("controller %d rejected command", id)
		}
	}
	return nil
}

func (c *CanProxi) RegisterControllers() error {
	return c.broadcast(wire.NewRegisterCommand)
}

func (c *CanProxi) ConfigureControllers() error {
	return c.broadcast(wire.NewConfigureCommand)
}

func (c *CanProxi) PrepareMotors() error {
	return c.broadcast(wire.NewPrepareCommand)
}

func (c *CanProxi) HealthCheck() (bool, error) {
	for _, id := range controllers {
		resp, err := c.roundTrip(wire.NewHealthCheckRequest(id))
		if err != nil {
			return false, fmt.Errorf("controller %d: %w", id, err)
		}
		if resp.MsgType != wire.MsgHealthCheckResp {
			return false, fmt.Errorf("controller %d sent unexpected response 0x%02X", id, resp.MsgType)
		}
		if fault, _ := wire.GetBool(resp.Payload, wire.KeyFault); fault {
			return false, nil
		}
	}
	return true, nil
}

func (c *CanProxi) SendTargetVelocity(target [4]int32) error {
	for i, id := range controllers {
		if _, err := c.roundTrip(wire.NewTargetVelocityCommand(id, target[i])); err != nil {
			return fmt.Errorf("controller %d: %w", id, err)
		}
	}
	return nil
}

func (c *CanProxi) SendTargetTorque(target [4]int16) error {
	for i, id := range controllers {
		if _, err := c.roundTrip(wire.NewTargetTorqueCommand(id, target[i])); err != nil {
			return fmt.Errorf("controller %d: %w", id, err)
		}
	}
	return nil
}

func (c *CanProxi) RequestActualVelocity() ([4]int32, error) {
	var out [4]int32
	for i, id := range controllers {
		resp, err := c.roundTrip(wire.NewActualVelocityRequest(id))
		if err != nil {
			return out, fmt.Errorf("controller %d: %w", id, err)
		}
		v, _ := wire.GetInt(resp.Payload, wire.KeyValue)
		out[i] = int32(v)
	}
	return out, nil
}

func (c *CanProxi) RequestActualTorque() ([4]int16, error) {
	var out [4]int16
	for i, id := range controllers {
		resp, err := c.roundTrip(wire.NewActualTorqueRequest(id))
		if err != nil {
			return out, fmt.Errorf("controller %d: %w", id, err)
		}
		v, _ := wire.GetInt(resp.Payload, wire.KeyValue)
		out[i] = int16(v)
	}
	return out, nil
}

func (c *CanProxi) QuickStopAll() error {
	_, err := c.roundTrip(wire.NewQuickStopCommand(wire.ControllerBroadcast))
	return err
}

func (c *CanProxi) EnterPreOperational() error {
	_, err := c.roundTrip(wire.NewPreOperationalCommand(wire.ControllerBroadcast))
	return err
}
