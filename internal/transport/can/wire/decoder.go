// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import "fmt"

const (
	stateIdle = iota
	stateLength
	stateController
	statePayload
	stateCRC1
	stateCRC2
)

// Decoder implements the gateway protocol's byte-stream decoder state
// machine, the inverse of Encode.
type Decoder struct {
	state       int
	length      uint8
	controller  ControllerID
	payload     []byte
	crcHi       byte
	buffer      []byte // data section (length + controller + payload), for CRC check
	escapeNext  bool
}

// NewDecoder constructs an idle Decoder.
func NewDecoder() *Decoder {
	return &Decoder{state: stateIdle, buffer: make([]byte, 0, MaxPacketSize)}
}

// Reset returns the decoder to the idle state, discarding any
// partially-decoded frame.
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
	d.payload = nil
	d.buffer = d.buffer[:0]
	d.escapeNext = false
}

// DecodeByte feeds one byte into the decoder. It returns a completed
// Packet when a full, CRC-valid frame has been received, or an error if
// the frame is malformed.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}

	original := b
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	if original == StartByte && !d.escapeNext {
		d.Reset()
		d.state = stateLength
		return nil, nil
	}

	if original == EndByte && !d.escapeNext {
		if d.state != stateCRC2 {
			d.Reset()
			return nil, fmt.Errorf("unexpected end byte in state %d", d.state)
		}
		return d.finish()
	}

	switch d.state {
	case stateIdle:
		return nil, nil

	case stateLength:
		if b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length %d (max %d)", b, MaxPayloadSize)
		}
		d.length = b
		d.buffer = append(d.buffer, b)
		d.state = stateController

	case stateController:
		d.controller = ControllerID(b)
		d.buffer = append(d.buffer, b)
		d.payload = make([]byte, 0, d.length)
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}

	case statePayload:
		d.payload = append(d.payload, b)
		d.buffer = append(d.buffer, b)
		if len(d.payload) == int(d.length) {
			d.state = stateCRC1
		}

	case stateCRC1:
		d.crcHi = b
		d.state = stateCRC2

	case stateCRC2:
		expected := uint16(d.crcHi)<<8 | uint16(b)
		actual := CalculateCRC(d.buffer)
		if expected != actual {
			d.Reset()
			return nil, fmt.Errorf("crc mismatch: expected 0x%04X, got 0x%04X", expected, actual)
		}
		// Wait for the END byte; nothing more to do here.

	default:
		d.Reset()
		return nil, fmt.Errorf("decoder in unknown state %d", d.state)
	}

	return nil, nil
}

func (d *Decoder) finish() (*Packet, error) {
	msgType, payload, err := parseCBORPayload(d.payload)
	if err != nil {
		d.Reset()
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	p := &Packet{Controller: d.controller, MsgType: msgType, Payload: payload}
	d.Reset()
	return p, nil
}
