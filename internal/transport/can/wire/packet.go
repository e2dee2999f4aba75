// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Packet is a decoded gateway protocol frame addressed to (or from) one
// controller.
type Packet struct {
	Controller ControllerID
	MsgType    uint8
	Payload    map[int]interface{}
}

// NewPacket builds a Packet ready for encoding.
func NewPacket(controller ControllerID, msgType uint8, payload map[int]interface{}) *Packet {
	return &Packet{Controller: controller, MsgType: msgType, Payload: payload}
}

// encodeCBORPayload CBOR-encodes a [msg_type, payload_map] pair, matching
// the Fusain wire envelope.
func encodeCBORPayload(msgType uint8, payload map[int]interface{}) ([]byte, error) {
	var msg interface{}
	if len(payload) == 0 {
		msg = []interface{}{uint64(msgType), nil}
	} else {
		msg = []interface{}{uint64(msgType), payload}
	}
	return cbor.Marshal(msg)
}

// parseCBORPayload is the inverse of encodeCBORPayload.
func parseCBORPayload(data []byte) (msgType uint8, payload map[int]interface{}, err error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("empty cbor payload")
	}
	var msg []interface{}
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return 0, nil, fmt.Errorf("decode cbor: %w", err)
	}
	if len(msg) != 2 {
		return 0, nil, fmt.Errorf("expected 2-element array, got %d", len(msg))
	}
	v, ok := msg[0].(uint64)
	if !ok || v > 255 {
		return 0, nil, fmt.Errorf("bad message type %v", msg[0])
	}
	msgType = uint8(v)

	if msg[1] == nil {
		return msgType, nil, nil
	}
	m, ok := msg[1].(map[interface{}]interface{})
	if !ok {
		return 0, nil, fmt.Errorf("expected map payload, got %T", msg[1])
	}
	payload = make(map[int]interface{}, len(m))
	for k, val := range m {
		switch kk := k.(type) {
		case uint64:
			payload[int(kk)] = val
		case int64:
			payload[int(kk)] = val
		default:
			return 0, nil, fmt.Errorf("expected integer map key, got %T", k)
		}
	}
	return msgType, payload, nil
}

// GetUint extracts a uint64 payload value by key.
func GetUint(m map[int]interface{}, key int) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case int64:
		return uint64(val), true
	default:
		return 0, false
	}
}

// GetInt extracts an int64 payload value by key.
func GetInt(m map[int]interface{}, key int) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case uint64:
		return int64(val), true
	default:
		return 0, false
	}
}

// GetBool extracts a bool payload value by key.
func GetBool(m map[int]interface{}, key int) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
