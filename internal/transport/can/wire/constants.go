// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wire implements the framing, CRC, and CBOR payload encoding for
// the serial CAN gateway protocol used to reach the four wheel motor
// controllers. It is modeled directly on the Fusain serial protocol: a
// start/end-framed, byte-stuffed, CRC-16-CCITT-checked envelope around a
// CBOR-encoded [msg_type, payload_map] pair.
package wire

// Protocol framing bytes.
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits.
const (
	MaxPacketSize  = 64
	MaxPayloadSize = 48
)

// CRC-16-CCITT configuration.
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// ControllerID addresses one of the four wheel motor controllers, or the
// broadcast address for commands sent to all four at once.
type ControllerID uint8

const (
	ControllerFrontLeft  ControllerID = 0
	ControllerFrontRight ControllerID = 1
	ControllerBackLeft   ControllerID = 2
	ControllerBackRight  ControllerID = 3
	ControllerBroadcast  ControllerID = 0xFF
)

// Message types - configuration commands (gateway -> controller) 0x10-0x1F.
const (
	MsgRegister  = 0x10
	MsgConfigure = 0x11
	MsgPrepare   = 0x12
)

// Message types - control commands (gateway -> controller) 0x20-0x2F.
const (
	MsgTargetVelocity  = 0x20
	MsgTargetTorque    = 0x21
	MsgQuickStop       = 0x22
	MsgPreOperational  = 0x23
	MsgHealthCheckReq  = 0x24
	MsgActualVelReq    = 0x25
	MsgActualTorqueReq = 0x26
)

// Message types - responses (controller -> gateway) 0x30-0x3F.
const (
	MsgAck              = 0x30
	MsgNack             = 0x31
	MsgHealthCheckResp  = 0x32
	MsgActualVelResp    = 0x33
	MsgActualTorqueResp = 0x34
)

// Payload map keys, shared across message types that carry a single value.
const (
	KeyValue = 0
	KeyFault = 1
)
