// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

// Command builder functions create Packet structs ready for encoding.
// These are convenience wrappers around NewPacket that ensure correct
// payload key usage per the gateway protocol.

func NewRegisterCommand(controller ControllerID) *Packet {
	return NewPacket(controller, MsgRegister, nil)
}

func NewConfigureCommand(controller ControllerID) *Packet {
	return NewPacket(controller, MsgConfigure, nil)
}

func NewPrepareCommand(controller ControllerID) *Packet {
	return NewPacket(controller, MsgPrepare, nil)
}

func NewHealthCheckRequest(controller ControllerID) *Packet {
	return NewPacket(controller, MsgHealthCheckReq, nil)
}

func NewTargetVelocityCommand(controller ControllerID, rpm int32) *Packet {
	return NewPacket(controller, MsgTargetVelocity, map[int]interface{}{KeyValue: int64(rpm)})
}

func NewTargetTorqueCommand(controller ControllerID, torque int16) *Packet {
	return NewPacket(controller, MsgTargetTorque, map[int]interface{}{KeyValue: int64(torque)})
}

func NewActualVelocityRequest(controller ControllerID) *Packet {
	return NewPacket(controller, MsgActualVelReq, nil)
}

func NewActualTorqueRequest(controller ControllerID) *Packet {
	return NewPacket(controller, MsgActualTorqueReq, nil)
}

func NewQuickStopCommand(controller ControllerID) *Packet {
	return NewPacket(controller, MsgQuickStop, nil)
}

func NewPreOperationalCommand(controller ControllerID) *Packet {
	return NewPacket(controller, MsgPreOperational, nil)
}
