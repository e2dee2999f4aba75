// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import "testing"

func TestCalculateCRC_Empty(t *testing.T) {
	if crc := CalculateCRC([]byte{}); crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestCalculateCRC_KnownValue(t *testing.T) {
	crc := CalculateCRC([]byte("123456789"))
	if crc != 0x29B1 {
		t.Errorf("expected standard CRC-16-CCITT check value 0x29B1, got 0x%04X", crc)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		packet  *Packet
	}{
		{"register, no payload", NewRegisterCommand(ControllerFrontLeft)},
		{"configure broadcast", NewConfigureCommand(ControllerBroadcast)},
		{"target velocity positive", NewTargetVelocityCommand(ControllerFrontRight, 1500)},
		{"target velocity negative", NewTargetVelocityCommand(ControllerBackLeft, -1500)},
		{"target torque", NewTargetTorqueCommand(ControllerBackRight, 250)},
		{"quick stop", NewQuickStopCommand(ControllerBroadcast)},
		{"pre-operational", NewPreOperationalCommand(ControllerBroadcast)},
		{"health check request", NewHealthCheckRequest(ControllerFrontLeft)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.packet)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			dec := NewDecoder()
			var got *Packet
			for _, b := range encoded {
				p, err := dec.DecodeByte(b)
				if err != nil {
					t.Fatalf("DecodeByte: %v", err)
				}
				if p != nil {
					got = p
				}
			}

			if got == nil {
				t.Fatal("decoder never produced a packet")
			}
			if got.Controller != tt.packet.Controller {
				t.Errorf("controller = %v, want %v", got.Controller, tt.packet.Controller)
			}
			if got.MsgType != tt.packet.MsgType {
				t.Errorf("msg type = 0x%02X, want 0x%02X", got.MsgType, tt.packet.MsgType)
			}
		})
	}
}

func TestDecoder_RejectsCorruptCRC(t *testing.T) {
	encoded, err := Encode(NewTargetVelocityCommand(ControllerFrontLeft, 42))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Flip a bit in the payload area, before the trailing CRC/END bytes.
	encoded[len(encoded)/2] ^= 0x01

	dec := NewDecoder()
	var lastErr error
	for _, b := range encoded {
		_, err := dec.DecodeByte(b)
		if err != nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		t.Fatal("expected a CRC mismatch error, got none")
	}
}

func TestDecoder_RecoversAfterGarbage(t *testing.T) {
	good, err := Encode(NewQuickStopCommand(ControllerBroadcast))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	stream := append([]byte{0x01, 0x02, 0x03}, good...)

	dec := NewDecoder()
	var got *Packet
	for _, b := range stream {
		p, _ := dec.DecodeByte(b)
		if p != nil {
			got = p
		}
	}
	if got == nil {
		t.Fatal("decoder should recover and decode the packet after leading garbage")
	}
	if got.MsgType != MsgQuickStop {
		t.Errorf("msg type = 0x%02X, want 0x%02X", got.MsgType, MsgQuickStop)
	}
}

func TestStuffUnstuff_RoundTrip(t *testing.T) {
	data := []byte{StartByte, EndByte, EscByte, 0x00, 0xFF, StartByte}
	stuffed := stuffBytes(data)
	unstuffed, err := unstuffBytes(stuffed)
	if err != nil {
		t.Fatalf("unstuffBytes: %v", err)
	}
	if string(unstuffed) != string(data) {
		t.Errorf("round trip mismatch: got %v, want %v", unstuffed, data)
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	huge := make(map[int]interface{}, MaxPayloadSize*2)
	for i := 0; i < MaxPayloadSize*2; i++ {
		huge[i] = int64(i)
	}
	_, err := Encode(NewPacket(ControllerFrontLeft, MsgTargetVelocity, huge))
	if err == nil {
		t.Fatal("expected an error for an oversized payload")
	}
}
