// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import "fmt"

// Encode produces the wire-format bytes for p: framing, byte stuffing,
// and CRC, wrapped around the CBOR-encoded payload.
func Encode(p *Packet) ([]byte, error) {
	cborPayload, err := encodeCBORPayload(p.MsgType, p.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode cbor payload: %w", err)
	}
	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(cborPayload), MaxPayloadSize)
	}

	data := make([]byte, 0, 1+1+len(cborPayload))
	data = append(data, uint8(len(cborPayload)))
	data = append(data, byte(p.Controller))
	data = append(data, cborPayload...)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	out := make([]byte, 0, len(stuffed)+2)
	out = append(out, StartByte)
	out = append(out, stuffed...)
	out = append(out, EndByte)
	return out, nil
}

// stuffBytes escapes framing bytes that appear in the payload.
func stuffBytes(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			out = append(out, EscByte, b^EscXor)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// unstuffBytes is the inverse of stuffBytes.
func unstuffBytes(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	escapeNext := false
	for _, b := range data {
		if escapeNext {
			out = append(out, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			out = append(out, b)
		}
	}
	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}
	return out, nil
}
