// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package wasm

// =============================================================================
// LEB128 encoding/decoding
// =============================================================================

// decodeULEB128 reads an unsigned LEB128 value of at most 32 bits.
// Returns the value and the number of bytes consumed; a zero byte count
// means the input was truncated or overlong.
func decodeULEB128(data []byte) (uint32, int) {
	var result uint32
	var shift uint
	for i := 0; i < len(data) && i < 5; i++ {
		b := data[i]
		result |= uint32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			return result, i + 1
		}
	}
	return 0, 0
}

// decodeSLEB128 reads a signed LEB128 value of at most 33 bits (the widest
// one-word form the binary format uses, for block type indices).
func decodeSLEB128(data []byte) (int32, int) {
	var result int64
	var shift uint
	for i := 0; i < len(data) && i < 5; i++ {
		b := data[i]
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -(1 << shift)
			}
			return int32(result), i + 1
		}
	}
	return 0, 0
}

func decodeSLEB128_64(data []byte) (int64, int) {
	var result int64
	var shift uint
	for i := 0; i < len(data) && i < 10; i++ {
		b := data[i]
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -(1 << shift)
			}
			return result, i + 1
		}
	}
	return 0, 0
}

func encodeULEB128(v uint32) []byte {
	if v == 0 {
		return []byte{0x00}
	}
	var buf []byte
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

func encodeSLEB128(v int32) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			buf = append(buf, b)
			break
		}
		buf = append(buf, b|0x80)
	}
	return buf
}

func encodeSLEB128_64(v int64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			buf = append(buf, b)
			break
		}
		buf = append(buf, b|0x80)
	}
	return buf
}
