// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package snapshot

import (
	"encoding/binary"
	"fmt"
)

// Position-delta encoding markers, spec.md §4.7: 1/3/5 bytes per component
// depending on magnitude.
const (
	marker16 = 0x7F // next 2 bytes hold a signed int16 delta
	marker32 = 0x80 // next 4 bytes hold a signed int32 delta
	reserved = 0x81 // reserved for a future wider form
)

// smallMin/smallMax bound the single-byte signed range, reserving the
// marker bytes above it.
const (
	smallMin = -126
	smallMax = 126
)

// EncodeDelta appends a variable-length encoding of delta to buf: one byte
// if it fits outside the reserved marker range, three bytes (marker16 +
// int16) if it fits an int16, otherwise five bytes (marker32 + int32).
func EncodeDelta(buf []byte, delta int32) []byte {
	if delta >= smallMin && delta <= smallMax {
		return append(buf, byte(int8(delta)))
	}
	if delta >= -32768 && delta <= 32767 {
		buf = append(buf, marker16)
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(int16(delta)))
		return append(buf, tmp[:]...)
	}
	buf = append(buf, marker32)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(delta))
	return append(buf, tmp[:]...)
}

// DecodeDelta reads one variable-length delta from buf, returning the value
// and the number of bytes consumed.
func DecodeDelta(buf []byte) (int32, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("snapshot: empty delta buffer")
	}
	switch buf[0] {
	case marker16:
		if len(buf) < 3 {
			return 0, 0, fmt.Errorf("snapshot: truncated int16 delta")
		}
		return int32(int16(binary.BigEndian.Uint16(buf[1:3]))), 3, nil
	case marker32:
		if len(buf) < 5 {
			return 0, 0, fmt.Errorf("snapshot: truncated int32 delta")
		}
		return int32(binary.BigEndian.Uint32(buf[1:5])), 5, nil
	case reserved:
		return 0, 0, fmt.Errorf("snapshot: reserved delta marker encountered")
	default:
		return int32(int8(buf[0])), 1, nil
	}
}
