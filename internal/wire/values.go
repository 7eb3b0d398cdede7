package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Numeric fields on the wire are fixed little-endian; floats are single or
// double precision IEEE-754 depending on field.

// PutBool appends a single 0/1 byte.
func PutBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// GetBool reads the leading byte of buf as a boolean.
func GetBool(buf []byte) (bool, []byte, error) {
	if len(buf) < 1 {
		return false, buf, fmt.Errorf("wire: short buffer for bool")
	}
	return buf[0] != 0, buf[1:], nil
}

// PutUint32 appends a little-endian u32.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// GetUint32 reads a little-endian u32 from the front of buf.
func GetUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, buf, fmt.Errorf("wire: short buffer for u32")
	}
	return binary.LittleEndian.Uint32(buf[:4]), buf[4:], nil
}

// PutFloat32 appends a little-endian IEEE-754 single-precision float.
func PutFloat32(buf []byte, v float32) []byte {
	return PutUint32(buf, math.Float32bits(v))
}

// GetFloat32 reads a little-endian float32 from the front of buf.
func GetFloat32(buf []byte) (float32, []byte, error) {
	bits, rest, err := GetUint32(buf)
	if err != nil {
		return 0, buf, err
	}
	return math.Float32frombits(bits), rest, nil
}

// PutFloat64 appends a little-endian IEEE-754 double-precision float.
func PutFloat64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

// GetFloat64 reads a little-endian float64 from the front of buf.
func GetFloat64(buf []byte) (float64, []byte, error) {
	if len(buf) < 8 {
		return 0, buf, fmt.Errorf("wire: short buffer for f64")
	}
	bits := binary.LittleEndian.Uint64(buf[:8])
	return math.Float64frombits(bits), buf[8:], nil
}

// PutInt16 appends a little-endian signed 16-bit sample value.
func PutInt16(buf []byte, v int16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], uint16(v))
	return append(buf, tmp[:]...)
}

// GetInt16 reads a little-endian int16 from the front of buf.
func GetInt16(buf []byte) (int16, []byte, error) {
	if len(buf) < 2 {
		return 0, buf, fmt.Errorf("wire: short buffer for i16")
	}
	return int16(binary.LittleEndian.Uint16(buf[:2])), buf[2:], nil
}
