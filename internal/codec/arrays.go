package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
)

// ArrayCodec serializes named numeric arrays for blob attachments.
type ArrayCodec interface {
	Encode(arrays map[string][]float64) ([]byte, error)
	Decode(data []byte) (map[string][]float64, error)
}

var arrayMagic = [4]byte{'E', 'X', 'A', '1'}

// ErrCorruptArrays is returned when a payload is not a BinaryArrays container.
var ErrCorruptArrays = errors.New("corrupt array container")

// BinaryArrays is a little-endian container of float64 arrays.
//
// Layout: magic "EXA1", uint32 array count, then per array (sorted by name)
// a uint16 name length, the name bytes, a uint32 element count and the
// elements as IEEE-754 float64.
type BinaryArrays struct{}

// Encode implements ArrayCodec.
func (BinaryArrays) Encode(arrays map[string][]float64) ([]byte, error) {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		if len(name) > math.MaxUint16 {
			return nil, fmt.Errorf("encode arrays: name too long (%d bytes)", len(name))
		}
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	buf.Write(arrayMagic[:])
	writeUint32(&buf, uint32(len(names)))
	for _, name := range names {
		values := arrays[name]
		var n [2]byte
		binary.LittleEndian.PutUint16(n[:], uint16(len(name)))
		buf.Write(n[:])
		buf.WriteString(name)
		writeUint32(&buf, uint32(len(values)))
		for _, v := range values {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
			buf.Write(b[:])
		}
	}
	return buf.Bytes(), nil
}

// Decode implements ArrayCodec.
func (BinaryArrays) Decode(data []byte) (map[string][]float64, error) {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != arrayMagic {
		return nil, ErrCorruptArrays
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArrays, err)
	}

	out := make(map[string][]float64, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("%w: array %d: %v", ErrCorruptArrays, i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("%w: array %d name: %v", ErrCorruptArrays, i, err)
		}
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: array %q: %v", ErrCorruptArrays, name, err)
		}
		if int64(n)*8 > int64(r.Len()) {
			return nil, fmt.Errorf("%w: array %q truncated", ErrCorruptArrays, name)
		}
		values := make([]float64, n)
		if n == 0 {
			out[string(name)] = values
			continue
		}
		if err := binary.Read(r, binary.LittleEndian, values); err != nil {
			return nil, fmt.Errorf("%w: array %q: %v", ErrCorruptArrays, name, err)
		}
		out[string(name)] = values
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptArrays, r.Len())
	}
	return out, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
