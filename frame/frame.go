// Package frame implements the binary value frame exchanged with the bus.
//
// Wire format:
//
//	┌─────────────┬──────────────────┬───────────────────────────────┐
//	│ Name Length │ Name             │ Value                         │
//	│ (1 byte)    │ (0-255 bytes)    │ (8 bytes, IEEE-754, big-end.) │
//	└─────────────┴──────────────────┴───────────────────────────────┘
package frame

import (
	"encoding/binary"
	"errors"
	"math"

	m "github.com/Meander-Cloud/go-neuron/message"
)

const (
	// HeaderSize is the name length prefix.
	HeaderSize = 1

	// ValueSize is the encoded float64.
	ValueSize = 8

	// MinSize is a frame carrying an empty name.
	MinSize = HeaderSize + ValueSize

	// MaxSize is a frame carrying a name of MaxNameLen bytes.
	MaxSize = HeaderSize + m.MaxNameLen + ValueSize
)

var (
	ErrNameTooLong    = errors.New("frame: name longer than 255 bytes")
	ErrBufferTooSmall = errors.New("frame: buffer too small")
	ErrTruncated      = errors.New("frame: truncated")
)

// Size returns the encoded length for name, ignoring the length limit.
func Size(name string) int {
	return HeaderSize + len(name) + ValueSize
}

// EncodeTo writes the frame into dst and returns the number of bytes written.
func EncodeTo(dst []byte, name string, value float64) (int, error) {
	nameLen := len(name)
	if nameLen > m.MaxNameLen {
		return 0, ErrNameTooLong
	}

	total := HeaderSize + nameLen + ValueSize
	if len(dst) < total {
		return 0, ErrBufferTooSmall
	}

	dst[0] = byte(nameLen)
	copy(dst[HeaderSize:], name)
	binary.BigEndian.PutUint64(dst[HeaderSize+nameLen:total], math.Float64bits(value))

	return total, nil
}

// Encode allocates an exactly sized frame.
func Encode(name string, value float64) ([]byte, error) {
	if len(name) > m.MaxNameLen {
		return nil, ErrNameTooLong
	}

	buf := make([]byte, Size(name))
	n, err := EncodeTo(buf, name, value)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// Decode parses one frame. Bytes past the declared length are ignored,
// and every bit pattern is accepted for the value.
func Decode(data []byte) (m.Message, error) {
	if len(data) < MinSize {
		return m.Message{}, ErrTruncated
	}

	nameLen := int(data[0])
	total := HeaderSize + nameLen + ValueSize
	if len(data) < total {
		return m.Message{}, ErrTruncated
	}

	return m.Message{
		Name:  string(data[HeaderSize : HeaderSize+nameLen]),
		Value: math.Float64frombits(binary.BigEndian.Uint64(data[HeaderSize+nameLen : total])),
	}, nil
}
