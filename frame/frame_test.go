package frame

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	buf, err := Encode("x", 42.0)
	require.NoError(t, err)

	// 42.0 = 0x4045000000000000
	assert.Equal(t, []byte{0x01, 'x', 0x40, 0x45, 0, 0, 0, 0, 0, 0}, buf)
	assert.Len(t, buf, Size("x"))
}

func TestRoundTripBitExact(t *testing.T) {
	values := []float64{
		0,
		math.Copysign(0, -1),
		1,
		-1,
		42.5,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		math.Inf(1),
		math.Inf(-1),
		math.NaN(),
		math.Float64frombits(0x7ff8000000000001), // NaN with payload
		math.Float64frombits(0xfff0000000000abc), // negative signalling NaN
	}
	names := []string{"", "x", "note", "ünïcødé", strings.Repeat("n", 255)}

	for _, name := range names {
		for _, value := range values {
			buf, err := Encode(name, value)
			require.NoError(t, err)

			msg, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, name, msg.Name)
			assert.Equal(t, math.Float64bits(value), math.Float64bits(msg.Value), "value bits for %q", name)
		}
	}
}

func TestEncodeNameBoundary(t *testing.T) {
	_, err := Encode(strings.Repeat("a", 256), 1)
	assert.ErrorIs(t, err, ErrNameTooLong)

	name := strings.Repeat("a", 255)
	buf := make([]byte, MaxSize)
	n, err := EncodeTo(buf, name, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxSize, n)

	_, err = EncodeTo(make([]byte, 1000), strings.Repeat("a", 256), 1)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestEncodeToBufferTooSmall(t *testing.T) {
	name := "velocity"
	need := Size(name)

	_, err := EncodeTo(make([]byte, need-1), name, 3)
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	n, err := EncodeTo(make([]byte, need), name, 3)
	require.NoError(t, err)
	assert.Equal(t, need, n)
}

func TestDecodeTruncated(t *testing.T) {
	buf, err := Encode("gate", 1)
	require.NoError(t, err)

	for i := 0; i < len(buf); i++ {
		_, err := Decode(buf[:i])
		assert.ErrorIs(t, err, ErrTruncated, "prefix length %d", i)
	}

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	buf, err := Encode("x", 7)
	require.NoError(t, err)

	msg, err := Decode(append(buf, 0xde, 0xad))
	require.NoError(t, err)
	assert.Equal(t, "x", msg.Name)
	assert.Equal(t, 7.0, msg.Value)
}
