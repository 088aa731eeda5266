package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := StoredValue{ExpireAt: 1234567890, Flags: 42, Data: []byte("hello")}
	decoded, err := Decode(v.Encode())
	require.NoError(t, err)
	assert.Equal(t, v.ExpireAt, decoded.ExpireAt)
	assert.Equal(t, v.Flags, decoded.Flags)
	assert.Equal(t, v.Data, decoded.Data)
}

func TestEncodeDecodeEmptyData(t *testing.T) {
	v := StoredValue{ExpireAt: 0, Flags: 0, Data: nil}
	decoded, err := Decode(v.Encode())
	require.NoError(t, err)
	assert.Empty(t, decoded.Data)
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode([]byte{0, 1, 2})
	assert.ErrorIs(t, err, ErrValueTooShort)
}

func TestNeverExpire(t *testing.T) {
	v := NewStoredValue(0, 0, []byte("data"))
	assert.Equal(t, uint64(0), v.ExpireAt)
	assert.False(t, v.IsExpired(1_000_000_000))
}

func TestRelativeTTL(t *testing.T) {
	now := nowUnix()
	v := NewStoredValue(0, 60, []byte("data"))
	assert.GreaterOrEqual(t, v.ExpireAt, now+59)
	assert.LessOrEqual(t, v.ExpireAt, now+61)
}

func TestAbsoluteTimestamp(t *testing.T) {
	future := nowUnix() + 3_000_000
	v := NewStoredValue(0, future, []byte("data"))
	assert.Equal(t, future, v.ExpireAt)
}

func TestIsExpired(t *testing.T) {
	v := StoredValue{ExpireAt: 100}
	assert.True(t, v.IsExpired(100))
	assert.True(t, v.IsExpired(200))
	assert.False(t, v.IsExpired(50))
}

func TestCalculateExpireAtBoundary(t *testing.T) {
	assert.Equal(t, uint64(0), CalculateExpireAt(0, 1000))
	assert.Equal(t, uint64(1000+maxRelativeExptime), CalculateExpireAt(maxRelativeExptime, 1000))
	assert.Equal(t, uint64(maxRelativeExptime+1), CalculateExpireAt(maxRelativeExptime+1, 1000))
}
