package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	r := Parse([]byte("version\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, KindVersion, r.Command.Kind)
	assert.Equal(t, len("version\r\n"), r.Consumed)
}

func TestParseQuit(t *testing.T) {
	r := Parse([]byte("quit\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, KindQuit, r.Command.Kind)
}

func TestParseCaseInsensitiveCommandName(t *testing.T) {
	r := Parse([]byte("VERSION\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, KindVersion, r.Command.Kind)

	r = Parse([]byte("GeT foo\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, KindGet, r.Command.Kind)
}

func TestParseNeedMoreNoCRLF(t *testing.T) {
	r := Parse([]byte("version"))
	assert.Equal(t, ResultNeedMore, r.Kind)

	r = Parse([]byte("get foo\r"))
	assert.Equal(t, ResultNeedMore, r.Kind)
}

func TestParseGetSingleKey(t *testing.T) {
	r := Parse([]byte("get foo\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	require.Equal(t, KindGet, r.Command.Kind)
	require.Len(t, r.Command.Keys, 1)
	assert.Equal(t, "foo", string(r.Command.Keys[0]))
}

func TestParseGetMultiKey(t *testing.T) {
	r := Parse([]byte("get foo bar baz\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	require.Len(t, r.Command.Keys, 3)
	assert.Equal(t, []string{"foo", "bar", "baz"}, []string{
		string(r.Command.Keys[0]), string(r.Command.Keys[1]), string(r.Command.Keys[2]),
	})
}

func TestParseGetNoKeys(t *testing.T) {
	r := Parse([]byte("get\r\n"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidCommand)
}

func TestParseGetKeyTooLong(t *testing.T) {
	longKey := make([]byte, MaxKeyLength+1)
	for i := range longKey {
		longKey[i] = 'a'
	}
	r := Parse(append(append([]byte("get "), longKey...), "\r\n"...))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrKeyTooLong)
}

func TestParseGetInvalidKeyBytes(t *testing.T) {
	r := Parse([]byte("get foo\x01bar\r\n"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidKey)
}

func TestParseSetComplete(t *testing.T) {
	buf := []byte("set foo 0 0 3\r\nbar\r\n")
	r := Parse(buf)
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, KindSet, r.Command.Kind)
	assert.Equal(t, "foo", string(r.Command.Key))
	assert.Equal(t, uint32(0), r.Command.Flags)
	assert.Equal(t, uint64(0), r.Command.Exptime)
	assert.Equal(t, "bar", string(r.Command.Data))
	assert.False(t, r.Command.NoReply)
	assert.Equal(t, len(buf), r.Consumed)
}

func TestParseSetWithFlagsAndExptime(t *testing.T) {
	buf := []byte("set foo 42 100 5\r\nhello\r\n")
	r := Parse(buf)
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, uint32(42), r.Command.Flags)
	assert.Equal(t, uint64(100), r.Command.Exptime)
	assert.Equal(t, "hello", string(r.Command.Data))
}

func TestParseSetNoReply(t *testing.T) {
	buf := []byte("set foo 0 0 3 noreply\r\nbar\r\n")
	r := Parse(buf)
	require.Equal(t, ResultComplete, r.Kind)
	assert.True(t, r.Command.NoReply)
}

func TestParseSetNeedMoreHeaderOnly(t *testing.T) {
	r := Parse([]byte("set foo 0 0 3\r\n"))
	assert.Equal(t, ResultNeedMore, r.Kind)
}

func TestParseSetNeedMorePartialBody(t *testing.T) {
	r := Parse([]byte("set foo 0 0 5\r\nbar"))
	assert.Equal(t, ResultNeedMore, r.Kind)
}

func TestParseSetBadTrailer(t *testing.T) {
	r := Parse([]byte("set foo 0 0 3\r\nbarXX"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrUnexpectedData)
}

func TestParseSetInvalidFlags(t *testing.T) {
	r := Parse([]byte("set foo bogus 0 3\r\nbar\r\n"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidFlags)
}

func TestParseSetInvalidExptime(t *testing.T) {
	r := Parse([]byte("set foo 0 bogus 3\r\nbar\r\n"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidExptime)
}

func TestParseSetInvalidBytesLen(t *testing.T) {
	r := Parse([]byte("set foo 0 0 bogus\r\nbar\r\n"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidBytesLen)
}

func TestParseSetZeroLengthValue(t *testing.T) {
	r := Parse([]byte("set foo 0 0 0\r\n\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, 0, len(r.Command.Data))
}

func TestParseSetDataMayContainCRLF(t *testing.T) {
	buf := []byte("set foo 0 0 6\r\na\r\nb\r\n\r\n")
	r := Parse(buf)
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, "a\r\nb\r\n", string(r.Command.Data))
}

func TestParseDeleteBasic(t *testing.T) {
	r := Parse([]byte("delete foo\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, KindDelete, r.Command.Kind)
	assert.Equal(t, "foo", string(r.Command.Key))
	assert.False(t, r.Command.NoReply)
}

func TestParseDeleteNoReply(t *testing.T) {
	r := Parse([]byte("delete foo noreply\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.True(t, r.Command.NoReply)
}

func TestParseDeleteLegacyExptimeToken(t *testing.T) {
	r := Parse([]byte("delete foo 0\r\n"))
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, "foo", string(r.Command.Key))
}

func TestParseDeleteMissingKey(t *testing.T) {
	r := Parse([]byte("delete\r\n"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidCommand)
}

func TestParseUnknownCommand(t *testing.T) {
	r := Parse([]byte("bogus foo\r\n"))
	assert.Equal(t, ResultError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidCommand)
}

func TestParseStorageHeaderSplitAcrossReads(t *testing.T) {
	header := []byte("set foo 7 0 5\r\n")

	pending, err := ParseStorageHeader(header)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "foo", string(pending.Key))
	assert.Equal(t, uint32(7), pending.Flags)
	assert.Equal(t, 5, pending.ByteCount)

	r := ParseStorageData(header, pending)
	assert.Equal(t, ResultNeedMore, r.Kind)

	full := append(append([]byte{}, header...), "hello\r\n"...)
	r = ParseStorageData(full, pending)
	require.Equal(t, ResultComplete, r.Kind)
	assert.Equal(t, "hello", string(r.Command.Data))
	assert.Equal(t, len(full), r.Consumed)
}

func TestParseStorageHeaderNotSet(t *testing.T) {
	pending, err := ParseStorageHeader([]byte("get foo\r\n"))
	assert.NoError(t, err)
	assert.Nil(t, pending)
}

func TestParseStorageHeaderIncomplete(t *testing.T) {
	pending, err := ParseStorageHeader([]byte("set foo 0 0 5"))
	assert.NoError(t, err)
	assert.Nil(t, pending)
}

func TestCalculateExpireAt(t *testing.T) {
	assert.Equal(t, uint64(0), CalculateExpireAt(0, 1000))
	assert.Equal(t, uint64(1100), CalculateExpireAt(100, 1000))
	assert.Equal(t, uint64(2_592_000), CalculateExpireAt(2_592_000, 0))
	assert.Equal(t, uint64(5_000_000), CalculateExpireAt(5_000_000, 1000))
}

func TestIsValidKey(t *testing.T) {
	assert.True(t, IsValidKey([]byte("a")))
	assert.False(t, IsValidKey([]byte("")))
	assert.False(t, IsValidKey([]byte("has space")))
	tooLong := make([]byte, MaxKeyLength+1)
	maxLen := make([]byte, MaxKeyLength)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	for i := range maxLen {
		maxLen[i] = 'a'
	}
	assert.False(t, IsValidKey(tooLong))
	assert.True(t, IsValidKey(maxLen))
}
