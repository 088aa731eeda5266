package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseWriterGetHit(t *testing.T) {
	w := NewResponseWriter()
	w.WriteValue([]byte("foo"), 7, []byte("bar"))
	w.WriteEnd()
	assert.Equal(t, "VALUE foo 7 3\r\nbar\r\nEND\r\n", string(w.Bytes()))
}

func TestResponseWriterGetMultiValueThenEnd(t *testing.T) {
	w := NewResponseWriter()
	w.WriteValue([]byte("a"), 0, []byte("1"))
	w.WriteValue([]byte("b"), 0, []byte("22"))
	w.WriteEnd()
	assert.Equal(t, "VALUE a 0 1\r\n1\r\nVALUE b 0 2\r\n22\r\nEND\r\n", string(w.Bytes()))
}

func TestResponseWriterGetMiss(t *testing.T) {
	w := NewResponseWriter()
	w.WriteEnd()
	assert.Equal(t, "END\r\n", string(w.Bytes()))
}

func TestResponseWriterStored(t *testing.T) {
	w := NewResponseWriter()
	w.WriteStored()
	assert.Equal(t, "STORED\r\n", string(w.Bytes()))
}

func TestResponseWriterDeletedAndNotFound(t *testing.T) {
	w := NewResponseWriter()
	w.WriteDeleted()
	assert.Equal(t, "DELETED\r\n", string(w.Bytes()))

	w.Reset()
	w.WriteNotFound()
	assert.Equal(t, "NOT_FOUND\r\n", string(w.Bytes()))
}

func TestResponseWriterVersion(t *testing.T) {
	w := NewResponseWriter()
	w.WriteVersion()
	assert.Equal(t, "VERSION "+VersionString+"\r\n", string(w.Bytes()))
}

func TestResponseWriterErrors(t *testing.T) {
	w := NewResponseWriter()
	w.WriteClientError("bad command line format")
	assert.Equal(t, "CLIENT_ERROR bad command line format\r\n", string(w.Bytes()))

	w.Reset()
	w.WriteServerError("storage engine unavailable")
	assert.Equal(t, "SERVER_ERROR storage engine unavailable\r\n", string(w.Bytes()))
}

func TestResponseWriterResetReusesBuffer(t *testing.T) {
	w := NewResponseWriter()
	w.WriteStored()
	assert.Positive(t, w.Len())
	w.Reset()
	assert.Equal(t, 0, w.Len())
}
