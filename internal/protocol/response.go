package protocol

import (
	"bytes"
	"strconv"
)

// VersionString is returned verbatim by the VERSION command.
const VersionString = "petracache 1.0.0"

var (
	crlf       = []byte("\r\n")
	endLine    = []byte("END\r\n")
	storedLine = []byte("STORED\r\n")
	deletedLn  = []byte("DELETED\r\n")
	notFoundLn = []byte("NOT_FOUND\r\n")
)

// ResponseWriter accumulates one or more ASCII response lines for a
// connection. It is append-only: callers reuse the same writer across
// commands via Reset to avoid per-command allocation.
type ResponseWriter struct {
	buf bytes.Buffer
}

// NewResponseWriter returns a writer with a preallocated buffer sized for
// a typical single-key GET response.
func NewResponseWriter() *ResponseWriter {
	w := &ResponseWriter{}
	w.buf.Grow(256)
	return w
}

// Reset clears the writer for reuse.
func (w *ResponseWriter) Reset() {
	w.buf.Reset()
}

// Bytes returns the accumulated response bytes. The slice is only valid
// until the next call to Reset.
func (w *ResponseWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// Len reports the number of bytes currently buffered.
func (w *ResponseWriter) Len() int {
	return w.buf.Len()
}

// WriteValue appends a single "VALUE <key> <flags> <bytes>\r\n<data>\r\n"
// block, as emitted once per matching key before the terminating End.
func (w *ResponseWriter) WriteValue(key []byte, flags uint32, data []byte) {
	w.buf.WriteString("VALUE ")
	w.buf.Write(key)
	w.buf.WriteByte(' ')
	var num [20]byte
	w.buf.Write(strconv.AppendUint(num[:0], uint64(flags), 10))
	w.buf.WriteByte(' ')
	w.buf.Write(strconv.AppendInt(num[:0], int64(len(data)), 10))
	w.buf.Write(crlf)
	w.buf.Write(data)
	w.buf.Write(crlf)
}

// WriteEnd appends the terminating "END\r\n" line of a GET response.
func (w *ResponseWriter) WriteEnd() {
	w.buf.Write(endLine)
}

// WriteStored appends "STORED\r\n", the SET success reply.
func (w *ResponseWriter) WriteStored() {
	w.buf.Write(storedLine)
}

// WriteDeleted appends "DELETED\r\n", the DELETE success reply.
func (w *ResponseWriter) WriteDeleted() {
	w.buf.Write(deletedLn)
}

// WriteNotFound appends "NOT_FOUND\r\n", the DELETE miss reply.
func (w *ResponseWriter) WriteNotFound() {
	w.buf.Write(notFoundLn)
}

// WriteVersion appends "VERSION <string>\r\n".
func (w *ResponseWriter) WriteVersion() {
	w.buf.WriteString("VERSION ")
	w.buf.WriteString(VersionString)
	w.buf.Write(crlf)
}

// WriteClientError appends "CLIENT_ERROR <msg>\r\n", used when the client
// sent a malformed command.
func (w *ResponseWriter) WriteClientError(msg string) {
	w.buf.WriteString("CLIENT_ERROR ")
	w.buf.WriteString(msg)
	w.buf.Write(crlf)
}

// WriteServerError appends "SERVER_ERROR <msg>\r\n", used when the
// storage engine fails a request that was otherwise well-formed.
func (w *ResponseWriter) WriteServerError(msg string) {
	w.buf.WriteString("SERVER_ERROR ")
	w.buf.WriteString(msg)
	w.buf.Write(crlf)
}
