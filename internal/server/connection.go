package server

import (
	"bytes"
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/petra/petracache/internal/protocol"
)

// minGrowth is the headroom added when a connection's buffer must grow
// past its configured size (e.g. a SET whose data block is larger than
// the configured read buffer).
const minGrowth = 4096

// connection owns one client's read buffer, pending-SET state, and
// response builder. It is not safe for concurrent use; each connection
// runs on its own goroutine for its entire lifetime.
type connection struct {
	server *Server
	conn   net.Conn

	buf     []byte // unconsumed bytes, buf[:len] valid
	pending *protocol.PendingSet
	resp    *protocol.ResponseWriter

	lastActivityUnixNano atomic.Int64
}

func newConnection(s *Server, c net.Conn) *connection {
	conn := &connection{
		server: s,
		conn:   c,
		buf:    make([]byte, 0, s.cfg.ReadBufferSize),
		resp:   protocol.NewResponseWriter(),
	}
	conn.touch()
	return conn
}

func (c *connection) touch() {
	c.lastActivityUnixNano.Store(time.Now().UnixNano())
}

func (c *connection) lastActivity() time.Time {
	return time.Unix(0, c.lastActivityUnixNano.Load())
}

// run drives the connection's read/parse/dispatch/write loop until the
// client disconnects, a QUIT is processed, ctx is cancelled, or an I/O
// error occurs.
func (c *connection) run(ctx context.Context) error {
	defer c.conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.Close()
		case <-done:
		}
	}()

	readChunk := make([]byte, c.server.cfg.ReadBufferSize)

	for {
		n, err := c.conn.Read(readChunk)
		if n > 0 {
			c.touch()
			c.buf = append(c.buf, readChunk[:n]...)
			c.server.metrics.BytesRead.Add(float64(n))

			quit, writeErr := c.processBuffer()
			if writeErr != nil {
				return writeErr
			}
			if quit {
				return nil
			}
		}
		if err != nil {
			return nil
		}
	}
}

// processBuffer parses and executes every complete command currently
// buffered, writing each response before moving to the next. It reports
// whether a QUIT was processed.
func (c *connection) processBuffer() (quit bool, err error) {
	for {
		var result protocol.ParseResult

		if c.pending != nil {
			result = protocol.ParseStorageData(c.buf, c.pending)
		} else {
			result = protocol.Parse(c.buf)
		}

		switch result.Kind {
		case protocol.ResultComplete:
			c.pending = nil

			cmd := result.Command
			isQuit := cmd.Kind == protocol.KindQuit
			noReply := cmd.IsNoReply()

			execute(c.server, cmd, c.resp)

			c.buf = c.buf[:copy(c.buf, c.buf[result.Consumed:])]

			if !noReply && c.resp.Len() > 0 {
				if err := c.flush(); err != nil {
					return false, err
				}
			}
			c.resp.Reset()

			if isQuit {
				return true, nil
			}

		case protocol.ResultNeedMore:
			if c.pending == nil {
				if pending, err := protocol.ParseStorageHeader(c.buf); err == nil && pending != nil {
					c.pending = pending
				}
			}
			c.growIfNeeded()
			return false, nil

		case protocol.ResultError:
			c.server.metrics.ProtocolErrors.Inc()
			c.resp.WriteClientError(result.Err.Error())

			if pos := findCRLF(c.buf); pos >= 0 {
				c.buf = c.buf[:copy(c.buf, c.buf[pos+2:])]
			} else {
				c.buf = c.buf[:0]
			}
			c.pending = nil

			if err := c.flush(); err != nil {
				return false, err
			}
			c.resp.Reset()
		}
	}
}

// growIfNeeded extends buf's capacity to hold a pending SET's full
// declared length in one allocation, so the rest of a large value is
// appended without repeated reallocation.
func (c *connection) growIfNeeded() {
	if c.pending == nil {
		return
	}
	needed := c.pending.HeaderLineEnd + 2 + c.pending.ByteCount + 2
	if needed <= cap(c.buf) {
		return
	}
	grown := make([]byte, len(c.buf), needed+minGrowth)
	copy(grown, c.buf)
	c.buf = grown
}

func (c *connection) flush() error {
	data := c.resp.Bytes()
	if len(data) == 0 {
		return nil
	}
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	c.server.metrics.BytesWritten.Add(float64(len(data)))
	return nil
}

func findCRLF(buf []byte) int {
	return bytes.Index(buf, []byte("\r\n"))
}
