// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ippc/internal/reactor"
	"code.hybscloud.com/ippc/internal/usock"
)

// ErrClosed is returned by Read/Write when issued against an already-closed
// connection.
var ErrClosed = errors.New("conn: already closed")

const readChunk = 64 * 1024

type readTask struct {
	need int
	cb   func([]byte)
}

type writeTask struct {
	buf []byte
	cb  func()
}

// Connection is a non-blocking reader/writer state machine. It owns no
// goroutine of its own: all work happens inside the
// reader/writer watcher callbacks the owning reactor.Loop invokes.
type Connection struct {
	sock   usock.Socket
	loop   *reactor.Loop
	logger *slog.Logger

	onClose func(*Connection)
	closing bool

	// preClose lets a wrapper type (Overwatch) hook into Close before the
	// base teardown runs, since Go has no virtual method dispatch to
	// override Close directly. Set once by NewOverwatch; nil otherwise.
	preClose func(*Connection)

	readBuf   []byte
	readQueue []readTask
	reader    *reactor.Watcher

	writeQueue []writeTask
	writer     *reactor.Watcher

	scratch [readChunk]byte
}

// New wraps sock for use on loop. onClose, if non-nil, is invoked exactly
// once when the connection closes, unless Close was called with
// notify=false.
func New(sock usock.Socket, loop *reactor.Loop, logger *slog.Logger, onClose func(*Connection)) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{sock: sock, loop: loop, logger: logger, onClose: onClose}
	c.writer = loop.IO(sock.Fd(), reactor.Write, c.onWritable)
	c.reader = loop.IO(sock.Fd(), reactor.Read, c.onReadable)
	c.reader.Start()
	c.logger.Debug("connection ready")
	return c
}

// Closed reports whether the underlying socket has been closed.
func (c *Connection) Closed() bool { return c.sock.Closed() }

// Socket exposes the underlying socket, for callers (Overwatch) that must
// register an additional watcher against the same fd.
func (c *Connection) Socket() usock.Socket { return c.sock }

func (c *Connection) run(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			c.onError(fmt.Sprintf("error in callback: %v", r), slog.LevelError, true)
		}
	}()
	cb()
}

func (c *Connection) onError(message string, level slog.Level, closeAfter bool) {
	suffix := ""
	if !c.closing {
		suffix = " -> closing"
	}
	c.logger.Log(context.Background(), level, message+suffix)
	if closeAfter {
		c.Close(true)
	}
}

// Read enqueues a request for n bytes. If the queue is empty and readBuf
// already holds n bytes, cb runs synchronously before Read returns.
func (c *Connection) Read(n int, cb func([]byte)) error {
	if n == 0 {
		return nil
	}
	if len(c.readQueue) == 0 && c.consume(n, cb) {
		return nil
	}
	if c.Closed() {
		return ErrClosed
	}
	c.readQueue = append(c.readQueue, readTask{need: n, cb: cb})
	return nil
}

func (c *Connection) consume(n int, cb func([]byte)) bool {
	if len(c.readBuf) < n {
		return false
	}
	buf := make([]byte, n)
	copy(buf, c.readBuf[:n])
	rest := make([]byte, len(c.readBuf)-n)
	copy(rest, c.readBuf[n:])
	c.readBuf = rest
	c.run(func() { cb(buf) })
	return true
}

func (c *Connection) onReadable(reactor.EventMask) {
	n, peerClosed, err := c.sock.Read(c.scratch[:])
	if err != nil {
		if err == iox.ErrWouldBlock {
			return
		}
		c.onError("error while reading data: "+err.Error(), slog.LevelError, true)
		return
	}
	if n > 0 {
		c.readBuf = append(c.readBuf, c.scratch[:n]...)
	}
	for len(c.readQueue) > 0 {
		t := c.readQueue[0]
		if len(c.readBuf) < t.need {
			break
		}
		c.readQueue = c.readQueue[1:]
		buf := make([]byte, t.need)
		copy(buf, c.readBuf[:t.need])
		rest := make([]byte, len(c.readBuf)-t.need)
		copy(rest, c.readBuf[t.need:])
		c.readBuf = rest
		c.run(func() { t.cb(buf) })
		if c.Closed() {
			return
		}
	}
	if peerClosed {
		c.onError("closed by peer", slog.LevelDebug, true)
	}
}

// Write enqueues buf. If the writer watcher is idle it is started. cb, if
// non-nil, runs once buf has been fully written.
func (c *Connection) Write(buf []byte, cb func()) error {
	if len(buf) == 0 {
		return nil
	}
	if c.Closed() {
		return ErrClosed
	}
	c.writeQueue = append(c.writeQueue, writeTask{buf: buf, cb: cb})
	if !c.writer.Active() {
		c.writer.Start()
	}
	return nil
}

func (c *Connection) onWritable(reactor.EventMask) {
	for len(c.writeQueue) > 0 {
		t := &c.writeQueue[0]
		n, err := c.sock.Write(t.buf)
		if n > 0 {
			t.buf = t.buf[n:]
		}
		if err != nil {
			if err == iox.ErrWouldBlock {
				return
			}
			c.onError("error while writing data: "+err.Error(), slog.LevelError, true)
			return
		}
		if len(t.buf) != 0 {
			// Partial write; socket reported no error but accepted fewer
			// bytes than offered. Wait for the next readiness tick.
			return
		}
		cb := t.cb
		c.writeQueue = c.writeQueue[1:]
		if len(c.writeQueue) == 0 {
			c.writer.Stop()
		}
		if cb != nil {
			c.run(cb)
		}
		if c.Closed() {
			return
		}
	}
}

// Close is idempotent. When notify is false, onClose is not invoked — used
// by a server tearing down its peer collection, which does not want a
// peer's own de-registration callback firing mid-teardown.
func (c *Connection) Close(notify bool) {
	if c.Closed() || c.closing {
		return
	}
	c.closing = true
	c.logger.Debug("connection closing...")
	if c.preClose != nil {
		c.preClose(c)
	}
	c.reader.Stop()
	c.readQueue = nil
	c.readBuf = nil
	c.writer.Stop()
	c.writeQueue = nil
	_ = c.sock.Close()
	onClose := c.onClose
	c.onClose, c.reader, c.writer = nil, nil, nil
	if onClose != nil && notify {
		c.run(func() { onClose(c) })
	}
	c.logger.Debug("connection closed")
	c.closing = false
}
