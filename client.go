// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc

import (
	"log/slog"

	"code.hybscloud.com/ippc/internal/conn"
	"code.hybscloud.com/ippc/internal/usock"
	"code.hybscloud.com/ippc/internal/wire"
)

// Client drives an Overwatch-wrapped connection and exposes Call as the
// single synchronous entry point every request goes through. Proxy/Attr
// layer dotted-name chaining on top of Call without adding a second call
// path.
type Client struct {
	bl   *baseLoop
	addr string

	codec     *wire.Codec
	readLimit int
	logger    *slog.Logger

	ow *conn.Overwatch

	// result/resultErr are the sentinel slots a blocked Call reads once
	// Unblock returns control; they exist because the inner loop's
	// callbacks and Call itself run on the same goroutine but at different
	// points in the call stack, not across goroutines, so no lock guards
	// them.
	result    any
	resultErr error
}

// NewClient constructs a Client bound to addr. Call Connect before issuing
// any Call.
func NewClient(addr string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	bl, err := newBaseLoop(o.logger, o.signals)
	if err != nil {
		return nil, err
	}
	c := &Client{
		bl:        bl,
		addr:      addr,
		codec:     wire.NewCodec(),
		readLimit: o.readLimit,
		logger:    o.logger,
	}
	bl.Starting = c.connect
	bl.Stopping = c.stopping
	return c, nil
}

// Codec exposes the value codec so callers can Register concrete types
// before Connect.
func (c *Client) Codec() *wire.Codec { return c.codec }

// Connect opens the underlying socket and arms the Overwatch bridge. It is
// safe to call directly (without Run) for a client that only ever issues
// synchronous Calls and never needs the outer loop driven on its own.
func (c *Client) Connect() error { return c.connect() }

func (c *Client) connect() error {
	if c.ow != nil {
		return nil
	}
	sock, err := usock.NewClientSocket(c.addr)
	if err != nil {
		return err
	}
	ow, err := conn.NewOverwatch(sock, c.bl.loop, c.logger, c.onPeerClosed)
	if err != nil {
		return err
	}
	c.ow = ow
	return nil
}

func (c *Client) onPeerClosed(*conn.Connection) {
	c.logger.Debug("server closed the connection")
	c.bl.Stop()
}

// Connected reports whether Connect has succeeded and the connection has
// not since closed.
func (c *Client) Connected() bool { return c.ow != nil && !c.ow.Closed() }

// Call sends name(args, kwargs) to the server and blocks the calling
// goroutine — by running Overwatch's private inner loop, not by parking a
// goroutine — until a response frame arrives, the connection closes, or
// framing fails.
func (c *Client) Call(name string, args []any, kwargs map[string]any) (any, error) {
	if !c.Connected() {
		return nil, &RequestError{Message: "ippc: not connected", Cause: ErrClosed}
	}

	encoded, err := c.codec.MarshalRequest(wire.Request{Name: name, Args: args, Kwargs: kwargs})
	if err != nil {
		return nil, &RequestError{Message: "ippc: encoding request", Cause: err}
	}
	framed, err := wire.EncodeFrame(encoded, c.readLimit)
	if err != nil {
		return nil, &RequestError{Message: "ippc: framing request", Cause: err}
	}

	c.result = nil
	c.resultErr = &RequestError{Message: "ippc: no response received"}

	if err := c.ow.Write(framed, c.onWritten); err != nil {
		return nil, &RequestError{Message: "ippc: writing request", Cause: err}
	}
	c.ow.Block()
	return c.result, c.resultErr
}

func (c *Client) onWritten() { _ = c.ow.Read(1, c.onLen) }

func (c *Client) onLen(b []byte) {
	l := b[0]
	if l == 0 {
		c.fail(wire.ErrInvalidLength)
		return
	}
	_ = c.ow.Read(int(l), c.onSize)
}

func (c *Client) onSize(b []byte) {
	n, err := wire.ParseSize(b)
	if err != nil {
		c.fail(err)
		return
	}
	_ = c.ow.Read(int(n), c.onResponse)
}

func (c *Client) onResponse(payload []byte) {
	resp, err := c.codec.UnmarshalResponse(payload)
	if err != nil {
		c.fail(err)
		return
	}
	if resp.Err != nil {
		c.resultErr = resp.Err
	} else {
		c.result, c.resultErr = resp.Value, nil
	}
	c.ow.Unblock()
}

func (c *Client) fail(err error) {
	c.resultErr = &RequestError{Message: "ippc: malformed response", Cause: err}
	c.ow.Unblock()
}

func (c *Client) stopping() error {
	if c.ow != nil {
		c.ow.Close(false)
		c.ow = nil
	}
	return nil
}

// Run arms signal handling and connects (if not already connected), then
// blocks the outer loop until Stop is called. Not required for Call to
// work: a client that never calls Run can still Connect and Call, since
// Overwatch's inner loop is independent of whether the outer loop runs.
func (c *Client) Run() error { return c.bl.Start() }

// Stop is idempotent; it tears the connection down and unblocks Run.
func (c *Client) Stop() { c.bl.Stop() }

// Close tears the connection down directly, for a client that never called
// Run.
func (c *Client) Close() error {
	c.stopping()
	return c.bl.loop.Close()
}

// Proxy returns a dotted-name chaining wrapper rooted at name, for callers
// that prefer attribute-style chaining over passing a dotted string to Call
// directly.
func (c *Client) Proxy(name string) *Proxy { return &Proxy{client: c, prefix: name} }

// Proxy accumulates a dotted prefix across repeated Attr calls; Call on a
// Proxy invokes "<prefix>.<name>" through the owning Client's single Call
// entry point. It adds no second call path, only name-building sugar.
type Proxy struct {
	client *Client
	prefix string
}

// Attr extends the proxy's dotted prefix by name, returning a new Proxy.
func (p *Proxy) Attr(name string) *Proxy {
	return &Proxy{client: p.client, prefix: p.prefix + "." + name}
}

// Call invokes "<prefix>.<name>" on the owning Client.
func (p *Proxy) Call(name string, args []any, kwargs map[string]any) (any, error) {
	return p.client.Call(p.prefix+"."+name, args, kwargs)
}
