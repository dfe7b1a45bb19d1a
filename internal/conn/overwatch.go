// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"log/slog"

	"code.hybscloud.com/ippc/internal/reactor"
	"code.hybscloud.com/ippc/internal/usock"
)

// Overwatch is a Connection specialization for a synchronous-looking call
// site over an asynchronous socket. It owns a private inner
// reactor.Loop — the base Connection's reader and writer watchers live on
// it — plus an overwatch watcher registered on the caller's outer loop,
// which keeps peer-close detection alive while no call is in flight.
//
// States:
//   - Idle: the overwatch watcher runs on the outer loop; the inner loop is
//     stopped.
//   - Blocked: the overwatch watcher is stopped (so the outer loop cannot
//     steal readiness events meant for the reply); the inner loop runs,
//     pumping exactly the I/O needed to complete one request/response round
//     trip.
type Overwatch struct {
	*Connection
	inner     *reactor.Loop
	overwatch *reactor.Watcher
}

// NewOverwatch wraps sock with an Overwatch bound to outer. onClose, as in
// New, fires at most once, on the base Connection's close.
func NewOverwatch(sock usock.Socket, outer *reactor.Loop, logger *slog.Logger, onClose func(*Connection)) (*Overwatch, error) {
	inner, err := reactor.New()
	if err != nil {
		return nil, err
	}
	c := New(sock, inner, logger, onClose)
	ow := &Overwatch{Connection: c, inner: inner}
	// The overwatch watcher shares the base Connection's onReadable: while
	// Idle there is normally no queued read task, so this only ever detects
	// EOF (peer close) or buffers unexpected early bytes for the next call's
	// synchronous consume — identical to what the inner reader watcher would
	// have done, had the inner loop been running.
	ow.overwatch = outer.IO(sock.Fd(), reactor.Read, c.onReadable)
	ow.overwatch.Start()
	c.preClose = func(*Connection) {
		ow.inner.Break(true)
		ow.overwatch.Stop()
		_ = ow.inner.Close()
	}
	return ow, nil
}

// Block stops the overwatch watcher and runs the inner loop. It returns
// once Unblock breaks the inner loop.
func (ow *Overwatch) Block() {
	ow.overwatch.Stop()
	ow.inner.Run()
}

// Unblock breaks the inner loop (all depths) and restarts the overwatch
// watcher. Called from inside an inner-loop callback; Block's Run call
// returns as soon as that callback returns, without dispatching the rest of
// the current poll's events.
func (ow *Overwatch) Unblock() {
	ow.inner.Break(true)
	ow.overwatch.Start()
}

// Read and Write are inherited from the embedded Connection and always
// operate against the inner loop's watchers, regardless of Idle/Blocked
// state — queuing a read or write while Idle is valid. A queued write
// doesn't progress until the next Block; a queued read can also be served
// while Idle, by the overwatch watcher's shared onReadable whenever the
// outer loop runs.
