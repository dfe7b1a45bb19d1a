// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc

import (
	"context"
	"log/slog"
	"os"
	"syscall"

	"code.hybscloud.com/ippc/internal/reactor"
)

// baseLoop provides the process lifecycle shared by Server and Client:
// signal handlers wired to Stop, a deferred `starting` hook run from a
// prepare watcher once the loop's own watchers are armed, and an
// idempotent, orderly `stopping`.
//
// Server and Client each embed one and set Setup/Starting/Stopping to their
// own hooks instead of subclassing a shared base type, since Go has no
// inheritance.
type baseLoop struct {
	loop    *reactor.Loop
	logger  *slog.Logger
	signals []os.Signal

	watchers []*reactor.Watcher
	running  bool
	stopping bool

	// Setup registers component-specific watchers (e.g. the server's accept
	// watcher) and returns them for lifecycle tracking. It runs once, at
	// the start of Start.
	Setup func() ([]*reactor.Watcher, error)
	// Starting runs once the loop's watchers are armed, from a prepare
	// watcher, deferring work until the very start of the first Run tick.
	Starting func() error
	// Stopping runs once, before watchers are torn down further and the
	// loop itself breaks.
	Stopping func() error
}

func newBaseLoop(logger *slog.Logger, signals []os.Signal) (*baseLoop, error) {
	l, err := reactor.New()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if signals == nil {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return &baseLoop{loop: l, logger: logger, signals: signals}, nil
}

func (b *baseLoop) onError(message string, err error) {
	suffix := ""
	if !b.stopping {
		suffix = " -> stopping"
	}
	b.logger.LogAttrs(context.Background(), slog.LevelError, message+suffix, slog.Any("err", err))
	b.Stop()
}

// Start arms signal watchers, Setup's watchers, and a deferred prepare
// watcher for Starting, then runs the loop until Stop breaks it.
func (b *baseLoop) Start() error {
	if b.running {
		return nil
	}
	b.logger.Info("starting...")

	var extra []*reactor.Watcher
	if b.Setup != nil {
		w, err := b.Setup()
		if err != nil {
			return err
		}
		extra = w
	}

	for _, sig := range b.signals {
		w, err := b.loop.Signal(sig, func(reactor.EventMask) { b.Stop() })
		if err != nil {
			return err
		}
		b.watchers = append(b.watchers, w)
	}
	b.watchers = append(b.watchers, extra...)

	var prepare *reactor.Watcher
	prepare = b.loop.Prepare(func(reactor.EventMask) {
		prepare.Stop()
		if b.Starting != nil {
			if err := b.Starting(); err != nil {
				b.onError("error while starting", err)
				return
			}
		}
		b.logger.Info("started")
	})
	prepare.Start()

	for _, w := range b.watchers {
		w.Start()
	}

	b.running = true
	b.loop.Run()
	b.running = false
	return nil
}

// Stop is idempotent: it stops every registered watcher, runs Stopping,
// and breaks the loop (all depths).
func (b *baseLoop) Stop() {
	if !b.running || b.stopping {
		return
	}
	b.stopping = true
	b.logger.Info("stopping...")
	for _, w := range b.watchers {
		w.Stop()
	}
	b.watchers = nil
	if b.Stopping != nil {
		if err := b.Stopping(); err != nil {
			b.logger.Error("error while stopping", "err", err)
		}
	}
	b.loop.Break(true)
	b.logger.Info("stopped")
	b.stopping = false
}

// Stopped reports whether the loop is not currently running.
func (b *baseLoop) Stopped() bool { return !b.running }
