// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc

import (
	"log/slog"
	"os"
)

// options configures a Server or Client via functional options. There is
// only one transport flavor (a local stream socket keyed by a filesystem
// path), so there is no second, transport-specific options file (see
// DESIGN.md).
type options struct {
	logger    *slog.Logger
	signals   []os.Signal
	readLimit int
}

func defaultOptions() options {
	return options{logger: slog.Default(), readLimit: 0}
}

// Option configures a Server or Client.
type Option func(*options)

// WithLogger sets the *slog.Logger a Server or Client logs through. The
// default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSignals overrides the default {SIGINT, SIGTERM} signal set wired to
// Stop.
func WithSignals(signals ...os.Signal) Option {
	return func(o *options) { o.signals = signals }
}

// WithReadLimit caps the payload size in bytes of the frames this side
// encodes (a Client's requests, a Server's responses); frames received from
// the peer are not checked against it. Zero (the default) means no limit.
func WithReadLimit(limit int) Option {
	return func(o *options) { o.readLimit = limit }
}
