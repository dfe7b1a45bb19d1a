// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reactor implements a single-threaded, cooperative event loop:
// watchers of kind io, signal, and prepare, registered against one Loop,
// with start/stop and depth queries.
//
// A Loop owns one epoll instance. Watchers are values the owner holds; a
// Watcher's callback receives no back-reference to its owner, only the
// revents bitmask, so a closed connection can never be resurrected by a
// stale event.
//
// Unlike a goroutine-per-connection Go server, everything here runs on the
// single goroutine that calls Loop.Run: no locks guard the fd table, because
// nothing but that one goroutine ever touches it. The one exception is the
// signal bridge (signal.go), which by construction must accept delivery
// from the Go runtime's own signal-forwarding goroutine; it hands signals to
// the loop goroutine through a mutex-guarded pending list and wakes the loop
// with one byte on a self-pipe.
package reactor
