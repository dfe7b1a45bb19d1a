// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package reactor

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// signalBridge folds Go's goroutine-and-channel signal delivery into the
// epoll readiness loop via the classic self-pipe trick: os/signal.Notify
// feeds a channel, a single goroutine writes one byte per signal to a
// non-blocking pipe, and the loop learns about it as ordinary fd
// readiness.
type signalBridge struct {
	r, w int
	ch   chan os.Signal

	mu       sync.Mutex
	pending  []os.Signal
	watchers map[os.Signal][]*Watcher
}

func newSignalBridge() (*signalBridge, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &signalBridge{
		r: fds[0], w: fds[1],
		ch:       make(chan os.Signal, 16),
		watchers: make(map[os.Signal][]*Watcher),
	}, nil
}

func (b *signalBridge) readFd() int { return b.r }

// pump is the one goroutine that ever receives from ch (os/signal.Notify
// requires a goroutine on the receiving end); it hands each signal to the
// loop goroutine via the pending slice, then wakes epoll_wait with one byte.
func (b *signalBridge) pump() {
	for sig := range b.ch {
		b.mu.Lock()
		b.pending = append(b.pending, sig)
		b.mu.Unlock()
		var buf [1]byte
		_, _ = unix.Write(b.w, buf[:])
	}
}

// drain runs on the loop goroutine when the self-pipe becomes readable.
func (b *signalBridge) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(b.r, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, sig := range pending {
		b.dispatch(sig)
	}
}

func (b *signalBridge) dispatch(sig os.Signal) {
	b.mu.Lock()
	ws := append([]*Watcher(nil), b.watchers[sig]...)
	b.mu.Unlock()
	for _, w := range ws {
		if w.active {
			w.cb(0)
		}
	}
}

func (b *signalBridge) close() {
	signal.Stop(b.ch)
	close(b.ch)
	_ = unix.Close(b.r)
	_ = unix.Close(b.w)
}

// Signal registers cb to run on the loop's own goroutine whenever sig is
// delivered to the process.
func (l *Loop) Signal(sig os.Signal, cb func(revents EventMask)) (*Watcher, error) {
	if l.sig == nil {
		b, err := newSignalBridge()
		if err != nil {
			return nil, err
		}
		l.sig = b
		go b.pump()
		st := &fdState{fd: b.readFd()}
		l.fds[b.readFd()] = st
		w := &Watcher{loop: l, kind: KindIO, fd: b.readFd(), events: Read, cb: func(EventMask) {}}
		st.read = w
		w.active = true
		l.ioSync(b.readFd())
	}
	w := &Watcher{loop: l, kind: KindSignal, fd: -1, cb: cb}
	l.sig.mu.Lock()
	l.sig.watchers[sig] = append(l.sig.watchers[sig], w)
	l.sig.mu.Unlock()
	signal.Notify(l.sig.ch, sig)
	return w, nil
}

func (l *Loop) signalStart(w *Watcher) {
	// Registration happens at Signal() call time; Start/Stop only gate
	// whether dispatch() invokes the callback (see Watcher.active checks).
}

func (l *Loop) signalStop(w *Watcher) {}
