// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const maxEvents = 128

// fdState aggregates the (at most two) watchers registered against one fd:
// epoll registers interest per descriptor, not per watcher, so a Connection's
// independent read and write watchers on the same socket share one epoll_ctl
// registration underneath.
type fdState struct {
	fd           int
	read         *Watcher
	write        *Watcher
	regMask      uint32
	isRegistered bool
}

func (s *fdState) registered() bool { return s.isRegistered }

func (s *fdState) wanted() uint32 {
	var ev uint32
	if s.read != nil && s.read.active {
		ev |= unix.EPOLLIN
	}
	if s.write != nil && s.write.active {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Loop is one epoll instance plus the bookkeeping needed to support io,
// prepare, and signal watchers, and a break that unwinds Run regardless of
// how many times it has been entered.
type Loop struct {
	epfd int
	fds  map[int]*fdState

	prepares []*Watcher
	ran      bool // whether Run has executed its prepare pass yet

	sig *signalBridge

	running bool
	breakAt bool // request to unwind Run, regardless of nesting
}

// New creates an unstarted Loop backed by one epoll instance.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Loop{epfd: epfd, fds: make(map[int]*fdState)}, nil
}

// Close releases the epoll instance. The loop must already be stopped.
func (l *Loop) Close() error {
	if l.sig != nil {
		l.sig.close()
	}
	return unix.Close(l.epfd)
}

// IO registers a watcher of the given event kind on fd. The watcher starts
// inactive; call Start to arm it.
func (l *Loop) IO(fd int, ev EventMask, cb func(revents EventMask)) *Watcher {
	w := &Watcher{loop: l, kind: KindIO, fd: fd, events: ev, cb: cb}
	st, ok := l.fds[fd]
	if !ok {
		st = &fdState{fd: fd}
		l.fds[fd] = st
	}
	if ev&Read != 0 {
		st.read = w
	}
	if ev&Write != 0 {
		st.write = w
	}
	return w
}

func (l *Loop) ioSync(fd int) {
	st := l.fds[fd]
	if st == nil {
		return
	}
	want := st.wanted()
	ev := unix.EpollEvent{Events: want, Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if !st.registered() {
		op = unix.EPOLL_CTL_ADD
	}
	if want == 0 {
		if st.registered() {
			_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
			st.regMask, st.isRegistered = 0, false
		}
		return
	}
	if err := unix.EpollCtl(l.epfd, op, fd, &ev); err == nil {
		st.regMask, st.isRegistered = want, true
	}
}

func (l *Loop) ioStart(w *Watcher) { l.ioSync(w.fd) }
func (l *Loop) ioStop(w *Watcher)  { l.ioSync(w.fd) }

// Prepare creates a watcher that fires exactly once, at the very start of
// the next Run call, before the first poll — used to defer a one-time
// "starting" action until the loop's other watchers are armed.
func (l *Loop) Prepare(cb func(EventMask)) *Watcher {
	return &Watcher{loop: l, kind: KindPrepare, cb: cb}
}

func (l *Loop) prepareStart(w *Watcher) { l.prepares = append(l.prepares, w) }

func (l *Loop) prepareStop(w *Watcher) {
	for i, p := range l.prepares {
		if p == w {
			l.prepares = append(l.prepares[:i], l.prepares[i+1:]...)
			return
		}
	}
}

// Depth reports whether the loop is currently inside Run: 0 means stopped.
func (l *Loop) Depth() int {
	if l.running {
		return 1
	}
	return 0
}

// Break unwinds the current Run call. all is accepted for symmetry with the
// source's EVBREAK_ALL/EVBREAK_ONE distinction; this reactor never nests a
// Loop's Run within itself, so there is only ever one depth to break.
func (l *Loop) Break(all bool) {
	l.breakAt = true
}

// Run drains prepare watchers once, then polls until Break is called.
func (l *Loop) Run() {
	l.running = true
	l.breakAt = false
	for _, p := range l.prepares {
		cb, w := p.cb, p
		w.active = false
		cb(0)
	}
	l.prepares = l.prepares[:0]

	events := make([]unix.EpollEvent, maxEvents)
	for !l.breakAt {
		n, err := unix.EpollWait(l.epfd, events, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			panic(fmt.Sprintf("reactor: epoll_wait: %v", err))
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if l.sig != nil && fd == l.sig.readFd() {
				l.sig.drain()
				continue
			}
			st := l.fds[fd]
			if st == nil {
				continue
			}
			revents := events[i].Events
			if revents&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 && st.read != nil && st.read.active {
				st.read.cb(Read)
			}
			if l.breakAt {
				break
			}
			if revents&(unix.EPOLLOUT|unix.EPOLLERR) != 0 && st.write != nil && st.write.active {
				st.write.cb(Write)
			}
			if l.breakAt {
				break
			}
		}
	}
	l.running = false
}
