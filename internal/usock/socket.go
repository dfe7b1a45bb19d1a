// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package usock

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/iox"
)

// Socket is the common contract both server- and client-side endpoints
// satisfy.
type Socket interface {
	// Read drains whatever is currently available into dst, returning the
	// number of bytes copied and whether the peer has closed its end. It
	// returns iox.ErrWouldBlock, never blocking, when nothing is available.
	Read(dst []byte) (n int, peerClosed bool, err error)

	// Write writes a prefix of p, returning how many bytes were accepted.
	// It returns iox.ErrWouldBlock when the socket send buffer is full.
	Write(p []byte) (n int, err error)

	// Fd returns the underlying file descriptor, for registration with a
	// reactor.Loop's readiness watchers.
	Fd() int

	Close() error
	Closed() bool
}

type socket struct {
	fd     int
	closed atomic.Bool
}

func (s *socket) Fd() int      { return s.fd }
func (s *socket) Closed() bool { return s.closed.Load() }

func (s *socket) Read(dst []byte) (n int, peerClosed bool, err error) {
	if s.Closed() {
		return 0, false, os.ErrClosed
	}
	n, err = unix.Read(s.fd, dst)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, false, iox.ErrWouldBlock
		}
		return 0, false, err
	}
	if n == 0 {
		return 0, true, nil
	}
	return n, false, nil
}

func (s *socket) Write(p []byte) (n int, err error) {
	if s.Closed() {
		return 0, os.ErrClosed
	}
	n, err = unix.Write(s.fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return n, iox.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func (s *socket) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return unix.Close(s.fd)
	}
	return nil
}

// ServerSocket is a bound, listening, non-blocking Unix domain stream
// socket, keyed by a filesystem path.
type ServerSocket struct {
	socket
	path string
}

// NewServerSocket binds, listens, and arms name (a filesystem path) for
// non-blocking accept. Any stale socket file at name is removed first.
func NewServerSocket(name string) (*ServerSocket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("usock: socket: %w", err)
	}
	_ = unix.Unlink(name)
	addr := &unix.SockaddrUnix{Name: name}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("usock: bind %s: %w", name, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("usock: listen %s: %w", name, err)
	}
	return &ServerSocket{socket: socket{fd: fd}, path: name}, nil
}

// Accept returns the next pending connection, or iox.ErrWouldBlock if the
// accept queue is currently empty.
func (s *ServerSocket) Accept() (Socket, error) {
	if s.Closed() {
		return nil, os.ErrClosed
	}
	fd, _, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, iox.ErrWouldBlock
		}
		return nil, fmt.Errorf("usock: accept: %w", err)
	}
	return &socket{fd: fd}, nil
}

// Close closes the listening socket and removes the backing path.
func (s *ServerSocket) Close() error {
	err := s.socket.Close()
	_ = unix.Unlink(s.path)
	return err
}

// ClientSocket is a connected, non-blocking Unix domain stream socket.
type ClientSocket struct {
	socket
}

// NewClientSocket connects to name. Local Unix domain connects to an
// already-listening peer complete synchronously far more often than not;
// the rare EINPROGRESS is retried cooperatively (bounded yields) rather than
// plumbed through a write-readiness watcher.
func NewClientSocket(name string) (*ClientSocket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("usock: socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: name}
	err = unix.Connect(fd, addr)
	for i := 0; err == unix.EINPROGRESS && i < 1000; i++ {
		runtime.Gosched()
		if errno, _ := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); errno == 0 {
			err = nil
			break
		}
	}
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("usock: connect %s: %w", name, err)
	}
	return &ClientSocket{socket: socket{fd: fd}}, nil
}
