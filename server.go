// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ippc/internal/conn"
	"code.hybscloud.com/ippc/internal/reactor"
	"code.hybscloud.com/ippc/internal/usock"
	"code.hybscloud.com/ippc/internal/wire"
)

// Method is the shape every dispatchable service method must have (see
// doc.go). args and kwargs mirror the wire.Request's positional and keyword
// slots exactly.
type Method func(args []any, kwargs map[string]any) (any, error)

var methodType = reflect.TypeOf(Method(nil))

// Server accepts connections, builds a dispatch table from registered
// services, and routes requests to them.
type Server struct {
	bl   *baseLoop
	addr string

	codec     *wire.Codec
	readLimit int
	logger    *slog.Logger

	methods map[string]Method
	sock    *usock.ServerSocket
	peers   map[*peer]struct{}
}

// NewServer constructs a Server bound to addr, a filesystem path the
// listening socket is opened on once Run is called.
func NewServer(addr string, opts ...Option) (*Server, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	bl, err := newBaseLoop(o.logger, o.signals)
	if err != nil {
		return nil, err
	}
	s := &Server{
		bl:        bl,
		addr:      addr,
		codec:     wire.NewCodec(),
		readLimit: o.readLimit,
		logger:    o.logger,
		methods:   make(map[string]Method),
		peers:     make(map[*peer]struct{}),
	}
	s.bl.Setup = s.setup
	s.bl.Stopping = s.stopping
	return s, nil
}

// Codec exposes the value codec so callers can Register concrete types
// that will flow through request args/kwargs or response values.
func (s *Server) Codec() *wire.Codec { return s.codec }

// Service reflects over svc and registers every exported method matching
// the Method signature, under "prefix.Name" (or just "Name" when prefix is
// "" or RootService). Duplicate keys across services are last-writer-wins.
func (s *Server) Service(prefix string, svc any) error {
	v := reflect.ValueOf(svc)
	t := v.Type()
	n := 0
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.PkgPath != "" { // unexported
			continue
		}
		mv := v.Method(i)
		if !mv.Type().ConvertibleTo(methodType) {
			continue
		}
		key := m.Name
		if prefix != "" && prefix != RootService {
			key = prefix + "." + m.Name
		}
		s.methods[key] = mv.Convert(methodType).Interface().(Method)
		n++
	}
	if n == 0 {
		return fmt.Errorf("ippc: %T exposes no method shaped like ippc.Method", svc)
	}
	return nil
}

// Method registers a single dotted name explicitly, bypassing Service's
// reflection-based discovery.
func (s *Server) Method(name string, fn Method) { s.methods[name] = fn }

func (s *Server) setup() ([]*reactor.Watcher, error) {
	sock, err := usock.NewServerSocket(s.addr)
	if err != nil {
		return nil, err
	}
	s.sock = sock
	w := s.bl.loop.IO(sock.Fd(), reactor.Read, s.onAccept)
	w.Start()
	return []*reactor.Watcher{w}, nil
}

func (s *Server) onAccept(reactor.EventMask) {
	for {
		sock, err := s.sock.Accept()
		if err != nil {
			if err == iox.ErrWouldBlock {
				return
			}
			s.bl.onError("error accepting a connection", err)
			return
		}
		var p *peer
		p = newPeer(sock, s.bl.loop, s.logger, s.handleRequest, s.onPeerFatal, func(*conn.Connection) {
			delete(s.peers, p)
		})
		s.peers[p] = struct{}{}
	}
}

func (s *Server) onPeerFatal(err error) {
	s.logger.LogAttrs(context.Background(), slog.LevelError, "critical error processing request", slog.Any("err", err))
	s.bl.Stop()
}

// handleRequest returns a fully framed response on any ordinary outcome
// (dispatch miss or handler failure both encode to a remote error value);
// it returns a non-nil error only for the two critical cases: a
// CriticalError raised by the handler, or a framing failure encoding or
// decoding the request or response.
func (s *Server) handleRequest(payload []byte) ([]byte, error) {
	req, err := s.codec.UnmarshalRequest(payload)
	if err != nil {
		return nil, &FramingFailure{Cause: err}
	}

	var resp wire.Response
	fn, ok := s.methods[req.Name]
	if !ok {
		resp.Err = &wire.RemoteError{Kind: KindDispatchMiss, Message: (&ErrNoMethod{Name: req.Name}).Error()}
	} else {
		value, callErr := s.invoke(fn, req.Args, req.Kwargs)
		if callErr != nil {
			var critical *CriticalError
			if errors.As(callErr, &critical) {
				return nil, critical
			}
			s.logger.Error("error processing request", "err", callErr)
			resp.Err = &wire.RemoteError{Kind: KindHandlerFailed, Message: callErr.Error()}
		} else {
			resp.Value = value
		}
	}

	encoded, err := s.codec.MarshalResponse(resp)
	if err != nil {
		return nil, &FramingFailure{Cause: err}
	}
	return wire.EncodeFrame(encoded, s.readLimit)
}

// invoke runs fn, converting a panic into an ordinary (non-critical) error.
func (s *Server) invoke(fn Method, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return fn(args, kwargs)
}

func (s *Server) stopping() error {
	for p := range s.peers {
		p.c.Close(false)
	}
	s.peers = make(map[*peer]struct{})
	if s.sock != nil {
		return s.sock.Close()
	}
	return nil
}

// Run starts the server and blocks until Stop is called (directly, via
// SIGINT/SIGTERM, or via a CriticalError from a handler).
func (s *Server) Run() error { return s.bl.Start() }

// Stop is idempotent; see baseLoop.Stop.
func (s *Server) Stop() { s.bl.Stop() }
