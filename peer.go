// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc

import (
	"log/slog"

	"code.hybscloud.com/ippc/internal/conn"
	"code.hybscloud.com/ippc/internal/reactor"
	"code.hybscloud.com/ippc/internal/usock"
	"code.hybscloud.com/ippc/internal/wire"
)

// peer is the server-side read-frame/invoke/write-frame cycle: after
// construction it arms itself with wait(), which schedules
// read(1) -> L, read(L) -> size bytes, read(size) -> payload, then invokes
// handler and writes the response before waiting for the next frame.
type peer struct {
	c       *conn.Connection
	handler func(payload []byte) ([]byte, error)
	onFatal func(error)
}

func newPeer(
	sock usock.Socket,
	loop *reactor.Loop,
	logger *slog.Logger,
	handler func([]byte) ([]byte, error),
	onFatal func(error),
	onClose func(*conn.Connection),
) *peer {
	p := &peer{handler: handler, onFatal: onFatal}
	p.c = conn.New(sock, loop, logger, onClose)
	p.wait()
	return p
}

func (p *peer) wait() {
	_ = p.c.Read(1, p.onLen)
}

func (p *peer) onLen(b []byte) {
	l := b[0]
	if l == 0 {
		p.fail(wire.ErrInvalidLength)
		return
	}
	_ = p.c.Read(int(l), p.onSize)
}

func (p *peer) onSize(b []byte) {
	n, err := wire.ParseSize(b)
	if err != nil {
		p.fail(err)
		return
	}
	_ = p.c.Read(int(n), p.onRequest)
}

func (p *peer) onRequest(payload []byte) {
	resp, err := p.handler(payload)
	if err != nil {
		if p.onFatal != nil {
			p.onFatal(err)
		}
		p.c.Close(true)
		return
	}
	_ = p.c.Write(resp, p.wait)
}

func (p *peer) fail(err error) {
	if p.onFatal != nil {
		p.onFatal(&FramingFailure{Cause: err})
	}
	p.c.Close(true)
}
