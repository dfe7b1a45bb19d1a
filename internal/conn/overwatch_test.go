// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn_test

import (
	"testing"
	"time"

	"code.hybscloud.com/ippc/internal/conn"
	"code.hybscloud.com/ippc/internal/reactor"
)

// TestOverwatchBlockUnblock drives one request/response round trip through
// Overwatch's private inner loop while the outer loop never runs at all:
// Block/Unblock must work independent of whether the caller's own loop is
// active.
func TestOverwatchBlockUnblock(t *testing.T) {
	serverSock, clientSock := pair(t)
	defer clientSock.Close()

	outer, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer outer.Close()

	ow, err := conn.NewOverwatch(serverSock, outer, nil, nil)
	if err != nil {
		t.Fatalf("NewOverwatch: %v", err)
	}

	var got []byte
	_ = ow.Read(4, func(b []byte) {
		got = append([]byte(nil), b...)
		ow.Unblock()
	})

	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = clientSock.Write([]byte("pong"))
	}()

	done := make(chan struct{})
	go func() {
		ow.Block()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Block never returned")
	}
	if string(got) != "pong" {
		t.Errorf("got %q, want %q", got, "pong")
	}
}

// TestOverwatchDetectsPeerCloseWhenIdle verifies that while idle (no Block in
// progress) the outer watcher still detects peer close, since it shares the
// base Connection's onReadable callback.
func TestOverwatchDetectsPeerCloseWhenIdle(t *testing.T) {
	serverSock, clientSock := pair(t)

	outer, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer outer.Close()

	closed := make(chan struct{})
	ow, err := conn.NewOverwatch(serverSock, outer, nil, func(*conn.Connection) { close(closed) })
	if err != nil {
		t.Fatalf("NewOverwatch: %v", err)
	}
	_ = ow

	done := make(chan struct{})
	go func() {
		outer.Run()
		close(done)
	}()

	clientSock.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("peer close not detected while idle")
	}
	outer.Break(true)
	<-done
}
