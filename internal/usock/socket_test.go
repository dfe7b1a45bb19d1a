// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package usock_test

import (
	"path/filepath"
	"testing"
	"time"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ippc/internal/usock"
)

func TestServerClientRoundTrip(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "ippc.sock")

	srv, err := usock.NewServerSocket(addr)
	if err != nil {
		t.Fatalf("NewServerSocket: %v", err)
	}
	defer srv.Close()

	cli, err := usock.NewClientSocket(addr)
	if err != nil {
		t.Fatalf("NewClientSocket: %v", err)
	}
	defer cli.Close()

	var peer usock.Socket
	for deadline := time.Now().Add(2 * time.Second); ; {
		peer, err = srv.Accept()
		if err == nil {
			break
		}
		if err != iox.ErrWouldBlock {
			t.Fatalf("Accept: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("Accept: timed out waiting for connection")
		}
		time.Sleep(time.Millisecond)
	}
	defer peer.Close()

	want := []byte("hello ippc")
	n, err := cli.Write(want)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(want) {
		t.Fatalf("Write returned n=%d, want %d", n, len(want))
	}

	buf := make([]byte, 64)
	var got []byte
	for deadline := time.Now().Add(2 * time.Second); len(got) < len(want); {
		n, peerClosed, err := peer.Read(buf)
		if err != nil {
			if err == iox.ErrWouldBlock {
				if time.Now().After(deadline) {
					t.Fatal("Read: timed out")
				}
				time.Sleep(time.Millisecond)
				continue
			}
			t.Fatalf("Read: %v", err)
		}
		if peerClosed {
			t.Fatal("Read: unexpected peer close")
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestServerSocketAcceptWouldBlock(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "ippc.sock")
	srv, err := usock.NewServerSocket(addr)
	if err != nil {
		t.Fatalf("NewServerSocket: %v", err)
	}
	defer srv.Close()

	if _, err := srv.Accept(); err != iox.ErrWouldBlock {
		t.Errorf("Accept with no pending conn: got %v, want iox.ErrWouldBlock", err)
	}
}

func TestSocketCloseIdempotent(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "ippc.sock")
	srv, err := usock.NewServerSocket(addr)
	if err != nil {
		t.Fatalf("NewServerSocket: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !srv.Closed() {
		t.Error("Closed() = false after Close")
	}
}
