// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/ippc/internal/wire"
)

func TestSizeLen(t *testing.T) {
	cases := []struct {
		n    uint64
		want byte
	}{
		{0, 1},
		{255, 1},
		{256, 2},
		{65535, 2},
		{65536, 3},
		{1 << 32, 5},
	}
	for _, c := range cases {
		if got := wire.SizeLen(c.n); got != c.want {
			t.Errorf("SizeLen(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestPutSizeParseSize(t *testing.T) {
	ns := []uint64{0, 1, 254, 255, 256, 65535, 65536, 1 << 20}
	for _, n := range ns {
		l := wire.SizeLen(n)
		buf := make([]byte, l)
		wire.PutSize(buf, n)
		got, err := wire.ParseSize(buf)
		if err != nil {
			t.Fatalf("ParseSize: %v", err)
		}
		if got != n {
			t.Errorf("round trip %d: got %d", n, got)
		}
	}
}

func TestParseSizeInvalid(t *testing.T) {
	if _, err := wire.ParseSize(nil); err != wire.ErrInvalidLength {
		t.Errorf("empty size bytes: got %v, want ErrInvalidLength", err)
	}
}

func TestEncodeFrame(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("x"),
		bytes.Repeat([]byte{1}, 254),
		bytes.Repeat([]byte{2}, 255),
		bytes.Repeat([]byte{3}, 256),
		bytes.Repeat([]byte{4}, 65535),
		bytes.Repeat([]byte{5}, 65536),
	}
	for _, p := range payloads {
		out, err := wire.EncodeFrame(p, 0)
		if err != nil {
			t.Fatalf("EncodeFrame(len=%d): %v", len(p), err)
		}
		l := out[0]
		if l == 0 {
			t.Fatalf("EncodeFrame(len=%d): wrote L=0", len(p))
		}
		size, err := wire.ParseSize(out[1 : 1+int(l)])
		if err != nil {
			t.Fatalf("parse size: %v", err)
		}
		if int(size) != len(p) {
			t.Errorf("encoded size %d, want %d", size, len(p))
		}
		got := out[1+int(l):]
		if !bytes.Equal(got, p) {
			t.Errorf("encoded payload mismatch for len=%d", len(p))
		}
	}
}

func TestEncodeFrameTooLong(t *testing.T) {
	if _, err := wire.EncodeFrame(make([]byte, 10), 5); err != wire.ErrTooLong {
		t.Errorf("got %v, want ErrTooLong", err)
	}
}

func TestCodecRequestResponseRoundTrip(t *testing.T) {
	c := wire.NewCodec()

	req := wire.Request{Name: "math.add", Args: []any{1, 2}, Kwargs: map[string]any{"scale": 2}}
	encoded, err := c.MarshalRequest(req)
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	got, err := c.UnmarshalRequest(encoded)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if got.Name != req.Name {
		t.Errorf("Name = %q, want %q", got.Name, req.Name)
	}

	resp := wire.Response{Value: "ok"}
	encoded, err = c.MarshalResponse(resp)
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	gotResp, err := c.UnmarshalResponse(encoded)
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	if gotResp.Value != "ok" || gotResp.Err != nil {
		t.Errorf("UnmarshalResponse = %+v", gotResp)
	}

	errResp := wire.Response{Err: &wire.RemoteError{Kind: "dispatch_miss", Message: "no such method"}}
	encoded, err = c.MarshalResponse(errResp)
	if err != nil {
		t.Fatalf("MarshalResponse(err): %v", err)
	}
	gotErrResp, err := c.UnmarshalResponse(encoded)
	if err != nil {
		t.Fatalf("UnmarshalResponse(err): %v", err)
	}
	if gotErrResp.Err == nil || gotErrResp.Err.Kind != "dispatch_miss" {
		t.Errorf("UnmarshalResponse(err) = %+v", gotErrResp)
	}
}
