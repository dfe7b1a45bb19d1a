// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc_test

import (
	"errors"
	"path/filepath"
	"testing"

	"code.hybscloud.com/ippc"
	"code.hybscloud.com/ippc/internal/wire"
)

func marshalRequest(t *testing.T, srv *ippc.Server, name string, args []any, kwargs map[string]any) []byte {
	t.Helper()
	encoded, err := srv.Codec().MarshalRequest(wire.Request{Name: name, Args: args, Kwargs: kwargs})
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	return encoded
}

func unmarshalResponse(t *testing.T, srv *ippc.Server, framed []byte) wire.Response {
	t.Helper()
	l := framed[0]
	n, err := wire.ParseSize(framed[1 : 1+int(l)])
	if err != nil {
		t.Fatalf("ParseSize: %v", err)
	}
	payload := framed[1+int(l) : 1+int(l)+int(n)]
	resp, err := srv.Codec().UnmarshalResponse(payload)
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	return resp
}

type mathService struct{}

func (mathService) Add(args []any, kwargs map[string]any) (any, error) {
	a, b := args[0].(int64), args[1].(int64)
	return a + b, nil
}

func (mathService) Boom(args []any, kwargs map[string]any) (any, error) {
	return nil, errors.New("boom")
}

func (mathService) Fatal(args []any, kwargs map[string]any) (any, error) {
	return nil, ippc.NewCriticalError("disk full")
}

// not dispatchable: wrong signature.
func (mathService) Helper(x int) int { return x }

func TestServiceRegistersExportedMatchingMethods(t *testing.T) {
	srv, err := ippc.NewServer(filepath.Join(t.TempDir(), "ippc.sock"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Service("math", mathService{}); err != nil {
		t.Fatalf("Service: %v", err)
	}

	payload := marshalRequest(t, srv, "math.Add", []any{int64(2), int64(3)}, nil)
	framed, err := srv.ExportHandleRequest(payload)
	if err != nil {
		t.Fatalf("handleRequest: %v", err)
	}
	if len(framed) == 0 {
		t.Fatal("expected a framed response")
	}
}

func TestHandleRequestDispatchMiss(t *testing.T) {
	srv, err := ippc.NewServer(filepath.Join(t.TempDir(), "ippc.sock"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	payload := marshalRequest(t, srv, "nope.Nothing", nil, nil)
	framed, err := srv.ExportHandleRequest(payload)
	if err != nil {
		t.Fatalf("handleRequest: %v", err)
	}
	resp := unmarshalResponse(t, srv, framed)
	if resp.Err == nil || resp.Err.Kind != ippc.KindDispatchMiss {
		t.Errorf("response = %+v, want KindDispatchMiss", resp)
	}
}

func TestHandleRequestOrdinaryFailure(t *testing.T) {
	srv, err := ippc.NewServer(filepath.Join(t.TempDir(), "ippc.sock"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Service("math", mathService{}); err != nil {
		t.Fatalf("Service: %v", err)
	}

	payload := marshalRequest(t, srv, "math.Boom", nil, nil)
	framed, err := srv.ExportHandleRequest(payload)
	if err != nil {
		t.Fatalf("handleRequest: %v", err)
	}
	resp := unmarshalResponse(t, srv, framed)
	if resp.Err == nil || resp.Err.Kind != ippc.KindHandlerFailed {
		t.Errorf("response = %+v, want KindHandlerFailed", resp)
	}
}

func TestHandleRequestCriticalPropagates(t *testing.T) {
	srv, err := ippc.NewServer(filepath.Join(t.TempDir(), "ippc.sock"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Service("math", mathService{}); err != nil {
		t.Fatalf("Service: %v", err)
	}

	payload := marshalRequest(t, srv, "math.Fatal", nil, nil)
	_, err = srv.ExportHandleRequest(payload)
	var critical *ippc.CriticalError
	if !errors.As(err, &critical) {
		t.Fatalf("got %v, want *ippc.CriticalError", err)
	}
}
