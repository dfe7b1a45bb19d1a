// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/gob"
)

// Request is the payload of a frame sent from client to server: a dotted
// procedure name, positional arguments, and keyword arguments.
type Request struct {
	Name   string
	Args   []any
	Kwargs map[string]any
}

// Response is the payload of a frame sent from server to client.
//
// A Response carries exactly one of a successful value or a remote error;
// this is the tagged-variant modeling of "a value that is an error instance
// conveys a remote failure".
type Response struct {
	Value any
	Err   *RemoteError
}

// RemoteError is a wire-encodable description of a failure that occurred on
// the server while handling a request. Kind distinguishes the handful of
// remote failure classes the caller may want to branch on (see errors.go in
// the ippc package for the Kind constants); Message is free text.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Codec marshals Requests and Responses for the wire, and maintains the
// registry of concrete types that may appear inside Args, Kwargs, or a
// successful Response value.
//
// Register wraps gob.Register: Go's gob package already maintains a
// process-global name→type table for encoding interface values, so this
// type registry does not reimplement one on top of gob.
type Codec struct{}

// NewCodec returns a ready-to-use Codec. Codec carries no per-instance
// state; gob's registry is process-global.
func NewCodec() *Codec { return &Codec{} }

// Register makes v's concrete type encodable inside request/response
// payloads. Call once per type during startup, before any connection is
// opened.
func (c *Codec) Register(v any) { gob.Register(v) }

// MarshalRequest encodes a Request to bytes suitable for EncodeFrame.
func (c *Codec) MarshalRequest(r Request) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalRequest decodes a Request previously produced by MarshalRequest.
func (c *Codec) UnmarshalRequest(payload []byte) (Request, error) {
	var r Request
	err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&r)
	return r, err
}

// MarshalResponse encodes a Response to bytes suitable for EncodeFrame.
func (c *Codec) MarshalResponse(r Response) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalResponse decodes a Response previously produced by MarshalResponse.
func (c *Codec) UnmarshalResponse(payload []byte) (Response, error) {
	var r Response
	err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&r)
	return r, err
}

func init() {
	// Common argument/result shapes need no explicit registration with gob
	// (it handles concrete non-interface struct fields natively); only
	// types that flow through the `any` slots of Request/Kwargs/Response
	// need Register. Registering the built-in scalars here eagerly at
	// startup means simple echo-style services work without the caller
	// remembering to register anything.
	for _, v := range []any{
		"", 0, int64(0), float64(0), true, []byte(nil), []any(nil), map[string]any(nil),
	} {
		gob.Register(v)
	}
}
