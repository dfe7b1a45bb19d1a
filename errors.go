// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc

import (
	"errors"
	"fmt"
)

// Error kind constants, carried over the wire inside wire.RemoteError.Kind so
// a client can branch on the remote failure class without parsing messages.
const (
	KindDispatchMiss  = "dispatch_miss"
	KindHandlerFailed = "handler_failed"
)

// ErrClosed is the Cause of the RequestError a Client.Call returns when
// issued against a connection that is not currently open.
var ErrClosed = errors.New("ippc: connection closed")

// ErrNoMethod is the local, typed form of a DispatchMiss: no service was
// registered under the requested dotted name.
type ErrNoMethod struct {
	Name string
}

func (e *ErrNoMethod) Error() string { return fmt.Sprintf("no method '%s'", e.Name) }

// CriticalError is a designated error kind: a handler returning one tears
// the server loop down instead of being reported to the caller as an
// ordinary remote error.
type CriticalError struct {
	Message string
	Cause   error
}

func NewCriticalError(message string) *CriticalError {
	return &CriticalError{Message: message}
}

func (e *CriticalError) Error() string { return e.Message }

func (e *CriticalError) Unwrap() error { return e.Cause }

// RequestError is raised to a Client caller when the request/response round
// trip fails for a reason that doesn't carry a remote value: the connection
// closed mid-call, the response was unparseable, or Block/Unblock returned
// without a result ever being set. It is also used as the sentinel result
// installed before a call's reply has arrived.
type RequestError struct {
	Message string
	Cause   error
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return "ippc: request failed"
	}
	return e.Message
}

func (e *RequestError) Unwrap() error { return e.Cause }

// FramingFailure means encoding or decoding a frame failed. On the server
// this is treated as a CriticalError; on the client it is surfaced to the
// caller as a RequestError.
type FramingFailure struct {
	Cause error
}

func (e *FramingFailure) Error() string { return fmt.Sprintf("ippc: framing failure: %v", e.Cause) }

func (e *FramingFailure) Unwrap() error { return e.Cause }
