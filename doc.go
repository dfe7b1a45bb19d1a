// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ippc implements an inter-process procedure call runtime: a server
// that exposes named procedures over a local Unix domain stream socket, and
// a client that calls them synchronously while internally driving a private
// event loop.
//
// A service method registered with Server must have the shape
//
//	func(args []any, kwargs map[string]any) (any, error)
//
// Go has no decorator to mark a method public, and no varargs-by-reflection
// calling convention worth building from scratch, so every exported method
// matching this one signature is dispatchable (see DESIGN.md's
// dispatch-reflection entry). RootService registers a service's methods
// without a dotted prefix.
package ippc

// RootService, passed as the prefix to Server.Service, registers the
// service's methods unprefixed: if prefix is empty or RootService, methods
// register under their bare name instead of "prefix.name".
const RootService = "__root__"
