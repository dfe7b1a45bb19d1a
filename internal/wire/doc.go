// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the ippc frame and value encoding contract.
//
// A frame on the wire is:
//
//	┌──────┬───────────────┬───────────────────────┐
//	│ L: 1 │ size: L bytes │ payload: <size> bytes │
//	└──────┴───────────────┴───────────────────────┘
//
// L is the number of bytes used to encode size, 1 <= L <= 255; L == 0 is
// invalid. size is always big-endian within its L bytes; the package picks
// the smallest L that fits the payload length on encode.
//
// Payload encoding (requests and responses) is layered on encoding/gob, whose
// Register function serves as the type registry: concrete types that can
// appear inside a request's args/kwargs, or as a response value, must be
// registered once at startup.
package wire
