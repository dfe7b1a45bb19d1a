// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package usock implements a non-blocking Unix domain stream socket, keyed
// by a filesystem path, with accept/read/write/close and a queryable closed
// flag.
//
// Reads and writes surface iox.ErrWouldBlock for the EAGAIN/EWOULDBLOCK
// condition, so internal/conn and the server's accept loop share one
// non-blocking vocabulary with this package.
package usock
