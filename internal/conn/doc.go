// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conn implements a non-blocking, callback-driven reader/writer over
// one socket, with FIFO read/write task queues and failure-by-close
// semantics, plus an Overwatch variant for synchronous-looking call sites.
package conn
