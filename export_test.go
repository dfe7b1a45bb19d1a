// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ippc

// ExportHandleRequest exposes handleRequest to the external ippc_test
// package, following the export_test.go convention used across the pack
// (e.g. coder-websocket's conn_export_test.go).
func (s *Server) ExportHandleRequest(payload []byte) ([]byte, error) {
	return s.handleRequest(payload)
}
