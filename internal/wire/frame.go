// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "errors"

// ErrTooLong reports that a payload length exceeds the read limit passed to
// EncodeFrame.
var ErrTooLong = errors.New("wire: message too long")

// ErrInvalidLength reports L == 0 on the wire, which is never valid.
var ErrInvalidLength = errors.New("wire: invalid length-of-size byte")

// maxSizeBytes bounds L for encode: 8 bytes covers every payload length a
// Go process can hold in memory, so encode never needs more.
const maxSizeBytes = 8

// SizeLen returns the number of size bytes (L) needed to encode n, the
// smallest value in [1, maxSizeBytes] whose big-endian encoding holds n.
func SizeLen(n uint64) byte {
	l := byte(1)
	for n>>(8*l) != 0 {
		l++
	}
	return l
}

// PutSize writes n as L big-endian bytes into buf, which must have length L.
func PutSize(buf []byte, n uint64) {
	l := len(buf)
	for i := l - 1; i >= 0; i-- {
		buf[i] = byte(n)
		n >>= 8
	}
}

// ParseSize decodes the big-endian integer held in size bytes.
func ParseSize(b []byte) (uint64, error) {
	if len(b) == 0 || len(b) > 255 {
		return 0, ErrInvalidLength
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n, nil
}

// EncodeFrame returns payload fully framed: L, then L size bytes, then
// payload. readLimit, when non-zero, caps the payload length accepted.
func EncodeFrame(payload []byte, readLimit int) ([]byte, error) {
	if readLimit > 0 && len(payload) > readLimit {
		return nil, ErrTooLong
	}
	n := uint64(len(payload))
	l := SizeLen(n)
	out := make([]byte, 1+int(l)+len(payload))
	out[0] = l
	PutSize(out[1:1+l], n)
	copy(out[1+int(l):], payload)
	return out, nil
}
