// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	// HashSize defines the size of hash
	HashSize = 32
)

var (
	// ZeroHash256 is 32-bytes of all zero
	ZeroHash256 = Hash256{}
)

// Hash256 is a 32-byte hash
type Hash256 [HashSize]byte

// Hash256b returns the 32-byte sha256 hash of the byte slices, in order
func Hash256b(data ...[]byte) Hash256 {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash256
	copy(out[:], h.Sum(nil))
	return out
}

// BytesToHash256 copies the byte slice into a Hash256, left-padding with zero
func BytesToHash256(b []byte) Hash256 {
	var h Hash256
	if len(b) > HashSize {
		b = b[len(b)-HashSize:]
	}
	copy(h[HashSize-len(b):], b)
	return h
}

// Bytes returns a copy of the hash as a byte slice
func (h Hash256) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// IsZero returns true if the hash is all zero
func (h Hash256) IsZero() bool {
	return h == ZeroHash256
}

// Hex returns the lowercase hex encoding of the hash
func (h Hash256) Hex() string {
	return hex.EncodeToString(h[:])
}

// DecodeHash256 decodes a hex string into a Hash256
func DecodeHash256(s string) (Hash256, error) {
	var h Hash256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) > HashSize {
		b = b[len(b)-HashSize:]
	}
	copy(h[HashSize-len(b):], b)
	return h, nil
}
