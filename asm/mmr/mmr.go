// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package mmr implements an append-only Merkle Mountain Range over 32-byte
// digests. The hot-state representation is compact: a leaf count plus one
// peak hash per binary-tree level, so the anchor state never retains full
// history. A separate Prover retains all leaves and produces inclusion
// proofs against the range at any historical size.
package mmr

import (
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

var (
	// ErrLeafOutOfRange indicates the requested leaf index has not been appended
	ErrLeafOutOfRange = errors.New("leaf index out of range")
	// ErrSizeOutOfRange indicates the requested size exceeds the number of appended leaves
	ErrSizeOutOfRange = errors.New("size out of range")
)

// CompactMMR is the peak-only representation of the mountain range.
// Peaks[i] is the root of the perfect subtree of 1<<i leaves, or the zero
// hash when the i-th bit of NumLeaves is unset.
type CompactMMR struct {
	NumLeaves uint64
	Peaks     []hash.Hash256
}

// AddLeaf appends a leaf digest and returns its leaf index. Merging carries
// the new subtree root up one level at a time, exactly like binary addition.
func (m *CompactMMR) AddLeaf(leaf hash.Hash256) uint64 {
	idx := m.NumLeaves
	carry := leaf
	for level := 0; ; level++ {
		if level == len(m.Peaks) {
			m.Peaks = append(m.Peaks, carry)
			break
		}
		if m.Peaks[level].IsZero() {
			m.Peaks[level] = carry
			break
		}
		carry = parentHash(m.Peaks[level], carry)
		m.Peaks[level] = hash.ZeroHash256
	}
	m.NumLeaves++
	return idx
}

// PeakRoots returns the non-zero peak hashes, lowest level first.
func (m *CompactMMR) PeakRoots() []hash.Hash256 {
	roots := make([]hash.Hash256, 0, len(m.Peaks))
	for _, p := range m.Peaks {
		if !p.IsZero() {
			roots = append(roots, p)
		}
	}
	return roots
}

// Root bags the peaks into a single commitment. Peaks at higher levels hold
// earlier leaves, so the fold walks upward with the running digest on the
// right. An empty range commits to the zero hash.
func (m *CompactMMR) Root() hash.Hash256 {
	if m.NumLeaves == 0 {
		return hash.ZeroHash256
	}
	cur := m.Peaks[0]
	for i := 1; i < len(m.Peaks); i++ {
		cur = parentHash(m.Peaks[i], cur)
	}
	return cur
}

// Clone returns a deep copy of the compact range.
func (m *CompactMMR) Clone() CompactMMR {
	peaks := make([]hash.Hash256, len(m.Peaks))
	copy(peaks, m.Peaks)
	return CompactMMR{NumLeaves: m.NumLeaves, Peaks: peaks}
}

func parentHash(left, right hash.Hash256) hash.Hash256 {
	return hash.Hash256b(left[:], right[:])
}

// Proof is an inclusion proof for one leaf against the range root at size
// LeafCount. Path holds the in-mountain siblings bottom-up; Peaks is the
// full peak set at LeafCount. Appending further leaves never invalidates a
// proof: the root at LeafCount stays derivable because the range is
// append-only.
type Proof struct {
	LeafIndex uint64
	LeafCount uint64
	Path      []hash.Hash256
	Peaks     []hash.Hash256
}

// Verify checks the proof against the given root (the range root at
// proof.LeafCount) and the expected leaf digest.
func (p *Proof) Verify(root, leaf hash.Hash256) bool {
	if p.LeafIndex >= p.LeafCount || len(p.Peaks) == 0 {
		return false
	}
	level, offset, ok := mountainOf(p.LeafCount, p.LeafIndex)
	if !ok || level >= uint64(len(p.Peaks)) || uint64(len(p.Path)) != level {
		return false
	}
	cur := leaf
	for i := uint64(0); i < level; i++ {
		if offset&(1<<i) != 0 {
			cur = parentHash(p.Path[i], cur)
		} else {
			cur = parentHash(cur, p.Path[i])
		}
	}
	if cur != p.Peaks[level] {
		return false
	}
	bagged := p.Peaks[0]
	for i := 1; i < len(p.Peaks); i++ {
		bagged = parentHash(p.Peaks[i], bagged)
	}
	return bagged == root
}

// Prover retains every appended leaf so that it can recompute roots at any
// historical size and build inclusion proofs. It is used by storage-side
// indexers and tests, never inside the anchor state.
type Prover struct {
	leaves []hash.Hash256
}

// NewProver creates an empty Prover.
func NewProver() *Prover { return &Prover{} }

// AddLeaf appends a leaf and returns its index.
func (p *Prover) AddLeaf(leaf hash.Hash256) uint64 {
	p.leaves = append(p.leaves, leaf)
	return uint64(len(p.leaves) - 1)
}

// NumLeaves returns the number of appended leaves.
func (p *Prover) NumLeaves() uint64 { return uint64(len(p.leaves)) }

// Leaf returns the leaf digest at the given index.
func (p *Prover) Leaf(index uint64) (hash.Hash256, error) {
	if index >= uint64(len(p.leaves)) {
		return hash.ZeroHash256, errors.Wrapf(ErrLeafOutOfRange, "index = %d, leaves = %d", index, len(p.leaves))
	}
	return p.leaves[index], nil
}

// RootAtSize recomputes the range root over the first size leaves.
func (p *Prover) RootAtSize(size uint64) (hash.Hash256, error) {
	if size > uint64(len(p.leaves)) {
		return hash.ZeroHash256, errors.Wrapf(ErrSizeOutOfRange, "size = %d, leaves = %d", size, len(p.leaves))
	}
	var m CompactMMR
	for _, l := range p.leaves[:size] {
		m.AddLeaf(l)
	}
	return m.Root(), nil
}

// InclusionProof builds a proof for the leaf at index against the current
// range size.
func (p *Prover) InclusionProof(index uint64) (*Proof, error) {
	return p.InclusionProofAtSize(index, uint64(len(p.leaves)))
}

// InclusionProofAtSize builds a proof for the leaf at index against the
// range root at the given historical size.
func (p *Prover) InclusionProofAtSize(index, size uint64) (*Proof, error) {
	if size > uint64(len(p.leaves)) {
		return nil, errors.Wrapf(ErrSizeOutOfRange, "size = %d, leaves = %d", size, len(p.leaves))
	}
	if index >= size {
		return nil, errors.Wrapf(ErrLeafOutOfRange, "index = %d, size = %d", index, size)
	}
	level, offset, ok := mountainOf(size, index)
	if !ok {
		return nil, errors.Wrapf(ErrLeafOutOfRange, "index = %d, size = %d", index, size)
	}
	start := mountainStart(size, level)

	// in-mountain sibling path, bottom-up
	nodes := make([]hash.Hash256, 1<<level)
	copy(nodes, p.leaves[start:start+(1<<level)])
	path := make([]hash.Hash256, 0, level)
	pos := offset
	for l := uint64(0); l < level; l++ {
		path = append(path, nodes[pos^1])
		next := make([]hash.Hash256, len(nodes)/2)
		for i := range next {
			next[i] = parentHash(nodes[2*i], nodes[2*i+1])
		}
		nodes = next
		pos >>= 1
	}

	var m CompactMMR
	for _, l := range p.leaves[:size] {
		m.AddLeaf(l)
	}
	return &Proof{
		LeafIndex: index,
		LeafCount: size,
		Path:      path,
		Peaks:     m.Peaks,
	}, nil
}

// mountainOf locates the mountain (peak level) holding the given leaf in a
// range of the given size, and the leaf's offset within that mountain.
// Mountains are laid out largest first.
func mountainOf(size, index uint64) (level, offset uint64, ok bool) {
	start := uint64(0)
	for b := 63; b >= 0; b-- {
		if size&(1<<uint(b)) == 0 {
			continue
		}
		span := uint64(1) << uint(b)
		if index < start+span {
			return uint64(b), index - start, true
		}
		start += span
	}
	return 0, 0, false
}

// mountainStart returns the index of the first leaf in the mountain at the
// given peak level.
func mountainStart(size, level uint64) uint64 {
	start := uint64(0)
	for b := 63; b >= 0; b-- {
		if size&(1<<uint(b)) == 0 {
			continue
		}
		if uint64(b) == level {
			return start
		}
		start += uint64(1) << uint(b)
	}
	return start
}
