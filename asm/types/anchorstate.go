// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package types defines the anchor-state model: the consensus-relevant state
// the anchor state machine carries from one base-chain block to the next.
package types

import (
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/asm/mmr"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// SubprotocolID identifies one subprotocol's namespace, stable across the
// chain's lifetime.
type SubprotocolID uint8

// Registered subprotocol ids. Processing order is ascending id.
const (
	CoreSubprotocolID   SubprotocolID = 1
	BridgeSubprotocolID SubprotocolID = 2
)

// TimestampWindow is the number of recent header timestamps retained in the
// PoW bookkeeping, matching Bitcoin's median-time-past window.
const TimestampWindow = 11

var (
	// ErrDeserialize indicates a failure to decode a serialized state
	ErrDeserialize = errors.New("failed to deserialize state")
)

// SectionState is one subprotocol's slot in the anchor state. Data is opaque
// to everyone except the owning subprotocol.
type SectionState struct {
	ID   SubprotocolID
	Data []byte
}

// PowState is the chain-validity bookkeeping over base-chain headers.
type PowState struct {
	BlockHeight      uint64
	LastBlockID      hash.Hash256
	Bits             uint32
	RecentTimestamps []uint32
}

// ApplyHeader advances the PoW bookkeeping by one accepted header.
func (p *PowState) ApplyHeader(blockID hash.Hash256, timestamp, bits uint32) {
	p.BlockHeight++
	p.LastBlockID = blockID
	p.Bits = bits
	p.RecentTimestamps = append(p.RecentTimestamps, timestamp)
	if len(p.RecentTimestamps) > TimestampWindow {
		p.RecentTimestamps = p.RecentTimestamps[len(p.RecentTimestamps)-TimestampWindow:]
	}
}

// Clone returns a deep copy.
func (p *PowState) Clone() PowState {
	ts := make([]uint32, len(p.RecentTimestamps))
	copy(ts, p.RecentTimestamps)
	return PowState{
		BlockHeight:      p.BlockHeight,
		LastBlockID:      p.LastBlockID,
		Bits:             p.Bits,
		RecentTimestamps: ts,
	}
}

// ChainView bundles the PoW bookkeeping with the compact history commitment.
type ChainView struct {
	Pow        PowState
	HistoryMMR mmr.CompactMMR
}

// AnchorState is the full consensus-relevant state at a given base-chain
// block. It is created once at genesis and afterwards only ever replaced
// wholesale by the state transition, never mutated in place.
type AnchorState struct {
	ChainView ChainView
	Sections  []SectionState
}

// NewGenesisState constructs the anchor state at genesis: empty sections and
// a zero-leaf history commitment over the configured PoW seed.
func NewGenesisState(pow PowState) *AnchorState {
	return &AnchorState{
		ChainView: ChainView{Pow: pow},
		Sections:  []SectionState{},
	}
}

// SectionData returns the serialized section owned by the given subprotocol.
func (s *AnchorState) SectionData(id SubprotocolID) ([]byte, bool) {
	i := sort.Search(len(s.Sections), func(i int) bool { return s.Sections[i].ID >= id })
	if i < len(s.Sections) && s.Sections[i].ID == id {
		return s.Sections[i].Data, true
	}
	return nil, false
}

// UpsertSection sets the section owned by the given subprotocol, keeping the
// sections sorted ascending by id with at most one entry per id.
func (s *AnchorState) UpsertSection(id SubprotocolID, data []byte) {
	i := sort.Search(len(s.Sections), func(i int) bool { return s.Sections[i].ID >= id })
	if i < len(s.Sections) && s.Sections[i].ID == id {
		s.Sections[i].Data = data
		return
	}
	s.Sections = append(s.Sections, SectionState{})
	copy(s.Sections[i+1:], s.Sections[i:])
	s.Sections[i] = SectionState{ID: id, Data: data}
}

// Clone returns a deep copy of the anchor state.
func (s *AnchorState) Clone() *AnchorState {
	sections := make([]SectionState, len(s.Sections))
	for i, sec := range s.Sections {
		data := make([]byte, len(sec.Data))
		copy(data, sec.Data)
		sections[i] = SectionState{ID: sec.ID, Data: data}
	}
	return &AnchorState{
		ChainView: ChainView{
			Pow:        s.ChainView.Pow.Clone(),
			HistoryMMR: s.ChainView.HistoryMMR.Clone(),
		},
		Sections: sections,
	}
}

// Serialize encodes the anchor state into its canonical byte representation.
func (s *AnchorState) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(s)
}

// Deserialize decodes the anchor state from its canonical byte representation.
func (s *AnchorState) Deserialize(data []byte) error {
	if err := rlp.DecodeBytes(data, s); err != nil {
		return errors.Wrap(ErrDeserialize, err.Error())
	}
	return nil
}

// BlockCommitment identifies one anchored base-chain block.
type BlockCommitment struct {
	Height  uint64
	BlockID hash.Hash256
}
