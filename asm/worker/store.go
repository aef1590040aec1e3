// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package worker

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/asm/protocol"
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/db"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

const (
	_anchorStateNS = "AnchorState"
	_anchorMetaNS  = "AnchorMeta"
	_logDigestNS   = "AnchorLogDigest"
)

var (
	_latestKey = []byte("latest")

	// ErrUnsupportedAuxRequest indicates an aux request kind the store cannot serve
	ErrUnsupportedAuxRequest = errors.New("unsupported aux request kind")
)

// Store persists anchor states keyed by block commitment, plus the
// per-height log digests that back the aux-data resolver.
type Store struct {
	kv db.KVStore
}

var _ protocol.AuxResolver = (*Store)(nil)

// NewStore wraps a started KVStore.
func NewStore(kv db.KVStore) *Store { return &Store{kv: kv} }

// GetLatestAsmState loads the most recently stored anchor state, or returns
// false when none has been stored yet.
func (s *Store) GetLatestAsmState() (types.BlockCommitment, *types.AnchorState, bool, error) {
	var bc types.BlockCommitment
	raw, err := s.kv.Get(_anchorMetaNS, _latestKey)
	if err != nil {
		if errors.Cause(err) == db.ErrNotExist {
			return bc, nil, false, nil
		}
		return bc, nil, false, err
	}
	if err := rlp.DecodeBytes(raw, &bc); err != nil {
		return bc, nil, false, errors.Wrap(err, "corrupt latest anchor pointer")
	}
	st, err := s.GetAnchorState(bc)
	if err != nil {
		return bc, nil, false, err
	}
	return bc, st, true, nil
}

// GetAnchorState loads the anchor state stored under the block commitment.
func (s *Store) GetAnchorState(bc types.BlockCommitment) (*types.AnchorState, error) {
	raw, err := s.kv.Get(_anchorStateNS, commitmentKey(bc))
	if err != nil {
		return nil, err
	}
	st := &types.AnchorState{}
	if err := st.Deserialize(raw); err != nil {
		return nil, err
	}
	return st, nil
}

// StoreAnchorState persists the anchor state under the block commitment and
// advances the latest pointer. Stored states are immutable once written.
func (s *Store) StoreAnchorState(bc types.BlockCommitment, st *types.AnchorState) error {
	data, err := st.Serialize()
	if err != nil {
		return err
	}
	if err := s.kv.Put(_anchorStateNS, commitmentKey(bc), data); err != nil {
		return err
	}
	ptr, err := rlp.EncodeToBytes(&bc)
	if err != nil {
		return err
	}
	return s.kv.Put(_anchorMetaNS, _latestKey, ptr)
}

// PutBlockLogDigest indexes one block's log digest by height for later
// range resolution.
func (s *Store) PutBlockLogDigest(height uint64, d hash.Hash256) error {
	return s.kv.Put(_logDigestNS, heightKey(height), d.Bytes())
}

// Resolve implements protocol.AuxResolver. A log-range request returns the
// per-block digests for heights (FromHeight, ToHeight], ascending. Range
// bounds originate from unauthenticated payloads, so a height the index
// has never seen ends the scan with a short payload for the requester's
// own range checks; only storage I/O failures are errors.
func (s *Store) Resolve(req protocol.AuxRequest) (protocol.AuxPayload, error) {
	if req.Kind != protocol.AuxLogRange {
		return protocol.AuxPayload{}, errors.Wrapf(ErrUnsupportedAuxRequest, "kind = %d", req.Kind)
	}
	if req.ToHeight <= req.FromHeight {
		return protocol.AuxPayload{}, nil
	}
	digests := make([]hash.Hash256, 0, req.ToHeight-req.FromHeight)
	for h := req.FromHeight + 1; h <= req.ToHeight; h++ {
		raw, err := s.kv.Get(_logDigestNS, heightKey(h))
		if err != nil {
			if errors.Cause(err) == db.ErrNotExist {
				break
			}
			return protocol.AuxPayload{}, errors.Wrapf(err, "failed to read log digest at height %d", h)
		}
		digests = append(digests, hash.BytesToHash256(raw))
	}
	return protocol.AuxPayload{LogDigests: digests}, nil
}

func commitmentKey(bc types.BlockCommitment) []byte {
	key := make([]byte, 8+hash.HashSize)
	binary.BigEndian.PutUint64(key, bc.Height)
	copy(key[8:], bc.BlockID[:])
	return key
}

func heightKey(height uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, height)
	return key
}
