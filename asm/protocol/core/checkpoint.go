// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package core

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// OLLogKind discriminates the entries of a checkpoint sidecar's log list.
type OLLogKind uint8

// OLLogWithdrawalIntent marks an L2->L1 withdrawal request extracted from
// the rollup's own logs.
const OLLogWithdrawalIntent OLLogKind = 1

// OLLog is one entry of the checkpoint sidecar's log list.
type OLLog struct {
	Kind OLLogKind
	Data []byte
}

// WithdrawalIntent is the payload of an OLLogWithdrawalIntent entry.
type WithdrawalIntent struct {
	Amount     uint64
	DestScript []byte
}

// CheckpointSidecar carries the rollup-side data accompanying a checkpoint:
// the orchestration-layer state diff and the logs the rollup emitted over
// the checkpointed epoch.
type CheckpointSidecar struct {
	OLStateDiff []byte
	OLLogs      [][]byte
}

// CheckpointPayload is the signed inner container of a checkpoint
// submission.
type CheckpointPayload struct {
	NewTip  CheckpointTip
	Sidecar CheckpointSidecar
	Proof   []byte
}

// SignedCheckpoint is the wire form of a checkpoint submission. The
// signature covers the canonical encoding of the inner payload.
type SignedCheckpoint struct {
	Payload   CheckpointPayload
	Signature []byte
}

var (
	_sigTag      = []byte("asm.checkpoint.sig.v1")
	_claimTag    = []byte("asm.checkpoint.claim.v1")
	_l1RangeTag  = []byte("asm.l1range.v1")
	_adminSigTag = []byte("asm.admin.sig.v1")
)

// DecodeSignedCheckpoint decodes a checkpoint submission from a
// transaction's envelope payload.
func DecodeSignedCheckpoint(data []byte) (*SignedCheckpoint, error) {
	var sc SignedCheckpoint
	if err := rlp.DecodeBytes(data, &sc); err != nil {
		return nil, errors.Wrap(ErrMalformedSignedCheckpoint, err.Error())
	}
	return &sc, nil
}

// Encode returns the canonical encoding of the signed checkpoint.
func (sc *SignedCheckpoint) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(sc)
}

// SigningDigest returns the digest the sequencer signs: the tagged hash of
// the inner payload's canonical encoding.
func (p *CheckpointPayload) SigningDigest() (hash.Hash256, error) {
	enc, err := rlp.EncodeToBytes(p)
	if err != nil {
		return hash.ZeroHash256, err
	}
	return hash.Hash256b(_sigTag, enc), nil
}

// L1RangeCommitment commits to the per-block log digests covered by a
// checkpoint, in ascending height order. An empty range commits to the zero
// digest, which is the expected case when no new L1 blocks were consumed.
func L1RangeCommitment(digests []hash.Hash256) hash.Hash256 {
	if len(digests) == 0 {
		return hash.ZeroHash256
	}
	chunks := make([][]byte, 0, len(digests)+1)
	chunks = append(chunks, _l1RangeTag)
	for i := range digests {
		chunks = append(chunks, digests[i][:])
	}
	return hash.Hash256b(chunks...)
}

// claimData is the full public-input claim of a checkpoint proof. Every
// field is reconstructed from the core subprotocol's own trusted state and
// the height-validated new tip, never from free-form payload bytes.
type claimData struct {
	PrevTip           CheckpointTip
	NewTip            CheckpointTip
	L1RangeCommitment hash.Hash256
}

// claimPublicInput serializes the claim into the proof predicate's public
// input bytes.
func claimPublicInput(prev, next CheckpointTip, rangeCommitment hash.Hash256) ([]byte, error) {
	enc, err := rlp.EncodeToBytes(&claimData{
		PrevTip:           prev,
		NewTip:            next,
		L1RangeCommitment: rangeCommitment,
	})
	if err != nil {
		return nil, err
	}
	d := hash.Hash256b(_claimTag, enc)
	return d.Bytes(), nil
}
