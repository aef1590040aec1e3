// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package core implements the checkpoint-verifying subprotocol, the primary
// trust anchor of the state machine. Its section state is the verified
// checkpoint tip plus the predicates used to check sequencer signatures and
// checkpoint proofs.
package core

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/crypto/predicate"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// Transaction types dispatched to the core subprotocol.
const (
	// TxTypeCheckpoint submits a signed, proved checkpoint.
	TxTypeCheckpoint uint8 = 1
	// TxTypeAdmin replaces the stored predicates under the admin predicate.
	TxTypeAdmin uint8 = 2
)

// CheckpointTip is the highest verified checkpoint.
type CheckpointTip struct {
	Epoch        uint64
	L1Height     uint64
	L2Commitment hash.Hash256
}

// CheckpointState is the core subprotocol's section content. The verified
// tip only ever advances; the predicates are replaced only through admin
// actions, never by checkpoint processing.
type CheckpointState struct {
	VerifiedTip         CheckpointTip
	SequencerPredicate  predicate.Predicate
	CheckpointPredicate predicate.Predicate
	AdminPredicate      predicate.Predicate
	AdminNonce          uint64
}

// OwnerID returns the id of the subprotocol owning this section type.
func (s *CheckpointState) OwnerID() types.SubprotocolID { return types.CoreSubprotocolID }

// Serialize encodes the state into its canonical byte representation.
func (s *CheckpointState) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(s)
}

// Deserialize decodes the state from its canonical byte representation.
func (s *CheckpointState) Deserialize(data []byte) error {
	if err := rlp.DecodeBytes(data, s); err != nil {
		return errors.Wrap(types.ErrDeserialize, err.Error())
	}
	return nil
}
