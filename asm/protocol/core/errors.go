// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Checkpoint validation errors. These reject a single checkpoint
// transaction's effect; they never abort the block transition.
var (
	// ErrMalformedSignedCheckpoint indicates the envelope payload does not decode
	ErrMalformedSignedCheckpoint = errors.New("malformed signed checkpoint")
	// ErrInvalidSignature indicates the sequencer signature does not verify
	ErrInvalidSignature = errors.New("invalid checkpoint signature")
	// ErrCheckpointBeyondL1Tip indicates the checkpoint claims base-chain blocks not yet anchored
	ErrCheckpointBeyondL1Tip = errors.New("checkpoint beyond L1 tip")
	// ErrInvalidProof indicates the checkpoint proof does not verify against the claim
	ErrInvalidProof = errors.New("invalid checkpoint proof")
	// ErrAuxMismatch indicates the resolved log-digest range does not cover the claimed heights
	ErrAuxMismatch = errors.New("aux log-digest range mismatch")
	// ErrMalformedAdminUpdate indicates the admin payload does not decode
	ErrMalformedAdminUpdate = errors.New("malformed admin update")
	// ErrInvalidAdminNonce indicates an admin update replay or skip
	ErrInvalidAdminNonce = errors.New("invalid admin update nonce")
)

// InvalidEpochError indicates a checkpoint that skips, repeats, or
// overflows the epoch sequence.
type InvalidEpochError struct {
	Expected uint64
	Actual   uint64
}

func (e *InvalidEpochError) Error() string {
	return fmt.Sprintf("invalid checkpoint epoch: expected %d, actual %d", e.Expected, e.Actual)
}

// InvalidL1BlockHeightError indicates a checkpoint whose claimed final L1
// height does not strictly advance the verified tip.
type InvalidL1BlockHeightError struct {
	Tip    uint64
	Actual uint64
}

func (e *InvalidL1BlockHeightError) Error() string {
	return fmt.Sprintf("invalid checkpoint L1 height: tip %d, actual %d", e.Tip, e.Actual)
}
