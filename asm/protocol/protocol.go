// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package protocol defines the subprotocol contract of the anchor state
// machine: each registered subprotocol owns one opaque section of the anchor
// state and consumes the base-chain transactions tagged with its id. All
// cross-subprotocol interaction goes through the message relay.
package protocol

import (
	"github.com/alpenlabs/alpen-sub007/asm/tag"
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// SubprotoState is a subprotocol's native section state with its canonical
// codec. A section that fails to deserialize under its owner's codec is a
// protocol bug, not a recoverable condition.
type SubprotoState interface {
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// Subprotocol is one independently versioned state-transition module. A
// subprotocol is invoked exactly once per block transition, with the
// transactions matched to its id (possibly none).
type Subprotocol interface {
	// ID returns the subprotocol's stable id.
	ID() types.SubprotocolID
	// InitState returns the section content at genesis/activation.
	InitState() SubprotoState
	// NewState returns an empty state value for decoding a stored section.
	NewState() SubprotoState
	// AuxRequests declares the auxiliary data the subprotocol needs to
	// process the given transactions against its prior section state,
	// resolved before the transition runs. It must be a pure function of
	// its inputs.
	AuxRequests(st SubprotoState, txs []*tag.TxInputRef) []AuxRequest
	// ProcessTxs advances the section state in place. A returned error is
	// fatal for the whole block transition.
	ProcessTxs(ctx *ExecContext, st SubprotoState, txs []*tag.TxInputRef) error
}

// AuxRequestKind discriminates auxiliary-data requests.
type AuxRequestKind uint8

// AuxLogRange requests the per-block log digests for the half-open L1
// height range (FromHeight, ToHeight].
const AuxLogRange AuxRequestKind = 1

// AuxRequest is one subprotocol-declared auxiliary-data request.
type AuxRequest struct {
	Kind       AuxRequestKind
	FromHeight uint64
	ToHeight   uint64
}

// AuxPayload is the resolved response to one AuxRequest, aligned by index.
type AuxPayload struct {
	LogDigests []hash.Hash256
}

// AuxResolver resolves auxiliary-data requests from historical storage. It
// runs before the transition computation; the transition itself never
// touches external I/O.
type AuxResolver interface {
	Resolve(req AuxRequest) (AuxPayload, error)
}
