// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package stf drives one block's anchor-state transition: parse and group
// tagged transactions, resolve auxiliary data, run every registered
// subprotocol in ascending id order, and assemble the next anchor state.
// The computation is pure: all inputs are resolved before it starts, and a
// failure leaves the prior state untouched.
package stf

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/alpenlabs/alpen-sub007/asm/protocol"
	"github.com/alpenlabs/alpen-sub007/asm/tag"
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
	"github.com/alpenlabs/alpen-sub007/pkg/log"
)

// ErrBlockDiscontinuity indicates the block does not extend the anchored
// tip. The worker's caller is responsible for feeding direct children; a
// violation here is fatal for the transition.
var ErrBlockDiscontinuity = errors.New("block does not extend anchored tip")

// Spec is the running specification: the network's envelope magic and the
// closed subprotocol registry.
type Spec struct {
	Magic    []byte
	Registry *protocol.Registry
}

// PreProcessOutput is the parsed, grouped view of one block, plus the
// auxiliary-data requests the subprotocols declared for it.
type PreProcessOutput struct {
	BlockHeight      uint64
	BlockID          hash.Hash256
	Timestamp        uint32
	Bits             uint32
	TxsBySubprotocol map[types.SubprotocolID][]*tag.TxInputRef
	AuxRequests      map[types.SubprotocolID][]protocol.AuxRequest
}

// AsmStfOutput is the result of one successful block transition.
type AsmStfOutput struct {
	State      *types.AnchorState
	Logs       []types.AsmLogEntry
	LogDigest  hash.Hash256
	Commitment types.BlockCommitment
}

// PreProcess parses the block's transactions against the running spec's
// magic and registry. Grouping
// preserves block order within each subprotocol, which is consensus
// critical. Transactions tagged with unregistered ids are parsed and
// dropped without error.
func PreProcess(spec *Spec, prev *types.AnchorState, blk *wire.MsgBlock) (*PreProcessOutput, error) {
	prevID := hash.Hash256(blk.Header.PrevBlock)
	if prevID != prev.ChainView.Pow.LastBlockID {
		return nil, errors.Wrapf(ErrBlockDiscontinuity,
			"block prev = %x, anchored tip = %x", prevID, prev.ChainView.Pow.LastBlockID)
	}

	blockID := hash.Hash256(blk.BlockHash())
	out := &PreProcessOutput{
		BlockHeight:      prev.ChainView.Pow.BlockHeight + 1,
		BlockID:          blockID,
		Timestamp:        uint32(blk.Header.Timestamp.Unix()),
		Bits:             blk.Header.Bits,
		TxsBySubprotocol: make(map[types.SubprotocolID][]*tag.TxInputRef),
		AuxRequests:      make(map[types.SubprotocolID][]protocol.AuxRequest),
	}
	for i, tx := range blk.Transactions {
		t, ok := tag.ParseTag(tx, spec.Magic)
		if !ok {
			continue
		}
		if _, registered := spec.Registry.Find(t.SubprotocolID); !registered {
			log.L().Debug("Dropping tx tagged with unregistered subprotocol.",
				zap.Uint8("subprotocol", uint8(t.SubprotocolID)))
			continue
		}
		out.TxsBySubprotocol[t.SubprotocolID] = append(
			out.TxsBySubprotocol[t.SubprotocolID],
			tag.NewTxInputRef(tx, uint32(i), t),
		)
	}
	for _, id := range spec.Registry.IDs() {
		sp, _ := spec.Registry.Find(id)
		st, err := decodeSectionState(sp, prev)
		if err != nil {
			return nil, err
		}
		if reqs := sp.AuxRequests(st, out.TxsBySubprotocol[id]); len(reqs) > 0 {
			out.AuxRequests[id] = reqs
		}
	}
	return out, nil
}

// ResolveAux resolves every declared auxiliary request through the
// resolver, keeping per-subprotocol request order. Declared log-range
// bounds come from unauthenticated transaction payloads, so they are
// clamped to heights anchored before this block; each subprotocol rejects
// undercovered claims through its own range checks. Only resolver I/O
// failures are process-level errors.
func ResolveAux(pre *PreProcessOutput, resolver protocol.AuxResolver) (map[types.SubprotocolID][]protocol.AuxPayload, error) {
	resolved := make(map[types.SubprotocolID][]protocol.AuxPayload, len(pre.AuxRequests))
	for id, reqs := range pre.AuxRequests {
		payloads := make([]protocol.AuxPayload, 0, len(reqs))
		for _, req := range reqs {
			if req.Kind == protocol.AuxLogRange && req.ToHeight >= pre.BlockHeight {
				req.ToHeight = pre.BlockHeight - 1
			}
			p, err := resolver.Resolve(req)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve aux request for subprotocol %d", id)
			}
			payloads = append(payloads, p)
		}
		resolved[id] = payloads
	}
	return resolved, nil
}

// ComputeTransition runs every registered subprotocol in ascending id order
// against the pre-processed block and assembles the next anchor state. Any
// subprotocol error aborts the whole transition; the prior state is never
// partially updated.
func ComputeTransition(
	spec *Spec,
	prev *types.AnchorState,
	pre *PreProcessOutput,
	aux map[types.SubprotocolID][]protocol.AuxPayload,
) (*AsmStfOutput, error) {
	for _, sec := range prev.Sections {
		if _, ok := spec.Registry.Find(sec.ID); !ok {
			return nil, protocol.NewAsmError(sec.ID, protocol.ErrUnknownSubprotocol)
		}
	}

	next := prev.Clone()
	relay := protocol.NewRelay()
	for _, id := range spec.Registry.IDs() {
		sp, _ := spec.Registry.Find(id)
		st, err := decodeSectionState(sp, prev)
		if err != nil {
			return nil, err
		}
		ctx := protocol.NewExecContext(relay, id, pre.BlockHeight, pre.BlockID, aux[id])
		if err := sp.ProcessTxs(ctx, st, pre.TxsBySubprotocol[id]); err != nil {
			return nil, protocol.NewAsmError(id, err)
		}
		data, err := st.Serialize()
		if err != nil {
			return nil, protocol.NewAsmError(id, err)
		}
		next.UpsertSection(id, data)
	}

	logs := relay.Logs()
	leaf := types.BlockLogDigest(logs)
	next.ChainView.HistoryMMR.AddLeaf(leaf)
	next.ChainView.Pow.ApplyHeader(pre.BlockID, pre.Timestamp, pre.Bits)

	return &AsmStfOutput{
		State:     next,
		Logs:      logs,
		LogDigest: leaf,
		Commitment: types.BlockCommitment{
			Height:  pre.BlockHeight,
			BlockID: pre.BlockID,
		},
	}, nil
}

// decodeSectionState decodes a subprotocol's prior section under its owner's
// codec, or activates it with its initial state when the section does not
// exist yet. A decode failure is chain-state corruption and fatal.
func decodeSectionState(sp protocol.Subprotocol, prev *types.AnchorState) (protocol.SubprotoState, error) {
	data, ok := prev.SectionData(sp.ID())
	if !ok {
		return sp.InitState(), nil
	}
	st := sp.NewState()
	if err := st.Deserialize(data); err != nil {
		return nil, protocol.NewAsmError(sp.ID(), err)
	}
	return st, nil
}
