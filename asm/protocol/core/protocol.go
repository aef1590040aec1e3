// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package core

import (
	"math"

	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/zap"

	"github.com/alpenlabs/alpen-sub007/asm/protocol"
	"github.com/alpenlabs/alpen-sub007/asm/tag"
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/crypto/predicate"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
	"github.com/alpenlabs/alpen-sub007/pkg/log"
)

// CheckpointUpdateLog is the payload of a LogKindCheckpointUpdate entry,
// emitted once per accepted checkpoint so the surrounding system can track
// rollup finality.
type CheckpointUpdateLog struct {
	TxIndex      uint32
	Epoch        uint64
	L1Height     uint64
	L2Commitment hash.Hash256
}

// CheckpointRejectLog is the payload of a LogKindCheckpointReject entry,
// emitted when a single checkpoint submission is rejected. Rejection is
// local to the submission; the block transition still succeeds.
type CheckpointRejectLog struct {
	TxIndex uint32
	Reason  string
}

// Params are the genesis parameters of the core subprotocol.
type Params struct {
	GenesisTip CheckpointTip
	Sequencer  predicate.Predicate
	Checkpoint predicate.Predicate
	Admin      predicate.Predicate
}

// Protocol is the checkpoint-verifying subprotocol.
type Protocol struct {
	params Params
	preds  *predicate.Registry
}

var _ protocol.Subprotocol = (*Protocol)(nil)

// New creates the core subprotocol with its genesis parameters and the
// node's predicate registry.
func New(params Params, preds *predicate.Registry) *Protocol {
	return &Protocol{params: params, preds: preds}
}

// ID implements protocol.Subprotocol.
func (p *Protocol) ID() types.SubprotocolID { return types.CoreSubprotocolID }

// InitState implements protocol.Subprotocol.
func (p *Protocol) InitState() protocol.SubprotoState {
	return &CheckpointState{
		VerifiedTip:         p.params.GenesisTip,
		SequencerPredicate:  p.params.Sequencer,
		CheckpointPredicate: p.params.Checkpoint,
		AdminPredicate:      p.params.Admin,
	}
}

// NewState implements protocol.Subprotocol.
func (p *Protocol) NewState() protocol.SubprotoState { return &CheckpointState{} }

// AuxRequests declares one log-digest range request per decodable checkpoint
// submission. Ranges chain: each submission's lower bound is the previous
// submission's claimed height, starting from the verified tip. The declared
// bounds come from unauthenticated payloads; the driver clamps them to
// anchored heights, and verifyCheckpoint rejects any claim the resolved
// digests do not cover.
func (p *Protocol) AuxRequests(st protocol.SubprotoState, txs []*tag.TxInputRef) []protocol.AuxRequest {
	cs, ok := st.(*CheckpointState)
	if !ok {
		return nil
	}
	var reqs []protocol.AuxRequest
	prevHeight := cs.VerifiedTip.L1Height
	for _, tx := range txs {
		if tx.TxType() != TxTypeCheckpoint {
			continue
		}
		sc, err := DecodeSignedCheckpoint(tx.AuxData())
		if err != nil {
			continue
		}
		reqs = append(reqs, protocol.AuxRequest{
			Kind:       protocol.AuxLogRange,
			FromHeight: prevHeight,
			ToHeight:   sc.Payload.NewTip.L1Height,
		})
		prevHeight = sc.Payload.NewTip.L1Height
	}
	return reqs
}

// ProcessTxs implements protocol.Subprotocol. Checkpoint rejections are
// tx-local: the offending submission's effect is dropped and a reject log
// is emitted, but processing continues.
func (p *Protocol) ProcessTxs(ctx *protocol.ExecContext, st protocol.SubprotoState, txs []*tag.TxInputRef) error {
	cs, ok := st.(*CheckpointState)
	if !ok {
		return &protocol.MismatchedIDError{Expected: types.CoreSubprotocolID, Actual: sectionIDOf(st)}
	}
	aux := ctx.AuxPayloads()
	auxIdx := 0
	auxLowBound := cs.VerifiedTip.L1Height
	for _, tx := range txs {
		switch tx.TxType() {
		case TxTypeCheckpoint:
			sc, err := DecodeSignedCheckpoint(tx.AuxData())
			if err != nil {
				if lerr := p.rejectCheckpoint(ctx, tx.BlockIndex(), err); lerr != nil {
					return lerr
				}
				continue
			}
			var payload protocol.AuxPayload
			if auxIdx < len(aux) {
				payload = aux[auxIdx]
			}
			requestFrom := auxLowBound
			auxIdx++
			auxLowBound = sc.Payload.NewTip.L1Height

			if err := p.verifyCheckpoint(ctx, cs, sc, requestFrom, payload.LogDigests); err != nil {
				if lerr := p.rejectCheckpoint(ctx, tx.BlockIndex(), err); lerr != nil {
					return lerr
				}
				continue
			}
			if err := p.acceptCheckpoint(ctx, cs, sc, tx.BlockIndex()); err != nil {
				return err
			}
		case TxTypeAdmin:
			p.processAdmin(cs, tx)
		default:
			log.L().Debug("Skipping unknown core tx type.",
				zap.Uint8("txType", tx.TxType()),
				zap.Uint32("txIndex", tx.BlockIndex()))
		}
	}
	return nil
}

// verifyCheckpoint runs the full validation pipeline against the trusted
// state: signature, epoch progression, L1 height progression, log-range
// commitment, and proof verification.
func (p *Protocol) verifyCheckpoint(
	ctx *protocol.ExecContext,
	cs *CheckpointState,
	sc *SignedCheckpoint,
	requestFrom uint64,
	digests []hash.Hash256,
) error {
	digest, err := sc.Payload.SigningDigest()
	if err != nil {
		return ErrMalformedSignedCheckpoint
	}
	if err := p.preds.VerifySignature(cs.SequencerPredicate, digest, sc.Signature); err != nil {
		return ErrInvalidSignature
	}

	tip := cs.VerifiedTip
	newTip := sc.Payload.NewTip
	// unsigned progression checks; overflow can never wrap into validity
	if tip.Epoch == math.MaxUint64 || newTip.Epoch != tip.Epoch+1 {
		expected := tip.Epoch
		if tip.Epoch < math.MaxUint64 {
			expected = tip.Epoch + 1
		}
		return &InvalidEpochError{Expected: expected, Actual: newTip.Epoch}
	}
	if newTip.L1Height <= tip.L1Height {
		return &InvalidL1BlockHeightError{Tip: tip.L1Height, Actual: newTip.L1Height}
	}
	if newTip.L1Height > ctx.BlockHeight() {
		return ErrCheckpointBeyondL1Tip
	}

	// the commitment covers only heights anchored before this block; a
	// claim at the current block's height excludes the in-flight digest,
	// which cannot exist yet
	coveredTo := newTip.L1Height
	if coveredTo >= ctx.BlockHeight() {
		coveredTo = ctx.BlockHeight() - 1
	}
	// the resolved aux digests must cover exactly (tip, coveredTo]; a
	// preceding rejected submission shifts the chained ranges and lands here
	if requestFrom != tip.L1Height || uint64(len(digests)) != coveredTo-tip.L1Height {
		return ErrAuxMismatch
	}
	commitment := L1RangeCommitment(digests)

	publicInput, err := claimPublicInput(tip, newTip, commitment)
	if err != nil {
		return ErrInvalidProof
	}
	if err := p.preds.VerifyClaimWitness(cs.CheckpointPredicate, publicInput, sc.Payload.Proof); err != nil {
		return ErrInvalidProof
	}
	return nil
}

// acceptCheckpoint advances the verified tip, surfaces the acknowledgement
// log, and relays the sidecar's withdrawal intents to the bridge.
func (p *Protocol) acceptCheckpoint(
	ctx *protocol.ExecContext,
	cs *CheckpointState,
	sc *SignedCheckpoint,
	txIndex uint32,
) error {
	cs.VerifiedTip = sc.Payload.NewTip
	if err := ctx.EmitLog(types.LogKindCheckpointUpdate, &CheckpointUpdateLog{
		TxIndex:      txIndex,
		Epoch:        cs.VerifiedTip.Epoch,
		L1Height:     cs.VerifiedTip.L1Height,
		L2Commitment: cs.VerifiedTip.L2Commitment,
	}); err != nil {
		return err
	}
	for _, raw := range sc.Payload.Sidecar.OLLogs {
		var ol OLLog
		if err := rlp.DecodeBytes(raw, &ol); err != nil {
			log.L().Warn("Skipping undecodable sidecar log.", zap.Error(err), zap.Uint32("txIndex", txIndex))
			continue
		}
		if ol.Kind != OLLogWithdrawalIntent {
			continue
		}
		var wi WithdrawalIntent
		if err := rlp.DecodeBytes(ol.Data, &wi); err != nil {
			log.L().Warn("Skipping malformed withdrawal intent.", zap.Error(err), zap.Uint32("txIndex", txIndex))
			continue
		}
		ctx.RelayMsg(protocol.WithdrawalIntentMsg{Amount: wi.Amount, DestScript: wi.DestScript})
	}
	log.L().Info("Advanced verified checkpoint tip.",
		zap.Uint64("epoch", cs.VerifiedTip.Epoch),
		zap.Uint64("l1Height", cs.VerifiedTip.L1Height))
	return nil
}

func (p *Protocol) rejectCheckpoint(ctx *protocol.ExecContext, txIndex uint32, reason error) error {
	log.L().Info("Rejected checkpoint submission.",
		zap.Uint32("txIndex", txIndex),
		zap.String("reason", reason.Error()))
	return ctx.EmitLog(types.LogKindCheckpointReject, &CheckpointRejectLog{
		TxIndex: txIndex,
		Reason:  reason.Error(),
	})
}

// processAdmin applies a predicate-replacement action. Failures are
// tx-local and leave no trace in consensus state.
func (p *Protocol) processAdmin(cs *CheckpointState, tx *tag.TxInputRef) {
	sa, err := DecodeSignedAdminUpdate(tx.AuxData())
	if err != nil {
		log.L().Debug("Skipping malformed admin update.", zap.Error(err))
		return
	}
	digest, err := sa.Payload.SigningDigest()
	if err != nil {
		log.L().Debug("Skipping unsignable admin update.", zap.Error(err))
		return
	}
	if err := p.preds.VerifySignature(cs.AdminPredicate, digest, sa.Signature); err != nil {
		log.L().Warn("Rejected admin update signature.", zap.Error(err))
		return
	}
	if sa.Payload.Nonce != cs.AdminNonce+1 {
		log.L().Warn("Rejected admin update nonce.",
			zap.Uint64("expected", cs.AdminNonce+1),
			zap.Uint64("actual", sa.Payload.Nonce))
		return
	}
	cs.AdminNonce = sa.Payload.Nonce
	cs.SequencerPredicate = sa.Payload.Sequencer
	cs.CheckpointPredicate = sa.Payload.Checkpoint
	log.L().Info("Replaced core predicates.", zap.Uint64("nonce", cs.AdminNonce))
}

// sectionIDOf reports the owning id of a mis-dispatched state value, for
// error reporting only.
func sectionIDOf(st protocol.SubprotoState) types.SubprotocolID {
	type ider interface{ OwnerID() types.SubprotocolID }
	if s, ok := st.(ider); ok {
		return s.OwnerID()
	}
	return 0
}
