// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package bridge implements the deposit/withdrawal subprotocol's dispatcher
// interface. Deposits arrive as tagged base-chain transactions; withdrawal
// intents arrive over the message relay from accepted checkpoints. The
// Bitcoin-script side of the bridge lives outside the state machine.
package bridge

import (
	"math"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/alpenlabs/alpen-sub007/asm/protocol"
	"github.com/alpenlabs/alpen-sub007/asm/tag"
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/pkg/log"
)

// TxTypeDeposit credits a bridge deposit.
const TxTypeDeposit uint8 = 1

// DepositInfo is the envelope aux payload of a deposit transaction.
type DepositInfo struct {
	Amount   uint64
	DestAddr []byte
}

// Withdrawal is one queued L2->L1 withdrawal.
type Withdrawal struct {
	ID         uint64
	Amount     uint64
	DestScript []byte
}

// BridgeState is the bridge subprotocol's section content.
type BridgeState struct {
	TotalDeposited     uint64
	NextWithdrawalID   uint64
	PendingWithdrawals []Withdrawal
}

// OwnerID returns the id of the subprotocol owning this section type.
func (s *BridgeState) OwnerID() types.SubprotocolID { return types.BridgeSubprotocolID }

// Serialize encodes the state into its canonical byte representation.
func (s *BridgeState) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(s)
}

// Deserialize decodes the state from its canonical byte representation.
func (s *BridgeState) Deserialize(data []byte) error {
	if err := rlp.DecodeBytes(data, s); err != nil {
		return errors.Wrap(types.ErrDeserialize, err.Error())
	}
	return nil
}

// DepositLog is the payload of a LogKindDepositProcessed entry.
type DepositLog struct {
	TxIndex uint32
	Amount  uint64
}

// WithdrawalQueuedLog is the payload of a LogKindWithdrawalQueued entry.
type WithdrawalQueuedLog struct {
	ID         uint64
	Amount     uint64
	DestScript []byte
}

// Protocol is the bridge subprotocol.
type Protocol struct{}

var _ protocol.Subprotocol = (*Protocol)(nil)

// New creates the bridge subprotocol.
func New() *Protocol { return &Protocol{} }

// ID implements protocol.Subprotocol.
func (p *Protocol) ID() types.SubprotocolID { return types.BridgeSubprotocolID }

// InitState implements protocol.Subprotocol.
func (p *Protocol) InitState() protocol.SubprotoState { return &BridgeState{} }

// NewState implements protocol.Subprotocol.
func (p *Protocol) NewState() protocol.SubprotoState { return &BridgeState{} }

// AuxRequests implements protocol.Subprotocol; the bridge needs no
// auxiliary data.
func (p *Protocol) AuxRequests(_ protocol.SubprotoState, _ []*tag.TxInputRef) []protocol.AuxRequest {
	return nil
}

// ProcessTxs implements protocol.Subprotocol.
func (p *Protocol) ProcessTxs(ctx *protocol.ExecContext, st protocol.SubprotoState, txs []*tag.TxInputRef) error {
	bs, ok := st.(*BridgeState)
	if !ok {
		return &protocol.MismatchedIDError{Expected: types.BridgeSubprotocolID}
	}
	for _, tx := range txs {
		if tx.TxType() != TxTypeDeposit {
			log.L().Debug("Skipping unknown bridge tx type.",
				zap.Uint8("txType", tx.TxType()),
				zap.Uint32("txIndex", tx.BlockIndex()))
			continue
		}
		var info DepositInfo
		if err := rlp.DecodeBytes(tx.AuxData(), &info); err != nil {
			log.L().Debug("Skipping malformed deposit.", zap.Error(err), zap.Uint32("txIndex", tx.BlockIndex()))
			continue
		}
		if info.Amount > math.MaxUint64-bs.TotalDeposited {
			log.L().Warn("Skipping deposit overflowing bridge balance.", zap.Uint32("txIndex", tx.BlockIndex()))
			continue
		}
		bs.TotalDeposited += info.Amount
		if err := ctx.EmitLog(types.LogKindDepositProcessed, &DepositLog{
			TxIndex: tx.BlockIndex(),
			Amount:  info.Amount,
		}); err != nil {
			return err
		}
	}
	for _, m := range ctx.InboundMsgs() {
		wi, ok := m.(protocol.WithdrawalIntentMsg)
		if !ok {
			continue
		}
		w := Withdrawal{
			ID:         bs.NextWithdrawalID,
			Amount:     wi.Amount,
			DestScript: wi.DestScript,
		}
		bs.NextWithdrawalID++
		bs.PendingWithdrawals = append(bs.PendingWithdrawals, w)
		if err := ctx.EmitLog(types.LogKindWithdrawalQueued, &WithdrawalQueuedLog{
			ID:         w.ID,
			Amount:     w.Amount,
			DestScript: w.DestScript,
		}); err != nil {
			return err
		}
	}
	return nil
}
