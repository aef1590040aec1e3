// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package tag extracts the protocol tag envelope from base-chain
// transactions. The envelope is an OP_RETURN data push of the form
// [magic][subprotocol id: 1 byte][tx type: 1 byte][aux data: variable]
// carried in the transaction's first data-carrier output. Transactions
// without the envelope are simply not protocol transactions.
package tag

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/alpenlabs/alpen-sub007/asm/types"
)

// Tag is the parsed protocol envelope of one transaction.
type Tag struct {
	SubprotocolID types.SubprotocolID
	TxType        uint8
	AuxData       []byte
}

// TxInputRef is a borrowed view over one base-chain transaction plus its
// parsed tag, valid for the duration of one block transition.
type TxInputRef struct {
	tx       *wire.MsgTx
	blockIdx uint32
	tag      Tag
}

// NewTxInputRef wraps a transaction and its parsed tag.
func NewTxInputRef(tx *wire.MsgTx, blockIdx uint32, t Tag) *TxInputRef {
	return &TxInputRef{tx: tx, blockIdx: blockIdx, tag: t}
}

// Tx returns the underlying transaction.
func (r *TxInputRef) Tx() *wire.MsgTx { return r.tx }

// BlockIndex returns the transaction's index within its block.
func (r *TxInputRef) BlockIndex() uint32 { return r.blockIdx }

// SubprotocolID returns the tagged subprotocol id.
func (r *TxInputRef) SubprotocolID() types.SubprotocolID { return r.tag.SubprotocolID }

// TxType returns the tagged transaction-type discriminant.
func (r *TxInputRef) TxType() uint8 { return r.tag.TxType }

// AuxData returns the tag's auxiliary payload. The owning subprotocol is
// responsible for validating its structure.
func (r *TxInputRef) AuxData() []byte { return r.tag.AuxData }

// ParseTag extracts the protocol tag from a transaction, or returns false if
// the transaction carries no well-formed envelope with the given magic
// bytes. It never errors: untagged transactions are the common case and are
// silently skipped by the caller.
func ParseTag(tx *wire.MsgTx, magic []byte) (Tag, bool) {
	for _, out := range tx.TxOut {
		script := out.PkScript
		if len(script) == 0 || script[0] != txscript.OP_RETURN {
			continue
		}
		// first data-carrier output is the designated envelope; a
		// non-matching envelope does not fall through to later outputs
		pushes, err := txscript.PushedData(script)
		if err != nil || len(pushes) == 0 {
			return Tag{}, false
		}
		payload := pushes[0]
		if len(payload) < len(magic)+2 || !bytes.HasPrefix(payload, magic) {
			return Tag{}, false
		}
		rest := payload[len(magic):]
		aux := make([]byte, len(rest)-2)
		copy(aux, rest[2:])
		return Tag{
			SubprotocolID: types.SubprotocolID(rest[0]),
			TxType:        rest[1],
			AuxData:       aux,
		}, true
	}
	return Tag{}, false
}
