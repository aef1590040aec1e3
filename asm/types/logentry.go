// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package types

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// LogKind discriminates the typed payload of an AsmLogEntry.
type LogKind uint16

// Log kinds emitted by the built-in subprotocols.
const (
	LogKindCheckpointUpdate LogKind = iota + 1
	LogKindCheckpointReject
	LogKindDepositProcessed
	LogKindWithdrawalQueued
)

// AsmLogEntry is an append-only record emitted by a subprotocol during one
// block's transition. Logs from one block never reference logs from another.
type AsmLogEntry struct {
	Source SubprotocolID
	Kind   LogKind
	Data   []byte
}

// NewLogEntry builds a log entry with the payload's canonical encoding.
func NewLogEntry(source SubprotocolID, kind LogKind, payload interface{}) (AsmLogEntry, error) {
	data, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return AsmLogEntry{}, err
	}
	return AsmLogEntry{Source: source, Kind: kind, Data: data}, nil
}

// Digest returns the entry's commitment digest.
func (l *AsmLogEntry) Digest() hash.Hash256 {
	var kind [3]byte
	kind[0] = byte(l.Source)
	kind[1] = byte(l.Kind >> 8)
	kind[2] = byte(l.Kind)
	return hash.Hash256b(_logLeafTag, kind[:], l.Data)
}

var (
	_logLeafTag  = []byte("asm.log.v1")
	_logChainTag = []byte("asm.logchain.v1")
)

// BlockLogDigest commits to a block's full ordered list of log entries with
// an order-preserving hash chain. A block with no logs still yields a
// non-zero, well-defined digest.
func BlockLogDigest(logs []AsmLogEntry) hash.Hash256 {
	acc := hash.Hash256b(_logChainTag)
	for i := range logs {
		d := logs[i].Digest()
		acc = hash.Hash256b(acc[:], d[:])
	}
	return acc
}
