// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package core

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/crypto/predicate"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// AdminUpdatePayload replaces the stored sequencer and checkpoint
// predicates. The nonce must advance by exactly one to prevent replay.
type AdminUpdatePayload struct {
	Nonce      uint64
	Sequencer  predicate.Predicate
	Checkpoint predicate.Predicate
}

// SignedAdminUpdate is the wire form of an admin action; the signature
// covers the canonical encoding of the payload under the admin predicate.
type SignedAdminUpdate struct {
	Payload   AdminUpdatePayload
	Signature []byte
}

// DecodeSignedAdminUpdate decodes an admin action from a transaction's
// envelope payload.
func DecodeSignedAdminUpdate(data []byte) (*SignedAdminUpdate, error) {
	var sa SignedAdminUpdate
	if err := rlp.DecodeBytes(data, &sa); err != nil {
		return nil, errors.Wrap(ErrMalformedAdminUpdate, err.Error())
	}
	return &sa, nil
}

// SigningDigest returns the digest the admin signs.
func (p *AdminUpdatePayload) SigningDigest() (hash.Hash256, error) {
	enc, err := rlp.EncodeToBytes(p)
	if err != nil {
		return hash.ZeroHash256, err
	}
	return hash.Hash256b(_adminSigTag, enc), nil
}
