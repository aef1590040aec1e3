// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package predicate

import (
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// schnorrScheme verifies BIP340 Schnorr signatures. The key is the 32-byte
// x-only public key.
type schnorrScheme struct{}

func (schnorrScheme) Name() string { return SchnorrScheme }

func (schnorrScheme) Verify(key []byte, digest hash.Hash256, sig []byte) error {
	pub, err := schnorr.ParsePubKey(key)
	if err != nil {
		return errors.Wrap(ErrMalformedKey, err.Error())
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return errors.Wrap(ErrVerifyFailed, err.Error())
	}
	if !s.Verify(digest[:], pub) {
		return errors.Wrap(ErrVerifyFailed, "schnorr signature mismatch")
	}
	return nil
}
