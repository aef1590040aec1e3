// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package predicate

import (
	"bytes"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// groth16Scheme verifies Groth16 proofs over BN254. The key is the
// serialized verifying key; the public input is the 32-byte claim digest,
// split into two field elements (high half first) to fit the scalar field.
type groth16Scheme struct{}

func (groth16Scheme) Name() string { return Groth16Scheme }

func (groth16Scheme) Verify(key, publicInput, proof []byte) error {
	if len(publicInput) != hash.HashSize {
		return errors.Wrapf(ErrVerifyFailed, "public input must be %d bytes, got %d", hash.HashSize, len(publicInput))
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(key)); err != nil {
		return errors.Wrap(ErrMalformedKey, err.Error())
	}
	pf := groth16.NewProof(ecc.BN254)
	if _, err := pf.ReadFrom(bytes.NewReader(proof)); err != nil {
		return errors.Wrap(ErrVerifyFailed, err.Error())
	}
	w, err := claimWitness(publicInput)
	if err != nil {
		return err
	}
	if err := groth16.Verify(pf, vk, w); err != nil {
		return errors.Wrap(ErrVerifyFailed, err.Error())
	}
	return nil
}

func claimWitness(publicInput []byte) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, errors.Wrap(ErrVerifyFailed, err.Error())
	}
	vals := make(chan any, 2)
	vals <- new(big.Int).SetBytes(publicInput[:hash.HashSize/2])
	vals <- new(big.Int).SetBytes(publicInput[hash.HashSize/2:])
	close(vals)
	if err := w.Fill(2, 0, vals); err != nil {
		return nil, errors.Wrap(ErrVerifyFailed, err.Error())
	}
	return w, nil
}
