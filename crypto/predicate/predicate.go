// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package predicate models the swappable verification capabilities stored in
// subprotocol state: "verify this signature" and "verify this proof". A
// predicate names its scheme and carries the scheme's key material; the
// registry maps scheme names to a closed, configuration-time set of
// verifier implementations.
package predicate

import (
	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// Scheme names.
const (
	SchnorrScheme = "schnorr"
	Groth16Scheme = "groth16"
	NativeScheme  = "native"
)

var (
	// ErrUnknownScheme indicates the predicate names a scheme the registry does not carry
	ErrUnknownScheme = errors.New("unknown predicate scheme")
	// ErrVerifyFailed indicates the signature or proof did not verify
	ErrVerifyFailed = errors.New("predicate verification failed")
	// ErrMalformedKey indicates the predicate's key material cannot be parsed
	ErrMalformedKey = errors.New("malformed predicate key")
)

// Predicate is a named verification capability plus its key material. It is
// stored in subprotocol state and replaced only through admin actions.
type Predicate struct {
	Scheme string
	Key    []byte
}

// SigScheme verifies a signature over a 32-byte message digest.
type SigScheme interface {
	Name() string
	Verify(key []byte, digest hash.Hash256, sig []byte) error
}

// ProofScheme verifies a proof against serialized public inputs.
type ProofScheme interface {
	Name() string
	Verify(key, publicInput, proof []byte) error
}

// Registry is the closed set of verification schemes available to the
// running node. The set is fixed at construction; predicates referencing
// schemes outside it fail verification.
type Registry struct {
	sig   map[string]SigScheme
	proof map[string]ProofScheme
}

// Option customizes registry construction.
type Option func(*Registry)

// WithNativeProofs enables the empty-proof development scheme. It is never
// part of the default set.
func WithNativeProofs() Option {
	return func(r *Registry) {
		r.proof[NativeScheme] = nativeScheme{}
	}
}

// NewRegistry creates a registry with the production schemes, plus any
// opted-in extras.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sig: map[string]SigScheme{
			SchnorrScheme: schnorrScheme{},
		},
		proof: map[string]ProofScheme{
			Groth16Scheme: groth16Scheme{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VerifySignature checks sig over digest under the predicate.
func (r *Registry) VerifySignature(p Predicate, digest hash.Hash256, sig []byte) error {
	s, ok := r.sig[p.Scheme]
	if !ok {
		return errors.Wrapf(ErrUnknownScheme, "signature scheme = %s", p.Scheme)
	}
	return s.Verify(p.Key, digest, sig)
}

// VerifyClaimWitness checks the proof against the serialized public inputs
// under the predicate.
func (r *Registry) VerifyClaimWitness(p Predicate, publicInput, proof []byte) error {
	s, ok := r.proof[p.Scheme]
	if !ok {
		return errors.Wrapf(ErrUnknownScheme, "proof scheme = %s", p.Scheme)
	}
	return s.Verify(p.Key, publicInput, proof)
}
