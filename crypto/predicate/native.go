// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package predicate

import "github.com/pkg/errors"

// nativeScheme accepts exactly the empty proof. It exists so development
// networks can run the pipeline without a prover, and is only available when
// a registry is built with WithNativeProofs.
type nativeScheme struct{}

func (nativeScheme) Name() string { return NativeScheme }

func (nativeScheme) Verify(_, _, proof []byte) error {
	if len(proof) != 0 {
		return errors.Wrap(ErrVerifyFailed, "native scheme accepts only the empty proof")
	}
	return nil
}
