// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"fmt"

	"github.com/alpenlabs/alpen-sub007/asm/types"
)

// AsmError wraps a fatal subprotocol failure with the id that failed. Any
// AsmError aborts the whole block transition; no partial anchor state is
// ever produced.
type AsmError struct {
	Subprotocol types.SubprotocolID
	Err         error
}

// NewAsmError wraps err as a fatal error of the given subprotocol.
func NewAsmError(id types.SubprotocolID, err error) *AsmError {
	return &AsmError{Subprotocol: id, Err: err}
}

func (e *AsmError) Error() string {
	return fmt.Sprintf("subprotocol %d: %v", e.Subprotocol, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *AsmError) Unwrap() error { return e.Err }

// Cause supports pkg/errors.Cause.
func (e *AsmError) Cause() error { return e.Err }

// MismatchedIDError indicates a section was decoded under the wrong
// subprotocol id. This is chain-state corruption or a dispatch bug and is
// always fatal.
type MismatchedIDError struct {
	Expected types.SubprotocolID
	Actual   types.SubprotocolID
}

func (e *MismatchedIDError) Error() string {
	return fmt.Sprintf("mismatched subprotocol id: expected %d, actual %d", e.Expected, e.Actual)
}
