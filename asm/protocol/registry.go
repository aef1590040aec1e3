// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/asm/types"
)

var (
	// ErrDuplicateSubprotocol indicates the id is already registered
	ErrDuplicateSubprotocol = errors.New("subprotocol already registered")
	// ErrUnknownSubprotocol indicates no subprotocol is registered under the id
	ErrUnknownSubprotocol = errors.New("unknown subprotocol")
)

// Registry is the closed set of subprotocols in the running specification.
// Registration happens once at startup; the set never changes while the
// state machine runs, which keeps dispatch deterministic and auditable.
type Registry struct {
	subs map[types.SubprotocolID]Subprotocol
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[types.SubprotocolID]Subprotocol)}
}

// Register registers the subprotocol under its unique id.
func (r *Registry) Register(p Subprotocol) error {
	if _, ok := r.subs[p.ID()]; ok {
		return errors.Wrapf(ErrDuplicateSubprotocol, "id = %d", p.ID())
	}
	r.subs[p.ID()] = p
	return nil
}

// Find finds a subprotocol by id.
func (r *Registry) Find(id types.SubprotocolID) (Subprotocol, bool) {
	p, ok := r.subs[id]
	return p, ok
}

// IDs returns all registered ids in ascending order, which is the
// consensus-critical invocation order.
func (r *Registry) IDs() []types.SubprotocolID {
	ids := make([]types.SubprotocolID, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
