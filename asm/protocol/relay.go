// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

// InterprotoMsg is a typed message relayed from one subprotocol to another
// within the same block transition.
type InterprotoMsg interface {
	DestID() types.SubprotocolID
}

// WithdrawalIntentMsg asks the bridge subprotocol to queue a withdrawal
// extracted from an accepted checkpoint's sidecar.
type WithdrawalIntentMsg struct {
	Amount     uint64
	DestScript []byte
}

// DestID implements InterprotoMsg.
func (WithdrawalIntentMsg) DestID() types.SubprotocolID { return types.BridgeSubprotocolID }

// Relay buffers logs and inter-subprotocol messages for one block
// transition. Messages are delivered to later-processed subprotocols in the
// same block; whatever is still queued when the transition ends is dropped,
// since every subprotocol consumes its inbox during its own turn.
type Relay struct {
	queues map[types.SubprotocolID][]InterprotoMsg
	logs   []types.AsmLogEntry
}

// NewRelay creates an empty relay for one block transition.
func NewRelay() *Relay {
	return &Relay{queues: make(map[types.SubprotocolID][]InterprotoMsg)}
}

// Logs returns all log entries emitted so far, in emission order.
func (r *Relay) Logs() []types.AsmLogEntry { return r.logs }

func (r *Relay) relayMsg(m InterprotoMsg) {
	r.queues[m.DestID()] = append(r.queues[m.DestID()], m)
}

func (r *Relay) takeInbox(id types.SubprotocolID) []InterprotoMsg {
	msgs := r.queues[id]
	delete(r.queues, id)
	return msgs
}

func (r *Relay) emitLog(l types.AsmLogEntry) {
	r.logs = append(r.logs, l)
}

// ExecContext is the per-invocation handle a subprotocol uses to read its
// resolved auxiliary data and inbox, and to emit logs and messages.
type ExecContext struct {
	blockHeight uint64
	blockID     hash.Hash256
	source      types.SubprotocolID
	aux         []AuxPayload
	inbound     []InterprotoMsg
	relay       *Relay
}

// NewExecContext builds the invocation context for one subprotocol. The
// relay hands over (and clears) the subprotocol's inbox.
func NewExecContext(
	relay *Relay,
	id types.SubprotocolID,
	blockHeight uint64,
	blockID hash.Hash256,
	aux []AuxPayload,
) *ExecContext {
	return &ExecContext{
		blockHeight: blockHeight,
		blockID:     blockID,
		source:      id,
		aux:         aux,
		inbound:     relay.takeInbox(id),
		relay:       relay,
	}
}

// BlockHeight returns the height of the block being processed.
func (c *ExecContext) BlockHeight() uint64 { return c.blockHeight }

// BlockID returns the id of the block being processed.
func (c *ExecContext) BlockID() hash.Hash256 { return c.blockID }

// AuxPayloads returns the resolved auxiliary payloads, aligned with the
// subprotocol's declared requests.
func (c *ExecContext) AuxPayloads() []AuxPayload { return c.aux }

// InboundMsgs returns the messages relayed to this subprotocol earlier in
// the same block transition.
func (c *ExecContext) InboundMsgs() []InterprotoMsg { return c.inbound }

// RelayMsg relays a typed message to another subprotocol processed later in
// the same block transition.
func (c *ExecContext) RelayMsg(m InterprotoMsg) { c.relay.relayMsg(m) }

// EmitLog emits a typed log entry attributed to the calling subprotocol.
func (c *ExecContext) EmitLog(kind types.LogKind, payload interface{}) error {
	l, err := types.NewLogEntry(c.source, kind, payload)
	if err != nil {
		return err
	}
	c.relay.emitLog(l)
	return nil
}
