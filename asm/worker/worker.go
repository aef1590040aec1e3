// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package worker hosts the anchor state machine: it owns the single current
// anchor state, bootstraps genesis, and advances the state once per new
// base-chain block, persisting each result before exposing it.
package worker

import (
	"context"
	"strconv"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/alpenlabs/alpen-sub007/asm/stf"
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
	"github.com/alpenlabs/alpen-sub007/pkg/lifecycle"
	"github.com/alpenlabs/alpen-sub007/pkg/log"
)

var (
	_blocksMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asm_blocks_processed_total",
		Help: "anchor state machine block transition metrics.",
	}, []string{"status"})
	_txsMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asm_txs_dispatched_total",
		Help: "tagged transactions dispatched per subprotocol.",
	}, []string{"subprotocol"})
	_checkpointsMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asm_checkpoints_total",
		Help: "checkpoint submissions by outcome.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(_blocksMtc)
	prometheus.MustRegister(_txsMtc)
	prometheus.MustRegister(_checkpointsMtc)
}

// ErrWorkerNotReady indicates the worker has not been started
var ErrWorkerNotReady = errors.New("worker is not started")

// GenesisParams seed the chain view when no anchor state exists yet.
type GenesisParams struct {
	L1Height  uint64
	BlockID   hash.Hash256
	Bits      uint32
	Timestamp uint32
}

// BlockSource supplies base-chain blocks in parent-first order. Reorg
// detection is the supplier's concern.
type BlockSource interface {
	Blocks() <-chan *wire.MsgBlock
}

// AsmWorker owns the current anchor state with single-writer discipline:
// transitions are serialized under one lock, and the in-memory state only
// advances after the new state is durably persisted.
type AsmWorker struct {
	lifecycle.Readiness
	mu      sync.Mutex
	spec    *stf.Spec
	store   *Store
	genesis GenesisParams
	state   *types.AnchorState
	tip     types.BlockCommitment
}

// New creates a worker over a started store.
func New(spec *stf.Spec, store *Store, genesis GenesisParams) *AsmWorker {
	return &AsmWorker{
		spec:    spec,
		store:   store,
		genesis: genesis,
	}
}

// Start bootstraps the worker's state and marks it ready.
func (w *AsmWorker) Start(_ context.Context) error {
	if err := w.LoadLatestOrCreateGenesis(); err != nil {
		return err
	}
	return w.TurnOn()
}

// Stop marks the worker not ready. In-flight transitions complete; no new
// ones are accepted.
func (w *AsmWorker) Stop(_ context.Context) error {
	return w.TurnOff()
}

// LoadLatestOrCreateGenesis loads the most recent persisted anchor state
// or, when none exists, constructs and persists the genesis state. The
// bootstrap is idempotent: repeating it reloads rather than re-creates.
func (w *AsmWorker) LoadLatestOrCreateGenesis() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	bc, st, ok, err := w.store.GetLatestAsmState()
	if err != nil {
		return errors.Wrap(err, "failed to load latest anchor state")
	}
	if ok {
		w.state, w.tip = st, bc
		log.L().Info("Loaded anchor state.",
			zap.Uint64("height", bc.Height),
			zap.String("blockID", bc.BlockID.Hex()))
		return nil
	}

	pow := types.PowState{
		BlockHeight:      w.genesis.L1Height,
		LastBlockID:      w.genesis.BlockID,
		Bits:             w.genesis.Bits,
		RecentTimestamps: []uint32{w.genesis.Timestamp},
	}
	genesis := types.NewGenesisState(pow)
	commitment := types.BlockCommitment{Height: w.genesis.L1Height, BlockID: w.genesis.BlockID}
	if err := w.store.StoreAnchorState(commitment, genesis); err != nil {
		return errors.Wrap(err, "failed to persist genesis anchor state")
	}
	w.state, w.tip = genesis, commitment
	log.L().Info("Created genesis anchor state.", zap.Uint64("height", commitment.Height))
	return nil
}

// Transition advances the anchor state by one block. The caller must feed
// the direct child of the anchored tip. On any error the current state is
// unchanged; storage failures halt the worker's progress rather than skip.
func (w *AsmWorker) Transition(_ context.Context, blk *wire.MsgBlock) (*stf.AsmStfOutput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.IsReady() {
		return nil, ErrWorkerNotReady
	}

	pre, err := stf.PreProcess(w.spec, w.state, blk)
	if err != nil {
		_blocksMtc.WithLabelValues("failure").Inc()
		return nil, err
	}
	aux, err := stf.ResolveAux(pre, w.store)
	if err != nil {
		_blocksMtc.WithLabelValues("failure").Inc()
		return nil, err
	}
	out, err := stf.ComputeTransition(w.spec, w.state, pre, aux)
	if err != nil {
		_blocksMtc.WithLabelValues("failure").Inc()
		return nil, err
	}
	if err := w.persistAndAdvance(out); err != nil {
		_blocksMtc.WithLabelValues("failure").Inc()
		return nil, err
	}

	for id, txs := range pre.TxsBySubprotocol {
		_txsMtc.WithLabelValues(strconv.Itoa(int(id))).Add(float64(len(txs)))
	}
	for i := range out.Logs {
		switch out.Logs[i].Kind {
		case types.LogKindCheckpointUpdate:
			_checkpointsMtc.WithLabelValues("accepted").Inc()
		case types.LogKindCheckpointReject:
			_checkpointsMtc.WithLabelValues("rejected").Inc()
		}
	}
	_blocksMtc.WithLabelValues("success").Inc()
	log.L().Info("Anchored block.",
		zap.Uint64("height", out.Commitment.Height),
		zap.String("blockID", out.Commitment.BlockID.Hex()),
		zap.Int("logs", len(out.Logs)))
	return out, nil
}

// UpdateAnchorState persists a transition result and advances the worker's
// current state. The in-memory pointer moves only after persistence has
// durably succeeded.
func (w *AsmWorker) UpdateAnchorState(newState *types.AnchorState, bc types.BlockCommitment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.store.StoreAnchorState(bc, newState); err != nil {
		return errors.Wrap(err, "failed to persist anchor state")
	}
	w.state, w.tip = newState, bc
	return nil
}

func (w *AsmWorker) persistAndAdvance(out *stf.AsmStfOutput) error {
	if err := w.store.PutBlockLogDigest(out.Commitment.Height, out.LogDigest); err != nil {
		return errors.Wrap(err, "failed to index block log digest")
	}
	if err := w.store.StoreAnchorState(out.Commitment, out.State); err != nil {
		return errors.Wrap(err, "failed to persist anchor state")
	}
	w.state, w.tip = out.State, out.Commitment
	return nil
}

// CurrentState returns the anchored tip and a deep copy of the current
// anchor state; the worker stays the only writer of the live value.
func (w *AsmWorker) CurrentState() (types.BlockCommitment, *types.AnchorState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tip, w.state.Clone()
}

// Run drives the worker from a block source until the context is canceled
// or a fatal error halts anchoring. A halted worker requires operator
// intervention; it never continues on corrupted state.
func (w *AsmWorker) Run(ctx context.Context, source BlockSource) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blk, ok := <-source.Blocks():
			if !ok {
				return nil
			}
			if _, err := w.Transition(ctx, blk); err != nil {
				log.L().Error("Halting on failed block transition.", zap.Error(err))
				return err
			}
		}
	}
}
