// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package main

import (
	"context"
	"sync/atomic"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/alpenlabs/alpen-sub007/config"
	"github.com/alpenlabs/alpen-sub007/pkg/log"
	"github.com/alpenlabs/alpen-sub007/pkg/routine"
)

// l1Fetcher polls the base-chain RPC for new blocks and feeds them to the
// worker in parent-first order. It assumes a non-reorging view; reorg
// handling lives outside the state machine.
type l1Fetcher struct {
	client     *rpcclient.Client
	task       *routine.RecurringTask
	blocks     chan *wire.MsgBlock
	quit       chan struct{}
	nextHeight atomic.Uint64
}

func newL1Fetcher(cfg config.L1) (*l1Fetcher, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.RPCHost,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPass,
		DisableTLS:   cfg.DisableTLS,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, err
	}
	f := &l1Fetcher{
		client: client,
		blocks: make(chan *wire.MsgBlock, 16),
		quit:   make(chan struct{}),
	}
	f.task = routine.NewRecurringTask(f.poll, cfg.PollInterval)
	return f, nil
}

// seek sets the next height to fetch. Call before Start.
func (f *l1Fetcher) seek(height uint64) { f.nextHeight.Store(height) }

// Blocks implements worker.BlockSource.
func (f *l1Fetcher) Blocks() <-chan *wire.MsgBlock { return f.blocks }

// Start implements lifecycle.StartStopper.
func (f *l1Fetcher) Start(ctx context.Context) error { return f.task.Start(ctx) }

// Stop implements lifecycle.StartStopper. Closing quit first releases a
// poll blocked on a full blocks channel so the task can wind down.
func (f *l1Fetcher) Stop(ctx context.Context) error {
	close(f.quit)
	if err := f.task.Stop(ctx); err != nil {
		return err
	}
	f.client.Shutdown()
	return nil
}

func (f *l1Fetcher) poll() {
	best, err := f.client.GetBlockCount()
	if err != nil {
		log.L().Warn("Failed to query base-chain tip.", zap.Error(err))
		return
	}
	for h := f.nextHeight.Load(); h <= uint64(best); h = f.nextHeight.Load() {
		blockHash, err := f.client.GetBlockHash(int64(h))
		if err != nil {
			log.L().Warn("Failed to fetch block hash.", zap.Uint64("height", h), zap.Error(err))
			return
		}
		blk, err := f.client.GetBlock(blockHash)
		if err != nil {
			log.L().Warn("Failed to fetch block.", zap.Uint64("height", h), zap.Error(err))
			return
		}
		select {
		case f.blocks <- blk:
		case <-f.quit:
			return
		}
		f.nextHeight.Store(h + 1)
	}
}
