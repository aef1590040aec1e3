// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// asmd runs the anchor state machine against a base-chain full node.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alpenlabs/alpen-sub007/asm/protocol"
	"github.com/alpenlabs/alpen-sub007/asm/protocol/bridge"
	"github.com/alpenlabs/alpen-sub007/asm/protocol/core"
	"github.com/alpenlabs/alpen-sub007/asm/stf"
	"github.com/alpenlabs/alpen-sub007/asm/worker"
	"github.com/alpenlabs/alpen-sub007/config"
	"github.com/alpenlabs/alpen-sub007/crypto/predicate"
	"github.com/alpenlabs/alpen-sub007/db"
	"github.com/alpenlabs/alpen-sub007/pkg/lifecycle"
	"github.com/alpenlabs/alpen-sub007/pkg/log"
)

var _configPaths []string

func main() {
	rootCmd := &cobra.Command{
		Use:   "asmd",
		Short: "asmd anchors the rollup to the base chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, err := config.New(_configPaths)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	rootCmd.PersistentFlags().StringSliceVar(&_configPaths, "config", nil, "yaml config file paths")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := log.InitLoggers(cfg.Log, cfg.SubLogs); err != nil {
		return err
	}

	w, kv, err := buildWorker(cfg)
	if err != nil {
		return err
	}
	fetcher, err := newL1Fetcher(cfg.L1)
	if err != nil {
		return err
	}

	var lc lifecycle.Lifecycle
	lc.AddModels(kv, w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := lc.OnStart(ctx); err != nil {
		return err
	}

	// the fetcher starts only once the anchored tip is known
	tip, _ := w.CurrentState()
	fetcher.seek(tip.Height + 1)
	if err := fetcher.Start(ctx); err != nil {
		lc.OnStop(context.Background())
		return err
	}
	lc.Add(fetcher)

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx, fetcher) }()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigC:
		log.L().Info("Shutting down.", zap.String("signal", sig.String()))
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			log.L().Error("Worker halted.", zap.Error(err))
		}
	}
	cancel()
	return lc.OnStop(context.Background())
}

func buildWorker(cfg config.Config) (*worker.AsmWorker, db.KVStore, error) {
	magic, err := cfg.ASM.MagicBytes()
	if err != nil {
		return nil, nil, err
	}
	genesisBlockID, err := cfg.ASM.GenesisBlockHash()
	if err != nil {
		return nil, nil, err
	}
	seqPred, err := cfg.ASM.SequencerPredicate()
	if err != nil {
		return nil, nil, err
	}
	ckptPred, err := cfg.ASM.CheckpointPredicate()
	if err != nil {
		return nil, nil, err
	}
	adminPred, err := cfg.ASM.AdminPredicate()
	if err != nil {
		return nil, nil, err
	}

	var predOpts []predicate.Option
	if cfg.ASM.AllowNativePredicates {
		predOpts = append(predOpts, predicate.WithNativeProofs())
	}
	preds := predicate.NewRegistry(predOpts...)

	registry := protocol.NewRegistry()
	coreProto := core.New(core.Params{
		GenesisTip: core.CheckpointTip{L1Height: cfg.ASM.GenesisL1Height},
		Sequencer:  seqPred,
		Checkpoint: ckptPred,
		Admin:      adminPred,
	}, preds)
	if err := registry.Register(coreProto); err != nil {
		return nil, nil, err
	}
	if err := registry.Register(bridge.New()); err != nil {
		return nil, nil, err
	}

	kv, err := db.CreateKVStore(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	w := worker.New(
		&stf.Spec{Magic: magic, Registry: registry},
		worker.NewStore(kv),
		worker.GenesisParams{
			L1Height:  cfg.ASM.GenesisL1Height,
			BlockID:   genesisBlockID,
			Bits:      cfg.ASM.GenesisBits,
			Timestamp: cfg.ASM.GenesisTimestamp,
		},
	)
	return w, kv, nil
}
