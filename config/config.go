// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/pkg/errors"
	uconfig "go.uber.org/config"

	"github.com/alpenlabs/alpen-sub007/crypto/predicate"
	"github.com/alpenlabs/alpen-sub007/db"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
	"github.com/alpenlabs/alpen-sub007/pkg/log"
)

// IMPORTANT: to define a config, add a field or a new config type to the
// existing config types. In addition, provide the default value in Default.

// ErrInvalidCfg indicates the config value is invalid
var ErrInvalidCfg = errors.New("invalid config value")

type (
	// ASM is the anchor-state-machine config.
	ASM struct {
		// Magic is the hex-encoded envelope magic bytes of the network.
		Magic string `json:"magic" yaml:"magic"`
		// GenesisL1Height is the base-chain height the chain anchors from.
		GenesisL1Height uint64 `json:"genesisL1Height" yaml:"genesisL1Height"`
		// GenesisBlockID is the hex-encoded id of the genesis base-chain block.
		GenesisBlockID string `json:"genesisBlockID" yaml:"genesisBlockID"`
		// GenesisBits is the PoW target bits at genesis.
		GenesisBits uint32 `json:"genesisBits" yaml:"genesisBits"`
		// GenesisTimestamp is the genesis header timestamp.
		GenesisTimestamp uint32 `json:"genesisTimestamp" yaml:"genesisTimestamp"`
		// AllowNativePredicates enables the empty-proof development scheme.
		// Never enable this on a production network.
		AllowNativePredicates bool `json:"allowNativePredicates" yaml:"allowNativePredicates"`

		SequencerScheme  string `json:"sequencerScheme" yaml:"sequencerScheme"`
		SequencerKey     string `json:"sequencerKey" yaml:"sequencerKey"`
		CheckpointScheme string `json:"checkpointScheme" yaml:"checkpointScheme"`
		CheckpointKey    string `json:"checkpointKey" yaml:"checkpointKey"`
		AdminScheme      string `json:"adminScheme" yaml:"adminScheme"`
		AdminKey         string `json:"adminKey" yaml:"adminKey"`
	}

	// L1 is the base-chain RPC config.
	L1 struct {
		RPCHost      string        `json:"rpcHost" yaml:"rpcHost"`
		RPCUser      string        `json:"rpcUser" yaml:"rpcUser"`
		RPCPass      string        `json:"rpcPass" yaml:"rpcPass"`
		DisableTLS   bool          `json:"disableTLS" yaml:"disableTLS"`
		PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
	}

	// Config is the root config struct.
	Config struct {
		ASM     ASM                         `json:"asm" yaml:"asm"`
		L1      L1                          `json:"l1" yaml:"l1"`
		DB      db.Config                   `json:"db" yaml:"db"`
		Log     log.GlobalConfig            `json:"log" yaml:"log"`
		SubLogs map[string]log.GlobalConfig `json:"subLogs" yaml:"subLogs"`
	}

	// Validate is the interface of validating the config
	Validate func(Config) error
)

// Default is the default config
var Default = Config{
	ASM: ASM{
		Magic:            "414c504e", // "ALPN"
		GenesisL1Height:  840000,
		GenesisBits:      0x1703255e,
		SequencerScheme:  predicate.SchnorrScheme,
		CheckpointScheme: predicate.Groth16Scheme,
		AdminScheme:      predicate.SchnorrScheme,
	},
	L1: L1{
		RPCHost:      "127.0.0.1:8332",
		DisableTLS:   true,
		PollInterval: 10 * time.Second,
	},
	DB:      db.DefaultConfig,
	SubLogs: make(map[string]log.GlobalConfig),
}

// New creates a config instance by layering the given yaml files over the
// default config, with environment expansion.
func New(configPaths []string, validates ...Validate) (Config, error) {
	opts := make([]uconfig.YAMLOption, 0)
	opts = append(opts, uconfig.Static(Default))
	opts = append(opts, uconfig.Expand(os.LookupEnv))
	for _, path := range configPaths {
		if path != "" {
			opts = append(opts, uconfig.File(path))
		}
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}

	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal yaml config to struct")
	}

	if len(validates) == 0 {
		validates = []Validate{ValidateASM}
	}
	for _, validate := range validates {
		if err := validate(cfg); err != nil {
			return Config{}, errors.Wrap(err, "failed to validate config")
		}
	}
	return cfg, nil
}

// ValidateASM validates the anchor-state-machine config.
func ValidateASM(cfg Config) error {
	if _, err := cfg.ASM.MagicBytes(); err != nil {
		return err
	}
	if _, err := cfg.ASM.GenesisBlockHash(); err != nil {
		return err
	}
	if !cfg.ASM.AllowNativePredicates && cfg.ASM.CheckpointScheme == predicate.NativeScheme {
		return errors.Wrap(ErrInvalidCfg, "native checkpoint predicate requires allowNativePredicates")
	}
	return nil
}

// MagicBytes decodes the envelope magic bytes.
func (a *ASM) MagicBytes() ([]byte, error) {
	magic, err := hex.DecodeString(a.Magic)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidCfg, "magic = %s: %v", a.Magic, err)
	}
	if len(magic) == 0 {
		return nil, errors.Wrap(ErrInvalidCfg, "empty envelope magic")
	}
	return magic, nil
}

// GenesisBlockHash decodes the genesis block id.
func (a *ASM) GenesisBlockHash() (hash.Hash256, error) {
	h, err := hash.DecodeHash256(a.GenesisBlockID)
	if err != nil {
		return hash.ZeroHash256, errors.Wrapf(ErrInvalidCfg, "genesisBlockID = %s: %v", a.GenesisBlockID, err)
	}
	return h, nil
}

// SequencerPredicate builds the configured sequencer predicate.
func (a *ASM) SequencerPredicate() (predicate.Predicate, error) {
	return decodePredicate(a.SequencerScheme, a.SequencerKey)
}

// CheckpointPredicate builds the configured checkpoint predicate.
func (a *ASM) CheckpointPredicate() (predicate.Predicate, error) {
	return decodePredicate(a.CheckpointScheme, a.CheckpointKey)
}

// AdminPredicate builds the configured admin predicate.
func (a *ASM) AdminPredicate() (predicate.Predicate, error) {
	return decodePredicate(a.AdminScheme, a.AdminKey)
}

func decodePredicate(scheme, key string) (predicate.Predicate, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return predicate.Predicate{}, errors.Wrapf(ErrInvalidCfg, "predicate key = %s: %v", key, err)
	}
	return predicate.Predicate{Scheme: scheme, Key: raw}, nil
}
