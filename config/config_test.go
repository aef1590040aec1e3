// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/alpenlabs/alpen-sub007/crypto/predicate"
	"github.com/alpenlabs/alpen-sub007/db"
)

func TestNewDefault(t *testing.T) {
	require := require.New(t)

	cfg, err := New(nil)
	require.NoError(err)
	require.Equal(Default.ASM.Magic, cfg.ASM.Magic)
	require.Equal(uint64(840000), cfg.ASM.GenesisL1Height)
	require.Equal(db.BoltEngine, cfg.DB.Engine)
	require.Equal(predicate.Groth16Scheme, cfg.ASM.CheckpointScheme)

	magic, err := cfg.ASM.MagicBytes()
	require.NoError(err)
	require.Equal([]byte("ALPN"), magic)
}

func TestNewLayersYAML(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(path, []byte(`
asm:
  magic: "5453544e"
  genesisL1Height: 200
  genesisBlockID: "00000000000000000002bf1c330e2035ab0b0f51dae57ccb7d43cbca13cfbdd0"
db:
  engine: pebble
l1:
  rpcHost: "10.0.0.5:8332"
`), 0o600))

	cfg, err := New([]string{path})
	require.NoError(err)
	require.Equal("5453544e", cfg.ASM.Magic)
	require.Equal(uint64(200), cfg.ASM.GenesisL1Height)
	require.Equal(db.PebbleEngine, cfg.DB.Engine)
	require.Equal("10.0.0.5:8332", cfg.L1.RPCHost)
	// untouched fields keep their defaults
	require.Equal(Default.L1.PollInterval, cfg.L1.PollInterval)

	h, err := cfg.ASM.GenesisBlockHash()
	require.NoError(err)
	require.False(h.IsZero())
}

func TestValidateASM(t *testing.T) {
	require := require.New(t)

	cfg := Default
	require.NoError(ValidateASM(cfg))

	bad := cfg
	bad.ASM.Magic = "not hex"
	require.Equal(ErrInvalidCfg, errors.Cause(ValidateASM(bad)))

	bad = cfg
	bad.ASM.Magic = ""
	require.Equal(ErrInvalidCfg, errors.Cause(ValidateASM(bad)))

	bad = cfg
	bad.ASM.GenesisBlockID = "zz"
	require.Error(ValidateASM(bad))

	bad = cfg
	bad.ASM.CheckpointScheme = predicate.NativeScheme
	require.Equal(ErrInvalidCfg, errors.Cause(ValidateASM(bad)))
	bad.ASM.AllowNativePredicates = true
	require.NoError(ValidateASM(bad))
}

func TestPredicates(t *testing.T) {
	require := require.New(t)

	cfg := Default
	cfg.ASM.SequencerKey = "c0ffee"
	p, err := cfg.ASM.SequencerPredicate()
	require.NoError(err)
	require.Equal(predicate.Predicate{Scheme: predicate.SchnorrScheme, Key: []byte{0xc0, 0xff, 0xee}}, p)

	cfg.ASM.AdminKey = "xyz"
	_, err = cfg.ASM.AdminPredicate()
	require.Equal(ErrInvalidCfg, errors.Cause(err))
}
