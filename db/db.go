// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/alpenlabs/alpen-sub007/pkg/lifecycle"
)

const (
	// BoltEngine selects the bbolt backend
	BoltEngine = "bolt"
	// PebbleEngine selects the pebble backend
	PebbleEngine = "pebble"
)

var (
	// ErrNotExist indicates certain item does not exist in the database
	ErrNotExist = errors.New("not exist in DB")
	// ErrIO indicates the generic error of DB I/O operation
	ErrIO = errors.New("DB I/O operation error")
	// ErrDBNotStarted indicates the database has not been started
	ErrDBNotStarted = errors.New("DB is not started")
	// ErrInvalidEngine indicates an unsupported db engine in the config
	ErrInvalidEngine = errors.New("invalid DB engine")
)

// Config contains the database configurations
type Config struct {
	DbPath     string `json:"dbPath" yaml:"dbPath"`
	Engine     string `json:"engine" yaml:"engine"`
	NumRetries uint8  `json:"numRetries" yaml:"numRetries"`
	ReadOnly   bool   `json:"readOnly" yaml:"readOnly"`
}

// DefaultConfig is the default database config
var DefaultConfig = Config{
	DbPath:     "/var/data/asm.db",
	Engine:     BoltEngine,
	NumRetries: 3,
}

// KVStore is the interface of KV store.
type KVStore interface {
	lifecycle.StartStopper

	// Put inserts or updates a record identified by (namespace, key)
	Put(string, []byte, []byte) error
	// Get gets a record by (namespace, key)
	Get(string, []byte) ([]byte, error)
	// Delete deletes a record by (namespace, key)
	Delete(string, []byte) error
}

// CreateKVStore creates a KVStore from the config
func CreateKVStore(cfg Config) (KVStore, error) {
	switch cfg.Engine {
	case BoltEngine:
		return NewBoltDB(cfg), nil
	case PebbleEngine:
		return NewPebbleDB(cfg), nil
	default:
		return nil, errors.Wrapf(ErrInvalidEngine, "engine = %s", cfg.Engine)
	}
}

// memKVStore is the in-memory implementation of KVStore for testing purpose
type memKVStore struct {
	data   sync.Map
	bucket sync.Map
}

// NewMemKVStore instantiates an in-memory KV store
func NewMemKVStore() KVStore {
	return &memKVStore{}
}

func (m *memKVStore) Start(_ context.Context) error { return nil }

func (m *memKVStore) Stop(_ context.Context) error { return nil }

func (m *memKVStore) Put(ns string, key, value []byte) error {
	m.bucket.Store(ns, struct{}{})
	v := make([]byte, len(value))
	copy(v, value)
	m.data.Store(ns+keyDelimiter+string(key), v)
	return nil
}

func (m *memKVStore) Get(ns string, key []byte) ([]byte, error) {
	if _, ok := m.bucket.Load(ns); !ok {
		return nil, errors.Wrapf(ErrNotExist, "namespace = %s doesn't exist", ns)
	}
	value, ok := m.data.Load(ns + keyDelimiter + string(key))
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "key = %x doesn't exist", key)
	}
	return value.([]byte), nil
}

func (m *memKVStore) Delete(ns string, key []byte) error {
	m.data.Delete(ns + keyDelimiter + string(key))
	return nil
}

const keyDelimiter = "."
