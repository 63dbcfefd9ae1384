// Package credentials holds the bearer token used to authenticate api requests.
//
// A Store owns exactly one slot. An empty string with a nil error means no credential is stored.
// Stores do not lock across processes: concurrent writers race and the last write wins.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendValkey   = "valkey"
)

// DefaultSlot is the slot used when none is configured.
const DefaultSlot = "access_token"

var (
	ErrUnknownBackend = errors.New("unknown credential store backend")
	ErrKeyRequired    = errors.New("credential is sealed and no key was configured")
)

type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// StoreConfig selects and configures a backend for Open.
type StoreConfig struct {
	Backend     string
	Slot        string
	SQLitePath  string
	Key         string // optional passphrase used to seal sqlite values at rest
	PostgresURL string
	ValkeyURI   string
}

// Open connects to the configured backend, applying any pending migrations.
// Callers should release the store with Close.
func Open(ctx context.Context, cfg StoreConfig) (Store, error) {
	slot := cfg.Slot
	if slot == "" {
		slot = DefaultSlot
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLiteStore(ctx, db, slot, cfg.Key)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		store.ownsDB = true
		return store, nil
	case BackendPostgres:
		pool, err := ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool, slot)
		if err != nil {
			pool.Close()
			return nil, err
		}
		store.ownsPool = true
		return store, nil
	case BackendValkey:
		client, err := NewValkeyClient(cfg.ValkeyURI)
		if err != nil {
			return nil, err
		}
		store := NewValkeyStore(client, slot)
		store.ownsClient = true
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Close releases the resources held by s when it has any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryStore) Set(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	return m.Set(ctx, "")
}
