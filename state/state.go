// Package state provides the injected record store the registry and
// marketplace keep their per-commitment state in.
package state

import (
	"errors"
	"sync"

	"github.com/ipfs/go-cid"
)

var (
	ErrNotFound   = errors.New("state: not found")
	ErrInvalidKey = errors.New("state: invalid key")
	ErrCorrupt    = errors.New("state: corrupt record")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store is a minimal mutable record store keyed by commitment hash.
//
// Contract:
//   - Keys MUST be defined CIDs; record values are opaque bytes (the owning
//     component decides the encoding).
//   - Get MUST return ErrNotFound for absent keys.
//   - Delete MUST return ErrNotFound for absent keys: deletion is
//     authoritative, never a silent no-op.
//   - Put overwrites: records are mutable, unlike content-addressed blobs.
type Store interface {
	Get(key cid.Cid) ([]byte, error)
	Put(key cid.Cid, val []byte) error
	Delete(key cid.Cid) error
	Has(key cid.Cid) bool
}

// Memory returns an empty in-process Store. Each call returns an isolated
// instance; tests and single-process daemons use it directly.
func Memory() Store {
	return &memStore{records: make(map[cid.Cid][]byte)}
}

type memStore struct {
	mu      sync.RWMutex
	records map[cid.Cid][]byte
}

func (m *memStore) Get(key cid.Cid) ([]byte, error) {
	if !key.Defined() {
		return nil, ErrInvalidKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *memStore) Put(key cid.Cid, val []byte) error {
	if !key.Defined() {
		return ErrInvalidKey
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	m.mu.Lock()
	m.records[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *memStore) Delete(key cid.Cid) error {
	if !key.Defined() {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return ErrNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *memStore) Has(key cid.Cid) bool {
	if !key.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[key]
	return ok
}
