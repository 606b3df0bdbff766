// Package localfs is a local filesystem-backed state.Store.
//
// Records live one file per key under a root directory, sharded by the first
// two characters of the CID string. Writes go through a temp file and rename
// so a crashed process never leaves a half-written record behind.
package localfs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/claimvault/state"
)

// Store is a filesystem state.Store rooted at a directory.
type Store struct {
	root string
}

// New constructs a Store rooted at root. The directory will be created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Get(key cid.Cid) ([]byte, error) {
	if !key.Defined() {
		return nil, state.ErrInvalidKey
	}
	b, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, state.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) Put(key cid.Cid, val []byte) error {
	if !key.Defined() {
		return state.ErrInvalidKey
	}
	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(val); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) Delete(key cid.Cid) error {
	if !key.Defined() {
		return state.ErrInvalidKey
	}
	err := os.Remove(s.pathFor(key))
	if os.IsNotExist(err) {
		return state.ErrNotFound
	}
	return err
}

func (s *Store) Has(key cid.Cid) bool {
	if !key.Defined() {
		return false
	}
	_, err := os.Stat(s.pathFor(key))
	return err == nil
}

func (s *Store) pathFor(key cid.Cid) string {
	str := key.String()
	if len(str) < 2 {
		return filepath.Join(s.root, str)
	}
	return filepath.Join(s.root, str[:2], str)
}
