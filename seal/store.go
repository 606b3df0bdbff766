package seal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudflare/circl/kem"

	"xdao.co/claimvault/ledger"
)

// KeyStore is a simple local-first store for sealing keys.
//
// Features:
// - Stores one KEM seed per named key on the local filesystem
// - Private key files are 0600; keys derive deterministically from the seed
// - No external dependencies
//
// This store is designed to be straightforward and explicit.
type KeyStore struct {
	Directory string
}

// KeyEntry describes a stored key for listings.
type KeyEntry struct {
	Name     string
	Identity ledger.Identity
}

// DefaultDirectory returns ~/.claimvault/keys.
func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".claimvault", "keys"), nil
}

// OpenKeyStore opens (or names the default location of) a key store.
func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

// CheckKeyName limits names to the filesystem-safe alphabet.
func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

func (ks *KeyStore) seedPath(name string) string {
	return filepath.Join(ks.Directory, name, "seed.key")
}

// Init creates a named key from a fresh random seed (or the given one) and
// returns its ledger identity.
func (ks *KeyStore) Init(name string, seed []byte, overwrite bool) (ledger.Identity, error) {
	if err := CheckKeyName(name); err != nil {
		return ledger.Nobody, err
	}
	seedSize := Scheme().SeedSize()
	if seed == nil {
		seed = make([]byte, seedSize)
		if _, err := rand.Read(seed); err != nil {
			return ledger.Nobody, err
		}
	}
	if len(seed) != seedSize {
		return ledger.Nobody, fmt.Errorf("seed must be %d bytes, got %d", seedSize, len(seed))
	}
	if err := ks.saveSeed(ks.seedPath(name), seed, overwrite); err != nil {
		return ledger.Nobody, err
	}
	pub, _, err := DeriveKeyPair(seed)
	if err != nil {
		return ledger.Nobody, err
	}
	return Fingerprint(pub)
}

// Load returns the keypair for a named key.
func (ks *KeyStore) Load(name string) (kem.PublicKey, kem.PrivateKey, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, nil, err
	}
	seed, err := ks.loadSeed(ks.seedPath(name))
	if err != nil {
		return nil, nil, err
	}
	return DeriveKeyPair(seed)
}

// ExportPublic returns the base64 form of a named key's public key, suitable
// for handing to a counterparty that wants to seal a secret for us.
func (ks *KeyStore) ExportPublic(name string) (string, error) {
	pub, _, err := ks.Load(name)
	if err != nil {
		return "", err
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// ParsePublic decodes a base64 public key exported by ExportPublic.
func ParsePublic(s string) (kem.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("seal: malformed public key: %w", err)
	}
	return Scheme().UnmarshalBinaryPublicKey(b)
}

// List returns the stored keys sorted by name.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		pub, _, err := ks.Load(name)
		if err != nil {
			continue
		}
		id, err := Fingerprint(pub)
		if err != nil {
			continue
		}
		result = append(result, KeyEntry{Name: name, Identity: id})
	}
	return result, nil
}

func (ks *KeyStore) saveSeed(filePath string, seed []byte, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeed(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("seal: malformed seed file %s: %w", filePath, err)
	}
	return seed, nil
}
