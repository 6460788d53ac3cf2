// Package persist stores filesystem snapshots on disk, encrypted with
// AES-256-GCM under a key kept in a separate key file. The core filesystem
// knows nothing about encoding or encryption; it only hands over and
// receives [vfs.Snapshot] values.
package persist

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vfsim/vfsim/internal/util"
	"github.com/vfsim/vfsim/vfs"
)

const keySize = 32 // AES-256

// ErrNoState is returned by Load when no state file exists yet.
var ErrNoState = errors.New("no saved state")

// Store encrypts snapshots to a hidden file beside the configured state
// path. The key file is created with a fresh random key on first use.
type Store struct {
	statePath string
	keyPath   string
	logger    util.Logger
}

func NewStore(statePath, keyPath string) *Store {
	return &Store{
		statePath: statePath,
		keyPath:   keyPath,
		logger:    util.GetLogger("persist"),
	}
}

// Path returns the actual (hidden) file the state is written to.
func (s *Store) Path() string {
	return hiddenPath(s.statePath)
}

// Save serializes, encrypts and writes the snapshot.
func (s *Store) Save(snap *vfs.Snapshot) error {
	plain, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	gcm, err := s.newGCM()
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plain, nil)

	path := hiddenPath(s.statePath)
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	s.logger.Info().Str("path", path).Int("bytes", len(sealed)).Msg("State saved")
	return nil
}

// Load reads, decrypts and deserializes the snapshot. Tampered or garbage
// ciphertext fails authentication and returns an error.
func (s *Store) Load() (*vfs.Snapshot, error) {
	path := hiddenPath(s.statePath)
	sealed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	gcm, err := s.newGCM()
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("state file too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt state file: %w", err)
	}

	var snap vfs.Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	s.logger.Info().Str("path", path).Msg("State loaded")
	return &snap, nil
}

func (s *Store) newGCM() (cipher.AEAD, error) {
	key, err := s.loadOrCreateKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// loadOrCreateKey reads the key file, generating a fresh random key on
// first use. The key file is written with owner-only permissions.
func (s *Store) loadOrCreateKey() ([]byte, error) {
	key, err := os.ReadFile(s.keyPath)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", s.keyPath, keySize, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.WriteFile(s.keyPath, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	s.logger.Info().Str("path", s.keyPath).Msg("Generated new encryption key")
	return key, nil
}

// hiddenPath prefixes the state file's base name with a dot.
func hiddenPath(p string) string {
	dir, base := filepath.Split(p)
	if !strings.HasPrefix(base, ".") {
		base = "." + base
	}
	if dir == "" {
		return base
	}
	return filepath.Join(dir, base)
}
