// Package credential is the encrypted at-rest store of connection secrets.
// The whole map lives in one file, rewritten in full on every mutation;
// interactive connect actions are its only consumer.
package credential

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	zxcvbn "github.com/ccojocar/zxcvbn-go"
)

const (
	// minMasterScore is the zxcvbn threshold for a new store's master
	// password.
	minMasterScore = 2

	idPrefix   = "cred_"
	idHexBytes = 8
)

var (
	ErrNotFound = errors.New("credential: not found")

	// ErrIDCollision: a generated or supplied id already exists.
	ErrIDCollision = errors.New("credential: id collision")

	// ErrWeakMasterPassword: rejected by the strength check at creation.
	ErrWeakMasterPassword = errors.New("credential: master password too weak")
)

// Store holds the decrypted credential map in memory and rewrites the
// encrypted file on every mutation. All methods are safe for concurrent use;
// Store is the single writer of its file.
type Store struct {
	mu     sync.Mutex
	path   string
	master string
	creds  map[string]Credential
	now    func() time.Time
}

// Open loads the store at path with the given master password. A missing or
// empty file starts an empty store; only then is the master password checked
// for strength, since an existing file already proves knowledge of it.
func Open(path, master string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credential: read %s: %w", path, err)
	}

	if len(data) == 0 {
		if zxcvbn.PasswordStrength(master, nil).Score < minMasterScore {
			return nil, ErrWeakMasterPassword
		}
		return &Store{
			path:   path,
			master: master,
			creds:  map[string]Credential{},
			now:    time.Now,
		}, nil
	}

	creds, err := decodeFile(master, data)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, master: master, creds: creds, now: time.Now}, nil
}

// Add inserts a credential with a fresh id and returns it. The stored copy
// is independent of the caller's, which remains the caller's to wipe.
func (s *Store) Add(name, description string, secret Secret) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.newID()
	if err != nil {
		return "", err
	}

	c := Credential{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   s.now().UTC(),
		Secret:      secret.clone(),
	}
	s.creds[id] = c

	if err := s.save(); err != nil {
		delete(s.creds, id)
		return "", err
	}
	return id, nil
}

// Update replaces the name, description, and secret of an existing
// credential. Creation time and last-used time are preserved.
func (s *Store) Update(id, name, description string, secret Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.creds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	c := old
	c.Name = name
	c.Description = description
	c.Secret = secret.clone()
	s.creds[id] = c

	if err := s.save(); err != nil {
		s.creds[id] = old
		return err
	}
	old.Wipe()
	return nil
}

// Delete removes a credential and wipes its in-memory secret.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.creds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.creds, id)

	if err := s.save(); err != nil {
		s.creds[id] = old
		return err
	}
	old.Wipe()
	return nil
}

// Get returns a full credential including its secret. The caller owns the
// copy and must Wipe it when done.
func (s *Store) Get(id string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[id]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.clone(), nil
}

// List returns secret-free summaries sorted by name, then id.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.creds))
	for id := range s.creds {
		c := s.creds[id]
		out = append(out, c.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkUsed stamps the credential's last-used time.
func (s *Store) MarkUsed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t := s.now().UTC()
	c.LastUsedAt = &t
	s.creds[id] = c
	return s.save()
}

// newID generates a cred_<16 hex> id, rejecting collisions with existing
// entries. Caller holds the lock.
func (s *Store) newID() (string, error) {
	for attempt := 0; attempt < 4; attempt++ {
		raw := make([]byte, idHexBytes)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("credential: id: %w", err)
		}
		id := idPrefix + hex.EncodeToString(raw)
		if _, exists := s.creds[id]; exists {
			continue
		}
		return id, nil
	}
	return "", ErrIDCollision
}

// save rewrites the encrypted file atomically. Caller holds the lock.
func (s *Store) save() error {
	data, err := encodeFile(s.master, s.creds)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credential: mkdir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credential: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("credential: rename: %w", err)
	}
	return nil
}
