// Package credentials holds the account id and API key that gate every
// upstream call, plus the last selected player. Values persist through a
// Backend and are written only by Set and SetLastPlayer.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/player-console/internal/domain"
)

// Persisted field names
const (
	FieldAccount    = "account"
	FieldAPIKey     = "api_key"
	FieldLastPlayer = "last_player"
)

// Backend persists string fields
type Backend interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, fields map[string]string) error
}

// Store is the process-wide credential state
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu         sync.RWMutex
	creds      domain.Credentials
	lastPlayer string
	stored     bool
}

// Open loads persisted state from backend
func Open(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	fields, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading persisted credentials: %w", err)
	}

	s := &Store{
		backend: backend,
		logger:  logger,
		creds: domain.Credentials{
			Account: fields[FieldAccount],
			APIKey:  fields[FieldAPIKey],
		},
		lastPlayer: fields[FieldLastPlayer],
	}
	s.stored = s.creds.Complete()
	return s, nil
}

// Get returns the current credentials, stored or not
func (s *Store) Get() domain.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Stored reports whether the current credentials were confirmed persisted
func (s *Store) Stored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stored
}

// Edit replaces the in-memory credentials without persisting them. Any
// change clears the stored flag until the next Set.
func (s *Store) Edit(c domain.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c != s.creds {
		s.creds = c
		s.stored = false
	}
}

// Set persists c and verifies the write by reading it back. On failure the
// stored flag stays false and the error wraps domain.ErrStorage.
func (s *Store) Set(ctx context.Context, c domain.Credentials) error {
	if !c.Complete() {
		return domain.ErrMissingCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = c
	s.stored = false

	err := s.backend.Save(ctx, map[string]string{
		FieldAccount: c.Account,
		FieldAPIKey:  c.APIKey,
	})
	if err != nil {
		return fmt.Errorf("%w: saving: %v", domain.ErrStorage, err)
	}

	fields, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading back: %v", domain.ErrStorage, err)
	}
	if fields[FieldAccount] != c.Account || fields[FieldAPIKey] != c.APIKey {
		s.logger.Warn("credential read-back mismatch", "account", c.Account)
		return fmt.Errorf("%w: read-back mismatch", domain.ErrStorage)
	}

	s.stored = true
	s.logger.Info("credentials stored", "account", c.Account)
	return nil
}

// LastPlayer returns the persisted last selected player id
func (s *Store) LastPlayer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPlayer
}

// SetLastPlayer persists the selected player id. An empty id clears it.
func (s *Store) SetLastPlayer(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, map[string]string{FieldLastPlayer: ref}); err != nil {
		return fmt.Errorf("%w: saving last player: %v", domain.ErrStorage, err)
	}
	s.lastPlayer = ref
	return nil
}

// MemoryBackend keeps fields in process memory
type MemoryBackend struct {
	mu     sync.Mutex
	fields map[string]string
}

// NewMemoryBackend creates a backend seeded with fields
func NewMemoryBackend(fields map[string]string) *MemoryBackend {
	b := &MemoryBackend{fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		b.fields[k] = v
	}
	return b
}

// Load returns a copy of the stored fields
func (b *MemoryBackend) Load(context.Context) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.fields))
	for k, v := range b.fields {
		out[k] = v
	}
	return out, nil
}

// Save merges fields into the stored set
func (b *MemoryBackend) Save(_ context.Context, fields map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range fields {
		b.fields[k] = v
	}
	return nil
}
