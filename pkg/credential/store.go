// Package credential keeps provider API keys in the OS keyring and tracks
// which one is active.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name entries are stored under.
const DefaultService = "ecoscan"

// ErrNoCredential is returned when no key is stored or configured.
var ErrNoCredential = errors.New("no API key configured")

// ErrNoAlternate is returned by Reselect when there is nothing to switch to.
var ErrNoAlternate = errors.New("no alternate API key stored")

type ring struct {
	Keys   []string `json:"keys"`
	Active int      `json:"active"`
}

// Store holds an ordered list of keys for one provider. The active key is
// what APIKey returns; Reselect moves to the next one.
type Store struct {
	service  string
	provider string
	fallback string
	logger   *log.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithService overrides the keyring service name.
func WithService(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.service = name
		}
	}
}

// WithFallbackKey sets a key used when the keyring holds none, typically
// one taken from the environment.
func WithFallbackKey(key string) Option {
	return func(s *Store) {
		s.fallback = strings.TrimSpace(key)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store for provider.
func NewStore(provider string, opts ...Option) *Store {
	s := &Store{
		service:  DefaultService,
		provider: provider,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the provider this store holds keys for.
func (s *Store) Provider() string {
	return s.provider
}

// APIKey returns the active key, the fallback key when the keyring is empty,
// or ErrNoCredential.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load()
	if err != nil {
		if s.fallback != "" {
			s.logger.Debug("keyring unavailable, using configured key", "provider", s.provider, "err", err)
			return s.fallback, nil
		}
		return "", err
	}
	if len(r.Keys) == 0 {
		if s.fallback != "" {
			return s.fallback, nil
		}
		return "", fmt.Errorf("%s: %w", s.provider, ErrNoCredential)
	}
	return r.Keys[r.Active], nil
}

// Add appends key to the list. Adding a key that is already stored is a no-op.
// The first key added becomes active.
func (s *Store) Add(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range r.Keys {
		if k == key {
			return nil
		}
	}
	r.Keys = append(r.Keys, key)
	return s.save(r)
}

// List returns the stored keys and the index of the active one.
func (s *Store) List() ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load()
	if err != nil {
		return nil, 0, err
	}
	return append([]string(nil), r.Keys...), r.Active, nil
}

// Use makes the key at index active.
func (s *Store) Use(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(r.Keys) {
		return fmt.Errorf("key index %d out of range (have %d)", index, len(r.Keys))
	}
	r.Active = index
	return s.save(r)
}

// Remove deletes the key at index. The active index is adjusted so it keeps
// pointing at a stored key.
func (s *Store) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(r.Keys) {
		return fmt.Errorf("key index %d out of range (have %d)", index, len(r.Keys))
	}
	r.Keys = append(r.Keys[:index], r.Keys[index+1:]...)
	switch {
	case len(r.Keys) == 0:
		r.Active = 0
		return s.delete()
	case index < r.Active:
		r.Active--
	case r.Active >= len(r.Keys):
		r.Active = 0
	}
	return s.save(r)
}

// Reselect activates the next stored key, wrapping around.
func (s *Store) Reselect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load()
	if err != nil {
		return err
	}
	if len(r.Keys) < 2 {
		return fmt.Errorf("%s: %w", s.provider, ErrNoAlternate)
	}
	r.Active = (r.Active + 1) % len(r.Keys)
	if err := s.save(r); err != nil {
		return err
	}
	s.logger.Info("switched API key", "provider", s.provider, "key", MaskKey(r.Keys[r.Active]))
	return nil
}

func (s *Store) load() (ring, error) {
	var r ring
	data, err := keyring.Get(s.service, s.provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return r, nil
	}
	if err != nil {
		return r, fmt.Errorf("read keyring: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return ring{}, fmt.Errorf("parse keyring entry: %w", err)
	}
	if r.Active < 0 || r.Active >= len(r.Keys) {
		r.Active = 0
	}
	return r, nil
}

func (s *Store) save(r ring) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.service, s.provider, string(data)); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

func (s *Store) delete() error {
	if err := keyring.Delete(s.service, s.provider); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring entry: %w", err)
	}
	return nil
}

// MaskKey returns a masked version of an API key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
