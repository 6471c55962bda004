// Package credential stores the single API credential used for remote prompt
// optimization. The credential is read from storage on every lookup so changes
// made by another process or request take effect immediately.
package credential

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackzampolin/promptpal/internal/kvstore"
)

// Key is the storage key the credential lives under.
const Key = "openai_api_key"

// Hint is the advisory prefix OpenAI keys start with. It is never enforced.
const Hint = "sk-"

// Provider reads and writes the credential.
type Provider interface {
	// Get returns the credential. The bool is false when none is configured.
	Get(ctx context.Context) (string, bool, error)

	// Set trims and stores value. An empty trimmed value clears the credential.
	Set(ctx context.Context, value string) error

	// Clear removes the credential.
	Clear(ctx context.Context) error
}

// Store is a Provider backed by a kvstore.
type Store struct {
	kv kvstore.Store
}

// NewStore creates a Store over kv.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) Get(ctx context.Context) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		return "", false, fmt.Errorf("read credential: %w", err)
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.Clear(ctx)
	}
	if err := s.kv.Set(ctx, Key, value); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Memory is an in-process Provider for tests.
type Memory struct {
	mu    sync.RWMutex
	value string

	// Err, when set, is returned from Get.
	Err error
}

// NewMemory creates a Memory provider holding value (trimmed; empty means absent).
func NewMemory(value string) *Memory {
	return &Memory{value: strings.TrimSpace(value)}
}

func (m *Memory) Get(_ context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	return m.value, m.value != "", nil
}

func (m *Memory) Set(_ context.Context, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = strings.TrimSpace(value)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = ""
	return nil
}

// Mask returns value with everything but the first three and last four
// characters hidden. Short values are fully masked.
func Mask(value string) string {
	r := []rune(value)
	if len(r) == 0 {
		return ""
	}
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:3]) + strings.Repeat("*", len(r)-7) + string(r[len(r)-4:])
}

// LooksValid reports whether value carries the usual key prefix.
func LooksValid(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), Hint)
}

var (
	_ Provider = (*Store)(nil)
	_ Provider = (*Memory)(nil)
)
