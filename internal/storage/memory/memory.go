// Package memory is an in-process storage.Store. Tests use its failure
// injection to simulate an unreachable store.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mera-platform/mera/internal/storage"
)

// Op names a Store operation for failure injection.
type Op string

const (
	OpSave   Op = "save"
	OpLoad   Op = "load"
	OpList   Op = "list"
	OpDelete Op = "delete"
)

// Store keeps values in a map.
type Store struct {
	mu    sync.Mutex
	data  map[string][]byte
	fail  map[Op]error
	calls map[Op]int
	hook  func(ctx context.Context, op Op, key string)
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		data:  make(map[string][]byte),
		fail:  make(map[Op]error),
		calls: make(map[Op]int),
	}
}

// SetFailure makes every call of op fail with err until cleared with a nil
// err.
func (s *Store) SetFailure(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// SetHook installs a function called at the start of every operation,
// outside the lock. Tests use it to block a write in flight.
func (s *Store) SetHook(hook func(ctx context.Context, op Op, key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Calls returns how many times op was attempted.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Keys returns every stored key in ascending order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.data))
}

func (s *Store) begin(ctx context.Context, op Op, key string) error {
	s.mu.Lock()
	s.calls[op]++
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, op, key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[op]; err != nil {
		return fmt.Errorf("memory %s %q: %w", op, key, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := s.begin(ctx, OpSave, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := s.begin(ctx, OpLoad, key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	if err := storage.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	if err := s.begin(ctx, OpList, pattern); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.Filter(pattern, slices.Collect(maps.Keys(s.data))), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := s.begin(ctx, OpDelete, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Close() error { return nil }
