package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemorySavedCarts keeps saved carts in process memory. Used by tests and the
// "memory" connection.
type MemorySavedCarts struct {
	mu   sync.Mutex
	rows map[[2]string]SavedCart
	Now  func() time.Time
}

// NewMemorySavedCarts returns an empty store.
func NewMemorySavedCarts() *MemorySavedCarts {
	return &MemorySavedCarts{rows: make(map[[2]string]SavedCart)}
}

func (m *MemorySavedCarts) Exists(_ context.Context, identifier, instance string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[[2]string{identifier, instance}]
	return ok, nil
}

func (m *MemorySavedCarts) Insert(_ context.Context, rec SavedCart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[[2]string]SavedCart)
	}
	key := [2]string{rec.Identifier, rec.Instance}
	if _, ok := m.rows[key]; ok {
		return fmt.Errorf("%s/%s: %w", rec.Identifier, rec.Instance, ErrDuplicate)
	}
	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	rec.Content = append([]byte(nil), rec.Content...)
	m.rows[key] = rec
	return nil
}

func (m *MemorySavedCarts) Find(_ context.Context, identifier string) (SavedCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []SavedCart
	for key, rec := range m.rows {
		if key[0] == identifier {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return SavedCart{}, ErrRecordNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].Instance < matches[j].Instance
	})
	rec := matches[0]
	rec.Content = append([]byte(nil), rec.Content...)
	return rec, nil
}

func (m *MemorySavedCarts) Delete(_ context.Context, identifier, instance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, [2]string{identifier, instance})
	return nil
}

// Len reports the number of saved carts.
func (m *MemorySavedCarts) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
