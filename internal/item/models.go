package item

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownModel is returned when an association names a type nobody registered.
	ErrUnknownModel = errors.New("unknown model")
	// ErrModelNotFound is returned when the referenced entity no longer exists.
	ErrModelNotFound = errors.New("model not found")
)

// Model is implemented by live entities that can be associated with a line.
type Model interface {
	ModelName() string
	ModelKey() string
}

// Finder looks an entity up by key.
type Finder interface {
	Find(ctx context.Context, key string) (any, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(ctx context.Context, key string) (any, error)

func (f FinderFunc) Find(ctx context.Context, key string) (any, error) { return f(ctx, key) }

// Models maps type names to lookups. The zero value is ready to use.
type Models struct {
	mu      sync.RWMutex
	finders map[string]Finder
}

// NewModels returns an empty registry.
func NewModels() *Models {
	return &Models{finders: make(map[string]Finder)}
}

// Register binds name to f, replacing any previous binding.
func (m *Models) Register(name string, f Finder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finders == nil {
		m.finders = make(map[string]Finder)
	}
	m.finders[name] = f
}

// Known reports whether name has been registered.
func (m *Models) Known(name string) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.finders[name]
	return ok
}

// Reference turns either a registered type name or a live Model into an Association.
// A bare name keeps key empty so the line fills in its own identifier.
func (m *Models) Reference(entity any) (Association, error) {
	switch v := entity.(type) {
	case string:
		if !m.Known(v) {
			return Association{}, fmt.Errorf("%q: %w", v, ErrUnknownModel)
		}
		return Association{Type: v}, nil
	case Model:
		return Association{Type: v.ModelName(), Key: v.ModelKey()}, nil
	case nil:
		return Association{}, fmt.Errorf("association is nil: %w", ErrInvalidArgument)
	default:
		return Association{Type: fmt.Sprintf("%T", entity)}, nil
	}
}

// Resolve dereferences ref. A missing finder yields ErrUnknownModel; a finder that
// reports nothing yields ErrModelNotFound.
func (m *Models) Resolve(ctx context.Context, ref Association) (any, error) {
	if m == nil {
		return nil, fmt.Errorf("%q: %w", ref.Type, ErrUnknownModel)
	}
	m.mu.RLock()
	f, ok := m.finders[ref.Type]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", ref.Type, ErrUnknownModel)
	}
	entity, err := f.Find(ctx, ref.Key)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve %s/%s: %w", ref.Type, ref.Key, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("%s/%s: %w", ref.Type, ref.Key, ErrModelNotFound)
	}
	return entity, nil
}
