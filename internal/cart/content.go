package cart

import (
	"encoding/json"

	"github.com/noah-isme/cartkit/internal/item"
)

// Content is the ordered mapping rowId -> line of one cart instance.
type Content struct {
	keys  []string
	items map[string]item.Item
}

// NewContent returns an empty mapping.
func NewContent() *Content {
	return &Content{items: make(map[string]item.Item)}
}

func (c *Content) Len() int { return len(c.keys) }

func (c *Content) IsEmpty() bool { return len(c.keys) == 0 }

// Keys returns row ids in insertion order.
func (c *Content) Keys() []string {
	return append([]string(nil), c.keys...)
}

func (c *Content) Has(rowID string) bool {
	_, ok := c.items[rowID]
	return ok
}

func (c *Content) Get(rowID string) (item.Item, bool) {
	it, ok := c.items[rowID]
	return it, ok
}

// Items returns lines in insertion order.
func (c *Content) Items() []item.Item {
	out := make([]item.Item, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.items[k])
	}
	return out
}

// Put stores it under its row id. Replacing keeps the existing position.
func (c *Content) Put(it item.Item) {
	if c.items == nil {
		c.items = make(map[string]item.Item)
	}
	rowID := it.RowID()
	if _, ok := c.items[rowID]; !ok {
		c.keys = append(c.keys, rowID)
	}
	c.items[rowID] = it
}

// Rename moves the slot at oldRowID to its current row id, keeping its position.
func (c *Content) Rename(oldRowID string, it item.Item) {
	newRowID := it.RowID()
	for i, k := range c.keys {
		if k == oldRowID {
			c.keys[i] = newRowID
			delete(c.items, oldRowID)
			c.items[newRowID] = it
			return
		}
	}
	c.Put(it)
}

// Delete removes rowID and reports whether it was present.
func (c *Content) Delete(rowID string) bool {
	if _, ok := c.items[rowID]; !ok {
		return false
	}
	delete(c.items, rowID)
	for i, k := range c.keys {
		if k == rowID {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

// Each calls fn for every line in order until fn returns false.
func (c *Content) Each(fn func(rowID string, it item.Item) bool) {
	for _, k := range c.keys {
		if !fn(k, c.items[k]) {
			return
		}
	}
}

// Filter returns the lines matching pred, in order.
func (c *Content) Filter(pred func(it item.Item, rowID string) bool) *Content {
	out := NewContent()
	c.Each(func(rowID string, it item.Item) bool {
		if pred(it, rowID) {
			out.Put(it)
		}
		return true
	})
	return out
}

// OfKind returns the lines of kind k.
func (c *Content) OfKind(k item.Kind) *Content {
	return c.Filter(func(it item.Item, _ string) bool { return it.Kind() == k })
}

// MarshalJSON encodes the mapping as an ordered array of kind-tagged lines.
func (c *Content) MarshalJSON() ([]byte, error) {
	envs := make([]item.Envelope, 0, c.Len())
	for _, it := range c.Items() {
		env, err := item.Wrap(it)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalJSON decodes an array produced by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var envs []item.Envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	decoded := NewContent()
	for _, env := range envs {
		it, err := env.Unwrap()
		if err != nil {
			return err
		}
		decoded.Put(it)
	}
	*c = *decoded
	return nil
}
