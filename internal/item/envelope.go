package item

import (
	"encoding/json"
	"fmt"
)

// Envelope tags a serialised line with its kind so heterogeneous content can be decoded.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Item json.RawMessage `json:"item"`
}

// Wrap serialises it into an envelope.
func Wrap(it Item) (Envelope, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s line: %w", it.Kind(), err)
	}
	return Envelope{Kind: it.Kind(), Item: data}, nil
}

// Unwrap decodes the concrete line held by e.
func (e Envelope) Unwrap() (Item, error) {
	var it Item
	switch e.Kind {
	case KindProduct:
		it = &Product{}
	case KindShipping:
		it = &Shipping{}
	case KindDiscount:
		it = &DiscountLine{}
	default:
		return nil, fmt.Errorf("unknown line kind %q: %w", e.Kind, ErrInvalidArgument)
	}
	if err := json.Unmarshal(e.Item, it); err != nil {
		return nil, fmt.Errorf("decode %s line: %w", e.Kind, err)
	}
	return it, nil
}
