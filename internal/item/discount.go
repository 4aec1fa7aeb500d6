package item

import (
	"encoding/json"
	"fmt"

	"github.com/noah-isme/cartkit/internal/discount"
)

// DiscountLine is a cart-level coupon or promotion row. It keeps its own accounting
// and never changes other rows.
type DiscountLine struct {
	rowID       string
	id          string
	name        string
	qty         float64
	rule        discount.Rule
	association *Association
}

// NewDiscountLine builds a discount row with a zero quantity.
func NewDiscountLine(id, name string, value float64, typ discount.Type) (*DiscountLine, error) {
	if err := validateIdentity(id, name); err != nil {
		return nil, err
	}
	rule, err := discount.New(value, typ, name)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	return &DiscountLine{
		rowID: DiscountRowID(id, name, value, string(typ)),
		id:    id,
		name:  name,
		rule:  rule,
	}, nil
}

// DiscountFromDiscountable builds a discount row from an external descriptor.
func DiscountFromDiscountable(d Discountable, opts Options) (*DiscountLine, error) {
	if d == nil {
		return nil, fmt.Errorf("discountable is nil: %w", ErrInvalidArgument)
	}
	typ, err := discount.ParseType(d.DiscountableType(opts))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	return NewDiscountLine(d.DiscountableIdentifier(opts), d.DiscountableDescription(opts), d.DiscountableValue(opts), typ)
}

// DiscountFromAttributes builds a discount row; id, name, value and type are required.
func DiscountFromAttributes(attrs Attributes) (*DiscountLine, error) {
	if err := requireFields(attrs, "id", "name", "value", "type"); err != nil {
		return nil, err
	}
	typ, err := discount.ParseType(*attrs.Type)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	d, err := NewDiscountLine(*attrs.ID, *attrs.Name, *attrs.Value, typ)
	if err != nil {
		return nil, err
	}
	if attrs.Qty != nil {
		if err := ValidateQuantity(*attrs.Qty); err != nil {
			return nil, err
		}
		d.qty = *attrs.Qty
	}
	return d, nil
}

func (d *DiscountLine) Kind() Kind               { return KindDiscount }
func (d *DiscountLine) RowID() string            { return d.rowID }
func (d *DiscountLine) ID() string               { return d.id }
func (d *DiscountLine) Name() string             { return d.name }
func (d *DiscountLine) Qty() float64             { return d.qty }
func (d *DiscountLine) Value() float64           { return d.rule.Value() }
func (d *DiscountLine) Type() discount.Type      { return d.rule.Type() }
func (d *DiscountLine) Rule() discount.Rule      { return d.rule }
// Association returns the weak entity reference, if any.
func (d *DiscountLine) Association() *Association {
	if d.association == nil {
		return nil
	}
	a := *d.association
	return &a
}

// Associate stores a weak reference; a blank key defaults to the discount id.
func (d *DiscountLine) Associate(ref Association) {
	if ref.Key == "" {
		ref.Key = d.id
	}
	d.association = &ref
}

// SetQuantity sets the number of times the discount applies.
func (d *DiscountLine) SetQuantity(qty float64) error {
	if err := validateNumeric("quantity", qty); err != nil {
		return err
	}
	d.qty = qty
	return nil
}

// Amount is the reduction this row grants against base: qty times the value for
// currency rows, qty times the percentage of base for percent rows.
func (d *DiscountLine) Amount(base float64) float64 {
	if d.rule.Type() == discount.Percent {
		return d.qty * d.rule.Calculate(base)
	}
	return d.qty * d.rule.Value()
}

// UpdateFromDiscountable re-pulls identifier, name, value and type from src.
func (d *DiscountLine) UpdateFromDiscountable(src Discountable) error {
	if src == nil {
		return fmt.Errorf("discountable is nil: %w", ErrInvalidArgument)
	}
	typ := src.DiscountableType(nil)
	value := src.DiscountableValue(nil)
	return d.UpdateFromAttributes(Attributes{
		ID:    String(src.DiscountableIdentifier(nil)),
		Name:  String(src.DiscountableDescription(nil)),
		Value: &value,
		Type:  &typ,
	})
}

// UpdateFromAttributes applies the set fields of attrs and regenerates the row id.
func (d *DiscountLine) UpdateFromAttributes(attrs Attributes) error {
	id := stringOr(attrs.ID, d.id)
	name := stringOr(attrs.Name, d.name)
	value := floatOr(attrs.Value, d.rule.Value())
	typ := d.rule.Type()
	if attrs.Type != nil {
		parsed, err := discount.ParseType(*attrs.Type)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
		}
		typ = parsed
	}
	qty := floatOr(attrs.Qty, d.qty)
	if err := validateNumeric("quantity", qty); err != nil {
		return err
	}
	next, err := NewDiscountLine(id, name, value, typ)
	if err != nil {
		return err
	}
	next.qty = qty
	next.association = d.association
	*d = *next
	return nil
}

type discountJSON struct {
	RowID       string        `json:"rowId"`
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Qty         float64       `json:"qty"`
	Value       float64       `json:"value"`
	Type        discount.Type `json:"type"`
	Association *Association  `json:"association,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (d *DiscountLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(discountJSON{
		RowID:       d.rowID,
		ID:          d.id,
		Name:        d.name,
		Qty:         d.qty,
		Value:       d.rule.Value(),
		Type:        d.rule.Type(),
		Association: d.association,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The row id is derived again from the decoded fields.
func (d *DiscountLine) UnmarshalJSON(data []byte) error {
	var raw discountJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typ, err := discount.ParseType(string(raw.Type))
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	decoded, err := NewDiscountLine(raw.ID, raw.Name, raw.Value, typ)
	if err != nil {
		return err
	}
	decoded.qty = raw.Qty
	decoded.association = raw.Association
	*d = *decoded
	return nil
}
