package item

import (
	"encoding/json"
	"fmt"
)

// Shipping is the single delivery charge row of a cart instance.
type Shipping struct {
	rowID            string
	id               string
	name             string
	qty              float64
	price            float64
	taxRate          float64
	free             bool
	shippingDiscount float64
	association      *Association
}

// NewShipping builds a shipping line with a quantity of one.
func NewShipping(id, name string, price float64) (*Shipping, error) {
	if err := validateIdentity(id, name); err != nil {
		return nil, err
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}
	return &Shipping{
		rowID: ShippingRowID(id, name, price),
		id:    id,
		name:  name,
		qty:   1,
		price: price,
	}, nil
}

// ShippingFromShippable builds a shipping line from an external descriptor.
func ShippingFromShippable(s Shippable) (*Shipping, error) {
	if s == nil {
		return nil, fmt.Errorf("shippable is nil: %w", ErrInvalidArgument)
	}
	return NewShipping(s.ShippableIdentifier(), s.ShippableDescription(), s.ShippablePrice())
}

// ShippingFromAttributes builds a shipping line; id, name and price are required.
func ShippingFromAttributes(attrs Attributes) (*Shipping, error) {
	if err := requireFields(attrs, "id", "name", "price"); err != nil {
		return nil, err
	}
	s, err := NewShipping(*attrs.ID, *attrs.Name, *attrs.Price)
	if err != nil {
		return nil, err
	}
	if err := s.applyExtras(attrs); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Shipping) applyExtras(attrs Attributes) error {
	if attrs.Qty != nil {
		if err := ValidateQuantity(*attrs.Qty); err != nil {
			return err
		}
		s.qty = *attrs.Qty
	}
	if attrs.TaxRate != nil {
		if err := s.SetTaxRate(*attrs.TaxRate); err != nil {
			return err
		}
	}
	if attrs.ShippingDiscount != nil {
		if err := s.SetShippingDiscount(*attrs.ShippingDiscount); err != nil {
			return err
		}
	}
	if attrs.FreeShipping != nil {
		s.free = *attrs.FreeShipping
	}
	return nil
}

func (s *Shipping) Kind() Kind                { return KindShipping }
func (s *Shipping) RowID() string             { return s.rowID }
func (s *Shipping) ID() string                { return s.id }
func (s *Shipping) Name() string              { return s.name }
func (s *Shipping) Qty() float64              { return s.qty }
func (s *Shipping) TaxRate() float64          { return s.taxRate }
func (s *Shipping) IsFreeShipping() bool      { return s.free }
func (s *Shipping) ShippingDiscount() float64 { return s.shippingDiscount }

// BasePrice is the configured charge before free shipping or shipping discount.
func (s *Shipping) BasePrice() float64 { return s.price }

// Price is the effective charge: zero when free, otherwise the base price less the
// shipping discount, floored at zero.
func (s *Shipping) Price() float64 {
	if s.free {
		return 0
	}
	p := s.price - s.shippingDiscount
	if p < 0 {
		return 0
	}
	return p
}

// Association returns the weak entity reference, if any.
func (s *Shipping) Association() *Association {
	if s.association == nil {
		return nil
	}
	a := *s.association
	return &a
}

// Associate stores a weak reference; a blank key defaults to the shipping id.
func (s *Shipping) Associate(ref Association) {
	if ref.Key == "" {
		ref.Key = s.id
	}
	s.association = &ref
}

// SetQuantity sets the quantity.
func (s *Shipping) SetQuantity(qty float64) error {
	if err := validateNumeric("quantity", qty); err != nil {
		return err
	}
	s.qty = qty
	return nil
}

// SetTaxRate sets the tax rate in percent.
func (s *Shipping) SetTaxRate(rate float64) error {
	if err := validateTaxRate(rate); err != nil {
		return err
	}
	s.taxRate = rate
	return nil
}

// SetFreeShipping toggles the free flag.
func (s *Shipping) SetFreeShipping(free bool) { s.free = free }

// SetShippingDiscount sets the amount subtracted from the base price.
func (s *Shipping) SetShippingDiscount(amount float64) error {
	if err := validateNumeric("shipping discount", amount); err != nil {
		return err
	}
	if amount < 0 {
		return fmt.Errorf("shipping discount must not be negative: %w", ErrInvalidArgument)
	}
	s.shippingDiscount = amount
	return nil
}

// UpdateFromShippable re-pulls identifier, name and price from d.
func (s *Shipping) UpdateFromShippable(d Shippable) error {
	if d == nil {
		return fmt.Errorf("shippable is nil: %w", ErrInvalidArgument)
	}
	id, name, price := d.ShippableIdentifier(), d.ShippableDescription(), d.ShippablePrice()
	if err := validateIdentity(id, name); err != nil {
		return err
	}
	if err := validatePrice(price); err != nil {
		return err
	}
	s.id, s.name, s.price = id, name, price
	s.rowID = ShippingRowID(id, name, price)
	return nil
}

// UpdateFromAttributes applies the set fields of attrs and regenerates the row id.
func (s *Shipping) UpdateFromAttributes(attrs Attributes) error {
	next := *s
	next.id = stringOr(attrs.ID, s.id)
	next.name = stringOr(attrs.Name, s.name)
	next.price = floatOr(attrs.Price, s.price)
	if err := validateIdentity(next.id, next.name); err != nil {
		return err
	}
	if err := validatePrice(next.price); err != nil {
		return err
	}
	if attrs.Qty != nil {
		if err := next.SetQuantity(*attrs.Qty); err != nil {
			return err
		}
	}
	if attrs.TaxRate != nil {
		if err := next.SetTaxRate(*attrs.TaxRate); err != nil {
			return err
		}
	}
	if attrs.ShippingDiscount != nil {
		if err := next.SetShippingDiscount(*attrs.ShippingDiscount); err != nil {
			return err
		}
	}
	if attrs.FreeShipping != nil {
		next.free = *attrs.FreeShipping
	}
	next.rowID = ShippingRowID(next.id, next.name, next.price)
	*s = next
	return nil
}

// PriceDiscount equals Price: the shipping discount is already folded into the effective price.
func (s *Shipping) PriceDiscount() float64 { return s.Price() }

// DiscountAmount is the per-unit reduction from the base price.
func (s *Shipping) DiscountAmount() float64 { return s.price - s.Price() }

func (s *Shipping) Tax() float64           { return s.Price() * (s.taxRate / 100) }
func (s *Shipping) PriceTax() float64      { return s.Price() + s.Tax() }
func (s *Shipping) Subtotal() float64      { return s.qty * s.Price() }
func (s *Shipping) Total() float64         { return s.qty * s.PriceTax() }
func (s *Shipping) TaxTotal() float64      { return s.qty * s.Tax() }
func (s *Shipping) DiscountTotal() float64 { return s.qty * s.DiscountAmount() }

type shippingJSON struct {
	RowID            string       `json:"rowId"`
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Qty              float64      `json:"qty"`
	Price            float64      `json:"price"`
	TaxRate          float64      `json:"taxRate"`
	FreeShipping     bool         `json:"freeShipping,omitempty"`
	ShippingDiscount float64      `json:"shippingDiscount,omitempty"`
	Association      *Association `json:"association,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *Shipping) MarshalJSON() ([]byte, error) {
	return json.Marshal(shippingJSON{
		RowID:            s.rowID,
		ID:               s.id,
		Name:             s.name,
		Qty:              s.qty,
		Price:            s.price,
		TaxRate:          s.taxRate,
		FreeShipping:     s.free,
		ShippingDiscount: s.shippingDiscount,
		Association:      s.association,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The row id is derived again from the decoded fields.
func (s *Shipping) UnmarshalJSON(data []byte) error {
	var raw shippingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := NewShipping(raw.ID, raw.Name, raw.Price)
	if err != nil {
		return err
	}
	decoded.qty = raw.Qty
	decoded.taxRate = raw.TaxRate
	decoded.free = raw.FreeShipping
	decoded.shippingDiscount = raw.ShippingDiscount
	decoded.association = raw.Association
	*s = *decoded
	return nil
}
