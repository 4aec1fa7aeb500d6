package item

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/cartkit/internal/discount"
)

// WeightUnit is the unit family a product weight is declared in.
type WeightUnit string

const (
	Imperial WeightUnit = "imperial"
	Metric   WeightUnit = "metric"
)

// Product is a purchasable line.
type Product struct {
	rowID         string
	id            string
	name          string
	qty           float64
	price         float64
	weight        float64
	unit          WeightUnit
	options       Options
	taxRate       float64
	discount      *discount.Rule
	association   *Association
	taxOnDiscount bool
}

// NewProduct validates the attributes and builds a product line with a zero quantity.
func NewProduct(id, name string, price float64, opts Options) (*Product, error) {
	if err := validateIdentity(id, name); err != nil {
		return nil, err
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}
	rowID, err := ProductRowID(id, opts)
	if err != nil {
		return nil, err
	}
	return &Product{
		rowID:   rowID,
		id:      id,
		name:    name,
		price:   price,
		options: opts.Clone(),
	}, nil
}

// ProductFromBuyable builds a product line from an external descriptor.
func ProductFromBuyable(b Buyable, opts Options) (*Product, error) {
	if b == nil {
		return nil, fmt.Errorf("buyable is nil: %w", ErrInvalidArgument)
	}
	p, err := NewProduct(b.BuyableIdentifier(opts), b.BuyableDescription(opts), b.BuyablePrice(opts), opts)
	if err != nil {
		return nil, err
	}
	if err := p.SetWeight(b.BuyableWeight(opts)); err != nil {
		return nil, err
	}
	return p, nil
}

// ProductFromAttributes builds a product line from a key-optional attribute set.
// id, name and price are required; qty is applied when present.
func ProductFromAttributes(attrs Attributes) (*Product, error) {
	if err := requireFields(attrs, "id", "name", "price"); err != nil {
		return nil, err
	}
	p, err := NewProduct(*attrs.ID, *attrs.Name, *attrs.Price, attrs.Options)
	if err != nil {
		return nil, err
	}
	if attrs.Qty != nil {
		if err := ValidateQuantity(*attrs.Qty); err != nil {
			return nil, err
		}
		p.qty = *attrs.Qty
	}
	if attrs.Weight != nil {
		if err := p.SetWeight(*attrs.Weight); err != nil {
			return nil, err
		}
	}
	if attrs.WeightUnit != nil {
		p.unit = *attrs.WeightUnit
	}
	if attrs.TaxRate != nil {
		if err := p.SetTaxRate(*attrs.TaxRate); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Product) Kind() Kind          { return KindProduct }
func (p *Product) RowID() string       { return p.rowID }
func (p *Product) ID() string          { return p.id }
func (p *Product) Name() string        { return p.name }
func (p *Product) Qty() float64        { return p.qty }
func (p *Product) Price() float64      { return p.price }
func (p *Product) Weight() float64     { return p.weight }
func (p *Product) TaxRate() float64    { return p.taxRate }
func (p *Product) Options() Options    { return p.options.Clone() }
func (p *Product) TaxOnDiscount() bool { return p.taxOnDiscount }

// Discount returns the per-line discount rule, if any.
func (p *Product) Discount() *discount.Rule {
	if p.discount == nil {
		return nil
	}
	r := *p.discount
	return &r
}

// Association returns the weak entity reference, if any.
func (p *Product) Association() *Association {
	if p.association == nil {
		return nil
	}
	a := *p.association
	return &a
}

// WeightUnit reports the declared unit family; an option "unit" of "metric" also selects metric.
func (p *Product) WeightUnit() WeightUnit {
	if p.unit != "" {
		return p.unit
	}
	if u, ok := p.options.String("unit"); ok && strings.EqualFold(u, string(Metric)) {
		return Metric
	}
	return Imperial
}

// SetQuantity sets the quantity.
func (p *Product) SetQuantity(qty float64) error {
	if err := validateNumeric("quantity", qty); err != nil {
		return err
	}
	p.qty = qty
	return nil
}

// SetTaxRate sets the tax rate in percent.
func (p *Product) SetTaxRate(rate float64) error {
	if err := validateTaxRate(rate); err != nil {
		return err
	}
	p.taxRate = rate
	return nil
}

// SetWeight sets the weight per unit.
func (p *Product) SetWeight(weight float64) error {
	if err := validateNumeric("weight", weight); err != nil {
		return err
	}
	if weight < 0 {
		return fmt.Errorf("weight must not be negative: %w", ErrInvalidArgument)
	}
	p.weight = weight
	return nil
}

// SetWeightUnit sets the declared unit family.
func (p *Product) SetWeightUnit(unit WeightUnit) { p.unit = unit }

// SetDiscount attaches a discount rule built from value and type.
func (p *Product) SetDiscount(value float64, typ discount.Type, description string) error {
	r, err := discount.New(value, typ, description)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	p.discount = &r
	return nil
}

// SetDiscountRule attaches r, or clears the discount when r is nil.
func (p *Product) SetDiscountRule(r *discount.Rule) {
	if r == nil {
		p.discount = nil
		return
	}
	cp := *r
	p.discount = &cp
}

// SetTaxOnDiscount selects the discounted price as the tax base.
func (p *Product) SetTaxOnDiscount(enabled bool) { p.taxOnDiscount = enabled }

// Associate stores a weak reference to an external entity.
func (p *Product) Associate(ref Association) {
	if ref.Key == "" {
		ref.Key = p.id
	}
	p.association = &ref
}

// UpdateFromBuyable re-pulls identifier, name, price and weight from b.
func (p *Product) UpdateFromBuyable(b Buyable) error {
	if b == nil {
		return fmt.Errorf("buyable is nil: %w", ErrInvalidArgument)
	}
	id, name, price, weight := b.BuyableIdentifier(p.options), b.BuyableDescription(p.options), b.BuyablePrice(p.options), b.BuyableWeight(p.options)
	if err := validateIdentity(id, name); err != nil {
		return err
	}
	if err := validatePrice(price); err != nil {
		return err
	}
	if err := validateNumeric("weight", weight); err != nil || weight < 0 {
		return fmt.Errorf("weight must not be negative: %w", ErrInvalidArgument)
	}
	rowID, err := ProductRowID(id, p.options)
	if err != nil {
		return err
	}
	p.id, p.name, p.price, p.weight, p.rowID = id, name, price, weight, rowID
	return nil
}

// UpdateFromAttributes applies the set fields of attrs and regenerates the row id.
// Validation happens before anything is changed.
func (p *Product) UpdateFromAttributes(attrs Attributes) error {
	id := stringOr(attrs.ID, p.id)
	name := stringOr(attrs.Name, p.name)
	price := floatOr(attrs.Price, p.price)
	qty := floatOr(attrs.Qty, p.qty)
	weight := floatOr(attrs.Weight, p.weight)
	taxRate := floatOr(attrs.TaxRate, p.taxRate)
	opts := p.options
	if attrs.Options != nil {
		opts = attrs.Options.Clone()
	}
	if err := validateIdentity(id, name); err != nil {
		return err
	}
	if err := validatePrice(price); err != nil {
		return err
	}
	if err := validateNumeric("quantity", qty); err != nil {
		return err
	}
	if err := validateNumeric("weight", weight); err != nil || weight < 0 {
		return fmt.Errorf("weight must not be negative: %w", ErrInvalidArgument)
	}
	if err := validateTaxRate(taxRate); err != nil {
		return err
	}
	rowID, err := ProductRowID(id, opts)
	if err != nil {
		return err
	}
	p.id, p.name, p.price, p.qty, p.weight, p.taxRate, p.options, p.rowID = id, name, price, qty, weight, taxRate, opts, rowID
	if attrs.WeightUnit != nil {
		p.unit = *attrs.WeightUnit
	}
	return nil
}

// PriceDiscount is the unit price after the line discount.
func (p *Product) PriceDiscount() float64 {
	if p.discount == nil {
		return p.price
	}
	return p.discount.Apply(p.price)
}

// DiscountAmount is the per-unit discount as reported by the rule.
func (p *Product) DiscountAmount() float64 {
	if p.discount == nil {
		return 0
	}
	return p.discount.Calculate(p.price)
}

// Tax is the per-unit tax.
func (p *Product) Tax() float64 {
	base := p.price
	if p.taxOnDiscount {
		base = p.PriceDiscount()
	}
	return base * (p.taxRate / 100)
}

func (p *Product) PriceTax() float64      { return p.PriceDiscount() + p.Tax() }
func (p *Product) Subtotal() float64      { return p.qty * p.price }
func (p *Product) Total() float64         { return p.qty * p.PriceTax() }
func (p *Product) TaxTotal() float64      { return p.Tax() * p.qty }
func (p *Product) DiscountTotal() float64 { return p.qty * p.DiscountAmount() }

type productJSON struct {
	RowID         string         `json:"rowId"`
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Qty           float64        `json:"qty"`
	Price         float64        `json:"price"`
	Weight        float64        `json:"weight,omitempty"`
	WeightUnit    WeightUnit     `json:"weightUnit,omitempty"`
	Options       Options        `json:"options"`
	TaxRate       float64        `json:"taxRate"`
	Discount      *discount.Rule `json:"discount,omitempty"`
	Association   *Association   `json:"association,omitempty"`
	TaxOnDiscount bool           `json:"taxOnDiscount,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p *Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(productJSON{
		RowID:         p.rowID,
		ID:            p.id,
		Name:          p.name,
		Qty:           p.qty,
		Price:         p.price,
		Weight:        p.weight,
		WeightUnit:    p.unit,
		Options:       p.options,
		TaxRate:       p.taxRate,
		Discount:      p.discount,
		Association:   p.association,
		TaxOnDiscount: p.taxOnDiscount,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The row id is derived again from the decoded fields.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw productJSON
	if err := decodeNumbers(data, &raw); err != nil {
		return err
	}
	decoded, err := NewProduct(raw.ID, raw.Name, raw.Price, raw.Options)
	if err != nil {
		return err
	}
	decoded.qty = raw.Qty
	decoded.weight = raw.Weight
	decoded.unit = raw.WeightUnit
	decoded.taxRate = raw.TaxRate
	decoded.discount = raw.Discount
	decoded.association = raw.Association
	decoded.taxOnDiscount = raw.TaxOnDiscount
	*p = *decoded
	return nil
}
