package item

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidArgument is returned when an identifier, name, price, quantity or discount fails validation.
var ErrInvalidArgument = errors.New("invalid argument")

// Kind identifies the line item variant.
type Kind string

const (
	KindProduct  Kind = "product"
	KindShipping Kind = "shipping"
	KindDiscount Kind = "discount"
)

// Item is the capability set shared by every line held by a cart.
type Item interface {
	Kind() Kind
	RowID() string
	ID() string
	Name() string
	Qty() float64
	// SetQuantity accepts zero and negative values; removal is the cart's concern.
	SetQuantity(qty float64) error
	UpdateFromAttributes(attrs Attributes) error
	Associate(ref Association)
	Association() *Association
}

// Priced is implemented by lines that take part in price and tax totals.
type Priced interface {
	Item
	Price() float64
	TaxRate() float64
	SetTaxRate(rate float64) error
	PriceDiscount() float64
	DiscountAmount() float64
	Tax() float64
	PriceTax() float64
	Subtotal() float64
	Total() float64
	TaxTotal() float64
	DiscountTotal() float64
}

// Association is a weak reference to an external entity: a type tag plus a lookup key.
type Association struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// ValidateQuantity checks a quantity supplied when a line is created.
func ValidateQuantity(qty float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return fmt.Errorf("quantity must be numeric: %w", ErrInvalidArgument)
	}
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidArgument)
	}
	return nil
}

func validateNumeric(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be numeric: %w", field, ErrInvalidArgument)
	}
	return nil
}

func validateIdentity(id, name string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("please supply a valid identifier: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("please supply a valid name: %w", ErrInvalidArgument)
	}
	return nil
}

func validatePrice(price float64) error {
	if err := validateNumeric("price", price); err != nil {
		return err
	}
	if price < 0 {
		return fmt.Errorf("price must not be negative: %w", ErrInvalidArgument)
	}
	return nil
}

func validateTaxRate(rate float64) error {
	if err := validateNumeric("tax rate", rate); err != nil {
		return err
	}
	if rate < 0 {
		return fmt.Errorf("tax rate must not be negative: %w", ErrInvalidArgument)
	}
	return nil
}

// Attributes is a key-optional description of a line. Nil fields are left untouched on update.
type Attributes struct {
	ID               *string     `json:"id,omitempty"`
	Name             *string     `json:"name,omitempty"`
	Qty              *float64    `json:"qty,omitempty"`
	Price            *float64    `json:"price,omitempty"`
	Weight           *float64    `json:"weight,omitempty"`
	WeightUnit       *WeightUnit `json:"weightUnit,omitempty"`
	Options          Options     `json:"options,omitempty"`
	TaxRate          *float64    `json:"taxRate,omitempty"`
	Value            *float64    `json:"value,omitempty"`
	Type             *string     `json:"type,omitempty"`
	FreeShipping     *bool       `json:"freeShipping,omitempty"`
	ShippingDiscount *float64    `json:"shippingDiscount,omitempty"`
}

// String returns a pointer to v for building Attributes.
func String(v string) *string { return &v }

// Float returns a pointer to v for building Attributes.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v for building Attributes.
func Bool(v bool) *bool { return &v }

func stringOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func floatOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

func requireFields(attrs Attributes, fields ...string) error {
	for _, f := range fields {
		missing := false
		switch f {
		case "id":
			missing = attrs.ID == nil
		case "name":
			missing = attrs.Name == nil
		case "price":
			missing = attrs.Price == nil
		case "value":
			missing = attrs.Value == nil
		case "type":
			missing = attrs.Type == nil
		}
		if missing {
			return fmt.Errorf("attribute %q is required: %w", f, ErrInvalidArgument)
		}
	}
	return nil
}
