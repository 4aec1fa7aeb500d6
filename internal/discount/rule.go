package discount

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/cartkit/internal/money"
)

// ErrInvalidArgument is returned when a rule cannot be constructed from the provided values.
var ErrInvalidArgument = errors.New("invalid discount argument")

// Type distinguishes fixed amount discounts from percentage discounts.
type Type string

const (
	// Currency discounts subtract a fixed amount.
	Currency Type = "currency"
	// Percent discounts subtract a percentage of the price.
	Percent Type = "percent"
)

// ParseType normalises a discount type, accepting the legacy monetary/percentage spellings.
func ParseType(value string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "currency", "monetary", "fixed":
		return Currency, nil
	case "percent", "percentage":
		return Percent, nil
	default:
		return "", fmt.Errorf("unknown discount type %q: %w", value, ErrInvalidArgument)
	}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t == Currency || t == Percent
}

// Rule is a single discount applied to a price.
type Rule struct {
	value       float64
	typ         Type
	description string
}

// New validates and constructs a discount rule.
func New(value float64, typ Type, description string) (Rule, error) {
	if !typ.Valid() {
		return Rule{}, fmt.Errorf("unknown discount type %q: %w", typ, ErrInvalidArgument)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Rule{}, fmt.Errorf("discount value must be finite: %w", ErrInvalidArgument)
	}
	if value < 0 {
		return Rule{}, fmt.Errorf("discount value must not be negative: %w", ErrInvalidArgument)
	}
	if typ == Percent && value > 100 {
		return Rule{}, fmt.Errorf("percent discount must be between 0 and 100: %w", ErrInvalidArgument)
	}
	return Rule{value: value, typ: typ, description: description}, nil
}

// MustNew is New for static rules known to be valid.
func MustNew(value float64, typ Type, description string) Rule {
	r, err := New(value, typ, description)
	if err != nil {
		panic(err)
	}
	return r
}

// Value returns the configured amount or percentage.
func (r Rule) Value() float64 { return r.value }

// Type returns the rule type.
func (r Rule) Type() Type { return r.typ }

// Description returns the optional label.
func (r Rule) Description() string { return r.description }

// IsZero reports whether the rule has no effect.
func (r Rule) IsZero() bool { return r.value == 0 || !r.typ.Valid() }

// Calculate reports the discount amount for price. A currency discount larger than
// the price reports 0 while Apply still floors the discounted price at 0.
func (r Rule) Calculate(price float64) float64 {
	switch r.typ {
	case Currency:
		if r.value > price {
			return 0
		}
		return r.value
	case Percent:
		return price * (r.value / 100)
	default:
		return 0
	}
}

// Apply returns the price after the discount, never below zero.
func (r Rule) Apply(price float64) float64 {
	switch r.typ {
	case Currency:
		out := price - r.value
		if out < 0 {
			return 0
		}
		return out
	case Percent:
		return price - r.Calculate(price)
	default:
		return price
	}
}

// Symbol returns "-" for currency rules and "%" for percent rules.
func (r Rule) Symbol() string {
	if r.typ == Percent {
		return "%"
	}
	return "-"
}

// Format renders the rule for display, e.g. "- $5.00" or "- 10.00%".
func (r Rule) Format(f money.Formatter, opts ...money.Option) string {
	if r.typ == Percent {
		return "- " + f.Format(r.value, append(opts, money.WithoutCurrency())...) + "%"
	}
	return "- " + f.Format(r.value, opts...)
}

type ruleJSON struct {
	Value       float64 `json:"value"`
	Type        Type    `json:"type"`
	Description string  `json:"description,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON{Value: r.value, Type: r.typ, Description: r.description})
}

// UnmarshalJSON implements json.Unmarshaler and re-validates the rule.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typ, err := ParseType(string(raw.Type))
	if err != nil {
		return err
	}
	parsed, err := New(raw.Value, typ, raw.Description)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
