package item

import "strings"

// Buyable is implemented by entities that can become a product line.
type Buyable interface {
	BuyableIdentifier(opts Options) string
	BuyableDescription(opts Options) string
	BuyablePrice(opts Options) float64
	BuyableWeight(opts Options) float64
}

// Shippable is implemented by entities that can become the shipping line.
type Shippable interface {
	ShippableIdentifier() string
	ShippableDescription() string
	ShippablePrice() float64
}

// Discountable is implemented by entities that can become a discount line.
// DiscountableType returns "currency" or "percent".
type Discountable interface {
	DiscountableIdentifier(opts Options) string
	DiscountableDescription(opts Options) string
	DiscountableValue(opts Options) float64
	DiscountableType(opts Options) string
}

// CanBeBought is a Buyable for plain entities. Embed it, or fill it directly.
// The identifier is Key when set, otherwise ID. The description is the first
// non-empty of Name, Title and Description; the price the first non-zero of
// Price, Value and Amount.
type CanBeBought struct {
	Key         string
	ID          string
	Name        string
	Title       string
	Description string
	Price       float64
	Value       float64
	Amount      float64
	Weight      float64
}

func (c CanBeBought) BuyableIdentifier(Options) string {
	if c.Key != "" {
		return c.Key
	}
	return c.ID
}

func (c CanBeBought) BuyableDescription(Options) string {
	for _, v := range []string{c.Name, c.Title, c.Description} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (c CanBeBought) BuyablePrice(Options) float64 {
	for _, v := range []float64{c.Price, c.Value, c.Amount} {
		if v != 0 {
			return v
		}
	}
	return 0
}

func (c CanBeBought) BuyableWeight(Options) float64 { return c.Weight }
