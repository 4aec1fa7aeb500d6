package item

import "github.com/noah-isme/cartkit/internal/money"

// Formatted renders the amounts of a priced line. Each accessor starts from the
// formatter defaults and applies the per-call overrides on top.
type Formatted struct {
	line Priced
	f    money.Formatter
}

// Format binds line to f.
func Format(line Priced, f money.Formatter) Formatted {
	return Formatted{line: line, f: f}
}

func (v Formatted) Price(opts ...money.Option) string {
	return v.f.Format(v.line.Price(), opts...)
}

func (v Formatted) PriceDiscount(opts ...money.Option) string {
	return v.f.Format(v.line.PriceDiscount(), opts...)
}

// Discount is the per-unit discount amount.
func (v Formatted) Discount(opts ...money.Option) string {
	return v.f.Format(v.line.DiscountAmount(), opts...)
}

func (v Formatted) Tax(opts ...money.Option) string {
	return v.f.Format(v.line.Tax(), opts...)
}

func (v Formatted) PriceTax(opts ...money.Option) string {
	return v.f.Format(v.line.PriceTax(), opts...)
}

func (v Formatted) Subtotal(opts ...money.Option) string {
	return v.f.Format(v.line.Subtotal(), opts...)
}

func (v Formatted) Total(opts ...money.Option) string {
	return v.f.Format(v.line.Total(), opts...)
}

func (v Formatted) TaxTotal(opts ...money.Option) string {
	return v.f.Format(v.line.TaxTotal(), opts...)
}

func (v Formatted) DiscountTotal(opts ...money.Option) string {
	return v.f.Format(v.line.DiscountTotal(), opts...)
}

// Map renders every amount with the defaults, keyed by the JSON names used on the wire.
func (v Formatted) Map() map[string]string {
	return map[string]string{
		"price":         v.Price(),
		"priceDiscount": v.PriceDiscount(),
		"discount":      v.Discount(),
		"tax":           v.Tax(),
		"priceTax":      v.PriceTax(),
		"subtotal":      v.Subtotal(),
		"total":         v.Total(),
		"taxTotal":      v.TaxTotal(),
		"discountTotal": v.DiscountTotal(),
	}
}
