package cart

import (
	"context"
	"fmt"

	"github.com/noah-isme/cartkit/internal/discount"
	"github.com/noah-isme/cartkit/internal/item"
	"github.com/noah-isme/cartkit/internal/money"
)

const (
	poundsPerKilogram = 2.20462
	ouncesPerPound    = 16
	gramsPerKilogram  = 1000
)

// Content returns the mapping of the active instance; it is empty, never nil, when
// nothing has been stored.
func (c *Cart) Content(ctx context.Context) (*Content, error) {
	return c.load(ctx, c.instance)
}

// Get returns the line stored under rowID.
func (c *Cart) Get(ctx context.Context, rowID string) (item.Item, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return nil, err
	}
	it, ok := content.Get(rowID)
	if !ok {
		return nil, fmt.Errorf("the cart does not contain row %s: %w", rowID, ErrInvalidRowID)
	}
	return it, nil
}

// Count sums the quantity of every line.
func (c *Cart) Count(ctx context.Context) (float64, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, it := range content.Items() {
		total += it.Qty()
	}
	return total, nil
}

// Lines counts product rows only.
func (c *Cart) Lines(ctx context.Context) (int, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return 0, err
	}
	return content.OfKind(item.KindProduct).Len(), nil
}

// Weight is the combined product weight expressed in each unit family.
type Weight struct {
	Lbs    float64 `json:"lbs"`
	Ounces float64 `json:"ounces"`
	Kgs    float64 `json:"kgs"`
	Grams  float64 `json:"grams"`
}

// Weight sums weight times quantity over product rows, converting metric and
// imperial declarations into one grand total per unit family.
func (c *Cart) Weight(ctx context.Context) (Weight, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return Weight{}, err
	}
	var imperial, metric float64
	for _, it := range content.Items() {
		p, ok := it.(*item.Product)
		if !ok {
			continue
		}
		w := p.Weight() * p.Qty()
		if p.WeightUnit() == item.Metric {
			metric += w
		} else {
			imperial += w
		}
	}
	lbs := imperial + metric*poundsPerKilogram
	kgs := metric + imperial/poundsPerKilogram
	return Weight{
		Lbs:    lbs,
		Ounces: lbs * ouncesPerPound,
		Kgs:    kgs,
		Grams:  kgs * gramsPerKilogram,
	}, nil
}

// Totals is an unrounded snapshot of the cart-wide amounts. Discount rows are not
// part of these sums.
type Totals struct {
	Subtotal            float64 `json:"subtotal"`
	Tax                 float64 `json:"tax"`
	Total               float64 `json:"total"`
	SubtotalExcShipping float64 `json:"subtotalExcShipping"`
	TaxExcShipping      float64 `json:"taxExcShipping"`
	TotalExcShipping    float64 `json:"totalExcShipping"`
	Discount            float64 `json:"discount"`
}

// ComputeTotals sums the priced lines of content.
func ComputeTotals(content *Content) Totals {
	var t Totals
	for _, it := range content.Items() {
		if it.Kind() == item.KindDiscount {
			continue
		}
		p, ok := it.(item.Priced)
		if !ok {
			continue
		}
		t.Subtotal += p.Subtotal()
		t.Tax += p.TaxTotal()
		t.Total += p.Total()
		if it.Kind() == item.KindProduct {
			t.SubtotalExcShipping += p.Subtotal()
			t.TaxExcShipping += p.TaxTotal()
			t.TotalExcShipping += p.Total()
			t.Discount += p.DiscountTotal()
		}
	}
	return t
}

// Totals computes the snapshot for the active instance.
func (c *Cart) Totals(ctx context.Context) (Totals, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return Totals{}, err
	}
	return ComputeTotals(content), nil
}

func (c *Cart) formatted(ctx context.Context, pick func(Totals) float64, opts []money.Option) (string, error) {
	t, err := c.Totals(ctx)
	if err != nil {
		return "", err
	}
	return c.cfg.Formatter.Format(pick(t), opts...), nil
}

// Total formats the sum of quantity times taxed price over product and shipping rows.
func (c *Cart) Total(ctx context.Context, opts ...money.Option) (string, error) {
	return c.formatted(ctx, func(t Totals) float64 { return t.Total }, opts)
}

// TotalExcShipping is Total over product rows only.
func (c *Cart) TotalExcShipping(ctx context.Context, opts ...money.Option) (string, error) {
	return c.formatted(ctx, func(t Totals) float64 { return t.TotalExcShipping }, opts)
}

// Tax formats the tax over product and shipping rows.
func (c *Cart) Tax(ctx context.Context, opts ...money.Option) (string, error) {
	return c.formatted(ctx, func(t Totals) float64 { return t.Tax }, opts)
}

// TaxExcShipping is Tax over product rows only.
func (c *Cart) TaxExcShipping(ctx context.Context, opts ...money.Option) (string, error) {
	return c.formatted(ctx, func(t Totals) float64 { return t.TaxExcShipping }, opts)
}

// Subtotal formats quantity times untaxed price over product and shipping rows.
func (c *Cart) Subtotal(ctx context.Context, opts ...money.Option) (string, error) {
	return c.formatted(ctx, func(t Totals) float64 { return t.Subtotal }, opts)
}

// SubtotalExcShipping is Subtotal over product rows only.
func (c *Cart) SubtotalExcShipping(ctx context.Context, opts ...money.Option) (string, error) {
	return c.formatted(ctx, func(t Totals) float64 { return t.SubtotalExcShipping }, opts)
}

// DiscountTotal formats the discount granted by product line rules.
func (c *Cart) DiscountTotal(ctx context.Context, opts ...money.Option) (string, error) {
	return c.formatted(ctx, func(t Totals) float64 { return t.Discount }, opts)
}

// Search returns the lines matching pred, in insertion order.
func (c *Cart) Search(ctx context.Context, pred func(it item.Item, rowID string) bool) (*Content, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return nil, err
	}
	return content.Filter(pred), nil
}

// HasShippingItem returns the shipping rows. ok is false when there are none,
// including when the instance is empty.
func (c *Cart) HasShippingItem(ctx context.Context) (*Content, bool, error) {
	return c.hasKind(ctx, item.KindShipping)
}

// HasDiscountItem returns the discount rows. ok is false when there are none.
func (c *Cart) HasDiscountItem(ctx context.Context) (*Content, bool, error) {
	return c.hasKind(ctx, item.KindDiscount)
}

func (c *Cart) hasKind(ctx context.Context, k item.Kind) (*Content, bool, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return nil, false, err
	}
	if content.IsEmpty() {
		return nil, false, nil
	}
	matches := content.OfKind(k)
	if matches.IsEmpty() {
		return nil, false, nil
	}
	return matches, true, nil
}

// DiscountCounters accumulates the values of the discount rows by type.
// Reduction is what the rows amount to against the product subtotal.
type DiscountCounters struct {
	Monetary  float64 `json:"monetary"`
	Percent   float64 `json:"percent"`
	Reduction float64 `json:"reduction"`
}

// DiscountCounters sums quantity times value of every discount row, split by type.
func (c *Cart) DiscountCounters(ctx context.Context) (DiscountCounters, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return DiscountCounters{}, err
	}
	var subtotal float64
	for _, it := range content.OfKind(item.KindProduct).Items() {
		subtotal += it.(item.Priced).Subtotal()
	}
	var out DiscountCounters
	for _, it := range content.Items() {
		d, ok := it.(*item.DiscountLine)
		if !ok {
			continue
		}
		switch d.Type() {
		case discount.Currency:
			out.Monetary += d.Qty() * d.Value()
		case discount.Percent:
			out.Percent += d.Qty() * d.Value()
		}
		out.Reduction += d.Amount(subtotal)
	}
	return out, nil
}
