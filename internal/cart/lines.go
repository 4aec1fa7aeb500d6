package cart

import (
	"context"
	"fmt"

	"github.com/noah-isme/cartkit/internal/discount"
	"github.com/noah-isme/cartkit/internal/events"
	"github.com/noah-isme/cartkit/internal/item"
)

// BuyableLine is one entry of a batch add from descriptors.
type BuyableLine struct {
	Buyable item.Buyable
	Qty     float64
	Options item.Options
}

// Add builds a product line and merges it into the instance. Adding a line whose
// row id is already present adds the quantities together.
func (c *Cart) Add(ctx context.Context, id, name string, qty, price float64, opts item.Options) (*item.Product, error) {
	p, err := c.newProduct(id, name, qty, price, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.addProducts(ctx, "add", p)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// AddBuyable builds a product line from b and associates it with b. A zero
// quantity adds one unit.
func (c *Cart) AddBuyable(ctx context.Context, b item.Buyable, qty float64, opts item.Options) (*item.Product, error) {
	p, err := c.productFromBuyable(b, qty, opts)
	if err != nil {
		return nil, err
	}
	out, err := c.addProducts(ctx, "add", p)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// AddAttributes builds a product line from attrs; the quantity defaults to one.
func (c *Cart) AddAttributes(ctx context.Context, attrs item.Attributes) (*item.Product, error) {
	p, err := c.productFromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	out, err := c.addProducts(ctx, "add", p)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// AddBatch adds every attribute set. Every entry is validated before anything is
// written, so one invalid entry fails the whole batch.
func (c *Cart) AddBatch(ctx context.Context, batch []item.Attributes) ([]*item.Product, error) {
	products := make([]*item.Product, 0, len(batch))
	for i, attrs := range batch {
		p, err := c.productFromAttributes(attrs)
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
		products = append(products, p)
	}
	return c.addProducts(ctx, "add_batch", products...)
}

// AddBuyables is AddBatch for descriptors.
func (c *Cart) AddBuyables(ctx context.Context, lines []BuyableLine) ([]*item.Product, error) {
	products := make([]*item.Product, 0, len(lines))
	for i, line := range lines {
		p, err := c.productFromBuyable(line.Buyable, line.Qty, line.Options)
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
		products = append(products, p)
	}
	return c.addProducts(ctx, "add_batch", products...)
}

func (c *Cart) newProduct(id, name string, qty, price float64, opts item.Options) (*item.Product, error) {
	if err := item.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	p, err := item.NewProduct(id, name, price, opts)
	if err != nil {
		return nil, err
	}
	if err := p.SetQuantity(qty); err != nil {
		return nil, err
	}
	return p, c.applyDefaults(p)
}

func (c *Cart) productFromBuyable(b item.Buyable, qty float64, opts item.Options) (*item.Product, error) {
	qty = defaultQty(qty)
	if err := item.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	p, err := item.ProductFromBuyable(b, opts)
	if err != nil {
		return nil, err
	}
	if err := p.SetQuantity(qty); err != nil {
		return nil, err
	}
	if ref, err := c.cfg.Models.Reference(b); err == nil {
		p.Associate(ref)
	}
	return p, c.applyDefaults(p)
}

func (c *Cart) productFromAttributes(attrs item.Attributes) (*item.Product, error) {
	if attrs.Qty == nil {
		attrs.Qty = item.Float(1)
	}
	p, err := item.ProductFromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	return p, c.applyDefaults(p)
}

func defaultQty(qty float64) float64 {
	if qty == 0 {
		return 1
	}
	return qty
}

// addProducts merges products into the instance in order and publishes one event per line.
// The result holds each row once, in first-seen order, with its merged quantity.
func (c *Cart) addProducts(ctx context.Context, op string, products ...*item.Product) ([]*item.Product, error) {
	instance := c.instance
	err := c.mutate(ctx, op, func(content *Content) ([]notice, error) {
		notices := make([]notice, 0, len(products))
		for _, p := range products {
			if existing, ok := content.Get(p.RowID()); ok {
				if err := p.SetQuantity(p.Qty() + existing.Qty()); err != nil {
					return nil, err
				}
			}
			content.Put(p)
			notices = append(notices, c.notice(events.TopicItemAdded, instance, p))
		}
		return notices, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*item.Product, 0, len(products))
	seen := make(map[string]int, len(products))
	for _, p := range products {
		if i, ok := seen[p.RowID()]; ok {
			out[i] = p
			continue
		}
		seen[p.RowID()] = len(out)
		out = append(out, p)
	}
	return out, nil
}

// Shipping sets the shipping line of the instance, replacing any previous one.
func (c *Cart) Shipping(ctx context.Context, id, name string, price float64) (*item.Shipping, error) {
	s, err := item.NewShipping(id, name, price)
	if err != nil {
		return nil, err
	}
	return c.putShipping(ctx, s)
}

// ShippingFromShippable sets the shipping line from s and associates it with s.
// A zero quantity means one.
func (c *Cart) ShippingFromShippable(ctx context.Context, s item.Shippable, qty float64) (*item.Shipping, error) {
	qty = defaultQty(qty)
	if err := item.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	line, err := item.ShippingFromShippable(s)
	if err != nil {
		return nil, err
	}
	if err := line.SetQuantity(qty); err != nil {
		return nil, err
	}
	if ref, err := c.cfg.Models.Reference(s); err == nil {
		line.Associate(ref)
	}
	return c.putShipping(ctx, line)
}

// ShippingAttributes sets the shipping line from attrs.
func (c *Cart) ShippingAttributes(ctx context.Context, attrs item.Attributes) (*item.Shipping, error) {
	s, err := item.ShippingFromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	return c.putShipping(ctx, s)
}

func (c *Cart) putShipping(ctx context.Context, s *item.Shipping) (*item.Shipping, error) {
	if err := c.applyDefaults(s); err != nil {
		return nil, err
	}
	instance := c.instance
	err := c.mutate(ctx, "shipping", func(content *Content) ([]notice, error) {
		for _, rowID := range content.OfKind(item.KindShipping).Keys() {
			content.Delete(rowID)
		}
		content.Put(s)
		return []notice{c.notice(events.TopicShippingAdded, instance, s)}, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Discount adds a discount line. A line with the same row id has its quantity increased.
func (c *Cart) Discount(ctx context.Context, id, name string, qty, value float64, typ string) (*item.DiscountLine, error) {
	if err := item.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	t, err := discount.ParseType(typ)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	d, err := item.NewDiscountLine(id, name, value, t)
	if err != nil {
		return nil, err
	}
	if err := d.SetQuantity(qty); err != nil {
		return nil, err
	}
	return c.addDiscount(ctx, d)
}

// DiscountFromDiscountable adds a discount line from d and associates it with d.
// A zero quantity means one.
func (c *Cart) DiscountFromDiscountable(ctx context.Context, d item.Discountable, qty float64, opts item.Options) (*item.DiscountLine, error) {
	qty = defaultQty(qty)
	if err := item.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	line, err := item.DiscountFromDiscountable(d, opts)
	if err != nil {
		return nil, err
	}
	if err := line.SetQuantity(qty); err != nil {
		return nil, err
	}
	if ref, err := c.cfg.Models.Reference(d); err == nil {
		line.Associate(ref)
	}
	return c.addDiscount(ctx, line)
}

// DiscountAttributes adds a discount line from attrs; the quantity defaults to one.
func (c *Cart) DiscountAttributes(ctx context.Context, attrs item.Attributes) (*item.DiscountLine, error) {
	if attrs.Qty == nil {
		attrs.Qty = item.Float(1)
	}
	d, err := item.DiscountFromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	return c.addDiscount(ctx, d)
}

func (c *Cart) addDiscount(ctx context.Context, d *item.DiscountLine) (*item.DiscountLine, error) {
	instance := c.instance
	err := c.mutate(ctx, "discount", func(content *Content) ([]notice, error) {
		if existing, ok := content.Get(d.RowID()); ok {
			if err := d.SetQuantity(d.Qty() + existing.Qty()); err != nil {
				return nil, err
			}
		}
		content.Put(d)
		return []notice{c.notice(events.TopicDiscountAdded, instance, d)}, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Update sets the quantity of rowID. A quantity of zero or less removes the row.
// The returned line is nil when the row was removed.
func (c *Cart) Update(ctx context.Context, rowID string, qty float64) (item.Item, error) {
	return c.update(ctx, rowID, func(it item.Item) error {
		return it.SetQuantity(qty)
	})
}

// UpdateBuyable re-pulls the product line rowID from b.
func (c *Cart) UpdateBuyable(ctx context.Context, rowID string, b item.Buyable) (item.Item, error) {
	return c.update(ctx, rowID, func(it item.Item) error {
		p, ok := it.(*item.Product)
		if !ok {
			return fmt.Errorf("row %s is a %s line, not a product: %w", rowID, it.Kind(), ErrInvalidArgument)
		}
		return p.UpdateFromBuyable(b)
	})
}

// UpdateShippable re-pulls the shipping line rowID from s.
func (c *Cart) UpdateShippable(ctx context.Context, rowID string, s item.Shippable) (item.Item, error) {
	return c.update(ctx, rowID, func(it item.Item) error {
		line, ok := it.(*item.Shipping)
		if !ok {
			return fmt.Errorf("row %s is a %s line, not shipping: %w", rowID, it.Kind(), ErrInvalidArgument)
		}
		return line.UpdateFromShippable(s)
	})
}

// UpdateDiscountable re-pulls the discount line rowID from d.
func (c *Cart) UpdateDiscountable(ctx context.Context, rowID string, d item.Discountable) (item.Item, error) {
	return c.update(ctx, rowID, func(it item.Item) error {
		line, ok := it.(*item.DiscountLine)
		if !ok {
			return fmt.Errorf("row %s is a %s line, not a discount: %w", rowID, it.Kind(), ErrInvalidArgument)
		}
		return line.UpdateFromDiscountable(d)
	})
}

// UpdateAttributes applies a partial update to rowID.
func (c *Cart) UpdateAttributes(ctx context.Context, rowID string, attrs item.Attributes) (item.Item, error) {
	return c.update(ctx, rowID, func(it item.Item) error {
		return it.UpdateFromAttributes(attrs)
	})
}

// update applies fn to rowID, then re-keys, merges or removes the line as its new
// row id and quantity require.
func (c *Cart) update(ctx context.Context, rowID string, fn func(item.Item) error) (item.Item, error) {
	instance := c.instance
	var result item.Item
	err := c.mutate(ctx, "update", func(content *Content) ([]notice, error) {
		it, ok := content.Get(rowID)
		if !ok {
			return nil, fmt.Errorf("the cart does not contain row %s: %w", rowID, ErrInvalidRowID)
		}
		if err := fn(it); err != nil {
			return nil, err
		}
		if newID := it.RowID(); newID != rowID {
			if existing, ok := content.Get(newID); ok {
				if err := it.SetQuantity(existing.Qty() + it.Qty()); err != nil {
					return nil, err
				}
				content.Delete(rowID)
				content.Put(it)
			} else {
				content.Rename(rowID, it)
			}
		}
		if it.Qty() <= 0 {
			content.Delete(it.RowID())
			n := c.notice(events.TopicItemRemoved, instance, it)
			return []notice{n}, nil
		}
		content.Put(it)
		result = it
		return []notice{c.notice(events.TopicItemUpdated, instance, it)}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Remove deletes rowID from the instance.
func (c *Cart) Remove(ctx context.Context, rowID string) error {
	instance := c.instance
	return c.mutate(ctx, "remove", func(content *Content) ([]notice, error) {
		it, ok := content.Get(rowID)
		if !ok {
			return nil, fmt.Errorf("the cart does not contain row %s: %w", rowID, ErrInvalidRowID)
		}
		content.Delete(rowID)
		return []notice{c.notice(events.TopicItemRemoved, instance, it)}, nil
	})
}

// Associate links rowID to entity: a registered type name or a live model.
func (c *Cart) Associate(ctx context.Context, rowID string, entity any) error {
	ref, err := c.cfg.Models.Reference(entity)
	if err != nil {
		return err
	}
	return c.mutate(ctx, "associate", func(content *Content) ([]notice, error) {
		it, ok := content.Get(rowID)
		if !ok {
			return nil, fmt.Errorf("the cart does not contain row %s: %w", rowID, ErrInvalidRowID)
		}
		it.Associate(ref)
		return nil, nil
	})
}

// Model dereferences the association of rowID through the model registry.
func (c *Cart) Model(ctx context.Context, rowID string) (any, error) {
	it, err := c.Get(ctx, rowID)
	if err != nil {
		return nil, err
	}
	ref := it.Association()
	if ref == nil {
		return nil, fmt.Errorf("row %s has no association: %w", rowID, item.ErrModelNotFound)
	}
	return c.cfg.Models.Resolve(ctx, *ref)
}

// SetTax sets the tax rate of rowID.
func (c *Cart) SetTax(ctx context.Context, rowID string, rate float64) error {
	return c.mutate(ctx, "set_tax", func(content *Content) ([]notice, error) {
		it, ok := content.Get(rowID)
		if !ok {
			return nil, fmt.Errorf("the cart does not contain row %s: %w", rowID, ErrInvalidRowID)
		}
		priced, ok := it.(item.Priced)
		if !ok {
			return nil, fmt.Errorf("row %s is a %s line and carries no tax: %w", rowID, it.Kind(), ErrInvalidArgument)
		}
		return nil, priced.SetTaxRate(rate)
	})
}

// ApplyFreeShipping marks the shipping line as free. It reports false when the
// instance holds no shipping line.
func (c *Cart) ApplyFreeShipping(ctx context.Context) (bool, error) {
	content, err := c.Content(ctx)
	if err != nil {
		return false, err
	}
	rows := content.OfKind(item.KindShipping).Keys()
	if len(rows) == 0 {
		return false, nil
	}
	if _, err := c.UpdateAttributes(ctx, rows[0], item.Attributes{FreeShipping: item.Bool(true)}); err != nil {
		return false, err
	}
	return true, nil
}
