package item

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cartkit/internal/discount"
	"github.com/noah-isme/cartkit/internal/money"
)

func TestProductRowIDIgnoresOptionOrder(t *testing.T) {
	a, err := ProductRowID("sku-1", Options{"size": "L", "color": "red", "nested": map[string]any{"b": 1, "a": 2}})
	require.NoError(t, err)
	b, err := ProductRowID("sku-1", Options{"nested": map[string]any{"a": 2, "b": 1}, "color": "red", "size": "L"})
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := ProductRowID("sku-1", Options{"size": "L", "color": "red", "nested": map[string]any{"b": 1, "a": 2}, "gift": true})
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	empty, err := ProductRowID("sku-1", nil)
	require.NoError(t, err)
	alsoEmpty, err := ProductRowID("sku-1", Options{})
	require.NoError(t, err)
	require.Equal(t, empty, alsoEmpty)
	require.Len(t, empty, 64)
}

func TestRowIDsSeparateKinds(t *testing.T) {
	p, err := ProductRowID("1", nil)
	require.NoError(t, err)
	s := ShippingRowID("1", "Courier", 5)
	d := DiscountRowID("1", "Courier", 5, "currency")
	require.NotEqual(t, p, s)
	require.NotEqual(t, s, d)
	require.NotEqual(t, DiscountRowID("1", "Promo", 5, "currency"), DiscountRowID("1", "Promo", 5, "percent"))
}

func TestOptionsRejectUnserialisableValues(t *testing.T) {
	_, err := NewProduct("1", "Thing", 1, Options{"fn": func() {}})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewProductValidates(t *testing.T) {
	cases := map[string]struct {
		id, name string
		price    float64
	}{
		"empty id":       {"", "Thing", 1},
		"blank name":     {"1", "  ", 1},
		"negative price": {"1", "Thing", -0.01},
		"nan price":      {"1", "Thing", math.NaN()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewProduct(tc.id, tc.name, tc.price, nil)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestProductPricing(t *testing.T) {
	p, err := NewProduct("1", "First item", 10, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetQuantity(2))
	require.Equal(t, 20.0, p.Subtotal())
	require.Equal(t, 20.0, p.Total())

	require.NoError(t, p.SetTaxRate(19))
	require.InDelta(t, 1.9, p.Tax(), 1e-9)
	require.InDelta(t, 3.8, p.TaxTotal(), 1e-9)
	require.InDelta(t, 23.8, p.Total(), 1e-9)
	require.Equal(t, 20.0, p.Subtotal())
}

func TestProductDiscountAndTaxBase(t *testing.T) {
	p, err := NewProduct("1", "Thing", 100, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetQuantity(3))
	require.NoError(t, p.SetTaxRate(10))
	require.NoError(t, p.SetDiscount(10, discount.Percent, "promo"))

	require.InDelta(t, 90.0, p.PriceDiscount(), 1e-9)
	require.InDelta(t, 10.0, p.DiscountAmount(), 1e-9)
	require.InDelta(t, 30.0, p.DiscountTotal(), 1e-9)
	require.InDelta(t, 10.0, p.Tax(), 1e-9)
	require.InDelta(t, 100.0, p.PriceTax(), 1e-9)

	p.SetTaxOnDiscount(true)
	require.InDelta(t, 9.0, p.Tax(), 1e-9)
	require.InDelta(t, 99.0, p.PriceTax(), 1e-9)
	require.InDelta(t, 297.0, p.Total(), 1e-9)

	require.ErrorIs(t, p.SetDiscount(120, discount.Percent, ""), ErrInvalidArgument)
}

func TestProductCurrencyDiscountNeverNegative(t *testing.T) {
	p, err := NewProduct("1", "Thing", 10, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetQuantity(1))
	require.NoError(t, p.SetDiscount(25, discount.Currency, ""))
	require.Equal(t, 0.0, p.PriceDiscount())
	require.Equal(t, 0.0, p.DiscountAmount())
	require.Equal(t, 0.0, p.Total())
}

func TestSetQuantityAllowsZeroAndNegative(t *testing.T) {
	p, err := NewProduct("1", "Thing", 10, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetQuantity(0))
	require.NoError(t, p.SetQuantity(-2))
	require.Equal(t, -2.0, p.Qty())
	require.ErrorIs(t, p.SetQuantity(math.Inf(1)), ErrInvalidArgument)
}

func TestProductUpdateFromAttributesRekeys(t *testing.T) {
	p, err := ProductFromAttributes(Attributes{ID: String("1"), Name: String("Shirt"), Price: Float(20), Qty: Float(1), Options: Options{"size": "M"}})
	require.NoError(t, err)
	before := p.RowID()

	require.NoError(t, p.UpdateFromAttributes(Attributes{Price: Float(25)}))
	require.Equal(t, before, p.RowID())
	require.Equal(t, 25.0, p.Price())
	require.Equal(t, "Shirt", p.Name())

	require.NoError(t, p.UpdateFromAttributes(Attributes{Options: Options{"size": "L"}}))
	require.NotEqual(t, before, p.RowID())
	require.Equal(t, "L", p.Options().Get("size"))

	err = p.UpdateFromAttributes(Attributes{Name: String(""), Price: Float(99)})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, 25.0, p.Price())
}

func TestProductFromAttributesRequiresFields(t *testing.T) {
	_, err := ProductFromAttributes(Attributes{ID: String("1"), Name: String("x")})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ProductFromAttributes(Attributes{ID: String("1"), Name: String("x"), Price: Float(1), Qty: Float(0)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

type book struct {
	CanBeBought
}

func TestProductFromBuyable(t *testing.T) {
	b := book{CanBeBought{ID: "isbn-1", Title: "Go in Practice", Amount: 35.5, Weight: 1.2}}
	p, err := ProductFromBuyable(b, Options{"format": "paperback"})
	require.NoError(t, err)
	require.Equal(t, "isbn-1", p.ID())
	require.Equal(t, "Go in Practice", p.Name())
	require.Equal(t, 35.5, p.Price())
	require.Equal(t, 1.2, p.Weight())

	b.Key = "sku-9"
	b.Name = "Renamed"
	b.Price = 40
	require.NoError(t, p.UpdateFromBuyable(b))
	require.Equal(t, "sku-9", p.ID())
	require.Equal(t, "Renamed", p.Name())
	require.Equal(t, 40.0, p.Price())
}

func TestProductWeightUnit(t *testing.T) {
	p, err := NewProduct("1", "Flour", 2, nil)
	require.NoError(t, err)
	require.Equal(t, Imperial, p.WeightUnit())

	q, err := NewProduct("2", "Sugar", 2, Options{"unit": "Metric"})
	require.NoError(t, err)
	require.Equal(t, Metric, q.WeightUnit())

	q.SetWeightUnit(Imperial)
	require.Equal(t, Imperial, q.WeightUnit())
}

func TestShippingEffectivePrice(t *testing.T) {
	s, err := NewShipping("ship", "Courier", 12)
	require.NoError(t, err)
	require.Equal(t, 1.0, s.Qty())
	require.NoError(t, s.SetTaxRate(10))
	require.InDelta(t, 13.2, s.Total(), 1e-9)

	require.NoError(t, s.SetShippingDiscount(5))
	require.Equal(t, 7.0, s.Price())
	require.Equal(t, 5.0, s.DiscountAmount())
	require.InDelta(t, 0.7, s.Tax(), 1e-9)

	require.NoError(t, s.SetShippingDiscount(50))
	require.Equal(t, 0.0, s.Price())

	s.SetFreeShipping(true)
	require.Equal(t, 0.0, s.Total())
	require.Equal(t, 12.0, s.BasePrice())
}

func TestShippingRowIDFollowsPrice(t *testing.T) {
	s, err := ShippingFromAttributes(Attributes{ID: String("ship"), Name: String("Courier"), Price: Float(12)})
	require.NoError(t, err)
	before := s.RowID()
	require.NoError(t, s.UpdateFromAttributes(Attributes{Price: Float(0), FreeShipping: Bool(true)}))
	require.NotEqual(t, before, s.RowID())
	require.True(t, s.IsFreeShipping())
	require.Equal(t, ShippingRowID("ship", "Courier", 0), s.RowID())
}

type coupon struct {
	code  string
	value float64
	kind  string
}

func (c coupon) DiscountableIdentifier(Options) string  { return c.code }
func (c coupon) DiscountableDescription(Options) string { return "Coupon " + c.code }
func (c coupon) DiscountableValue(Options) float64      { return c.value }
func (c coupon) DiscountableType(Options) string        { return c.kind }

func TestDiscountLine(t *testing.T) {
	d, err := DiscountFromDiscountable(coupon{code: "SAVE5", value: 5, kind: "monetary"}, nil)
	require.NoError(t, err)
	require.Equal(t, discount.Currency, d.Type())
	require.NoError(t, d.SetQuantity(2))
	require.Equal(t, 10.0, d.Amount(100))

	p, err := DiscountFromAttributes(Attributes{ID: String("P10"), Name: String("Ten off"), Value: Float(10), Type: String("percent"), Qty: Float(1)})
	require.NoError(t, err)
	require.InDelta(t, 25.0, p.Amount(250), 1e-9)

	before := p.RowID()
	require.NoError(t, p.UpdateFromAttributes(Attributes{Value: Float(15)}))
	require.NotEqual(t, before, p.RowID())
	require.Equal(t, 1.0, p.Qty())

	require.ErrorIs(t, p.UpdateFromAttributes(Attributes{Value: Float(150)}), ErrInvalidArgument)
	require.Equal(t, 15.0, p.Value())

	_, err = DiscountFromAttributes(Attributes{ID: String("X"), Name: String("X"), Value: Float(1), Type: String("bogus")})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	p, err := NewProduct("1", "Shirt", 19.99, Options{"size": "M"})
	require.NoError(t, err)
	require.NoError(t, p.SetQuantity(2))
	require.NoError(t, p.SetDiscount(3, discount.Currency, ""))
	p.Associate(Association{Type: "product"})

	s, err := NewShipping("ship", "Courier", 4)
	require.NoError(t, err)
	s.SetFreeShipping(true)

	d, err := NewDiscountLine("c", "Coupon", 10, discount.Percent)
	require.NoError(t, err)

	for _, it := range []Item{p, s, d} {
		env, err := Wrap(it)
		require.NoError(t, err)
		data, err := json.Marshal(env)
		require.NoError(t, err)

		var decodedEnv Envelope
		require.NoError(t, json.Unmarshal(data, &decodedEnv))
		out, err := decodedEnv.Unwrap()
		require.NoError(t, err)
		require.Equal(t, it, out)
	}

	_, err = Envelope{Kind: "gift", Item: json.RawMessage(`{}`)}.Unwrap()
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProductRowIDSurvivesJSON(t *testing.T) {
	p, err := NewProduct("1", "Item", 10, Options{
		"ean":  int64(9007199254740993),
		"dims": struct{ W, H int }{W: 2, H: 3},
		"rate": 1.5,
	})
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	var decoded Product
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, p.RowID(), decoded.RowID())
	require.Equal(t, json.Number("9007199254740993"), decoded.Options().Get("ean"))
	require.True(t, p.Options().Equal(decoded.Options()))

	viaMap, err := ProductRowID("1", Options{
		"ean":  json.Number("9007199254740993"),
		"dims": map[string]any{"H": 3, "W": 2},
		"rate": 1.5,
	})
	require.NoError(t, err)
	require.Equal(t, p.RowID(), viaMap)
}

func TestFormattedAmountsHonourOverrides(t *testing.T) {
	p, err := NewProduct("1", "Lamp", 1234.5, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetQuantity(2))
	require.NoError(t, p.SetTaxRate(25))
	require.NoError(t, p.SetDiscount(10, discount.Currency, ""))

	f := money.NewFormatter(money.Format{Decimals: 2, DecimalPoint: ".", ThousandsSep: ",", Currency: "$"})
	v := Format(p, f)

	require.Equal(t, "$1,234.50", v.Price())
	require.Equal(t, "$1,235", v.Price(money.Decimals(0)))
	require.Equal(t, "1.234,50", v.Price(money.DecimalPoint(","), money.ThousandsSep("."), money.WithoutCurrency()))
	require.Equal(t, "$1,224.50", v.PriceDiscount())
	require.Equal(t, "$10.00", v.Discount())
	require.Equal(t, "$308.63", v.Tax())
	require.Equal(t, "$308.625", v.Tax(money.Decimals(3)))
	require.Equal(t, "$1,533.13", v.PriceTax())
	require.Equal(t, "$2,469.00", v.Subtotal())
	require.Equal(t, "$3,066.25", v.Total())
	require.Equal(t, "EUR 3066.3", v.Total(money.Decimals(1), money.ThousandsSep(""), money.Currency("EUR ")))
	require.Equal(t, "$617.25", v.TaxTotal())
	require.Equal(t, "$20.00", v.DiscountTotal())
	require.Equal(t, "$3,066.25", v.Map()["total"])

	s, err := NewShipping("ship", "Courier", 4)
	require.NoError(t, err)
	require.NoError(t, s.SetShippingDiscount(1.5))
	require.Equal(t, "2.50", Format(s, f).Total(money.WithoutCurrency()))
	require.Equal(t, "$0.00", Format(s, f).Tax())
}

type customer struct{ id string }

func (c customer) ModelName() string { return "customer" }
func (c customer) ModelKey() string  { return c.id }

func TestModelsReferenceAndResolve(t *testing.T) {
	models := NewModels()
	store := map[string]string{"42": "sku 42"}
	models.Register("product", FinderFunc(func(_ context.Context, key string) (any, error) {
		v, ok := store[key]
		if !ok {
			return nil, ErrModelNotFound
		}
		return v, nil
	}))

	ref, err := models.Reference("product")
	require.NoError(t, err)
	require.Equal(t, Association{Type: "product"}, ref)

	_, err = models.Reference("warehouse")
	require.ErrorIs(t, err, ErrUnknownModel)

	ref, err = models.Reference(customer{id: "7"})
	require.NoError(t, err)
	require.Equal(t, Association{Type: "customer", Key: "7"}, ref)

	got, err := models.Resolve(context.Background(), Association{Type: "product", Key: "42"})
	require.NoError(t, err)
	require.Equal(t, "sku 42", got)

	delete(store, "42")
	_, err = models.Resolve(context.Background(), Association{Type: "product", Key: "42"})
	require.True(t, errors.Is(err, ErrModelNotFound))

	_, err = models.Resolve(context.Background(), Association{Type: "customer", Key: "7"})
	require.ErrorIs(t, err, ErrUnknownModel)
}
