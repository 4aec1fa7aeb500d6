package discount

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cartkit/internal/money"
)

func TestNewValidates(t *testing.T) {
	_, err := New(101, Percent, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = New(-1, Percent, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = New(-1, Currency, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = New(5, Type("bogus"), "")
	require.ErrorIs(t, err, ErrInvalidArgument)

	r, err := New(1000, Currency, "big")
	require.NoError(t, err)
	require.Equal(t, 1000.0, r.Value())
}

func TestPercentRule(t *testing.T) {
	r := MustNew(20, Percent, "")
	require.InDelta(t, 20.0, r.Calculate(100), 1e-9)
	require.InDelta(t, 80.0, r.Apply(100), 1e-9)
	require.Equal(t, "%", r.Symbol())
}

func TestCurrencyRuleClamp(t *testing.T) {
	r := MustNew(15, Currency, "")
	require.Equal(t, 15.0, r.Calculate(20))
	require.Equal(t, 5.0, r.Apply(20))

	// larger than the price: nothing reported, price floors at zero
	require.Equal(t, 0.0, r.Calculate(10))
	require.Equal(t, 0.0, r.Apply(10))
	require.Equal(t, "-", r.Symbol())
}

func TestParseTypeLegacyNames(t *testing.T) {
	typ, err := ParseType("monetary")
	require.NoError(t, err)
	require.Equal(t, Currency, typ)
	typ, err = ParseType("Percentage")
	require.NoError(t, err)
	require.Equal(t, Percent, typ)
	_, err = ParseType("nope")
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestRuleFormat(t *testing.T) {
	f := money.NewFormatter(money.Format{Decimals: 2, DecimalPoint: ".", ThousandsSep: ",", Currency: "$"})
	require.Equal(t, "- $5.00", MustNew(5, Currency, "").Format(f))
	require.Equal(t, "- 12.50%", MustNew(12.5, Percent, "").Format(f))
}

func TestRuleJSONRoundTrip(t *testing.T) {
	in := MustNew(12.5, Percent, "spring")
	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out Rule
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)

	require.Error(t, json.Unmarshal([]byte(`{"value":150,"type":"percent"}`), &out))
}
