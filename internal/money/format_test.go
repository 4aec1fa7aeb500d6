package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatDefaults(t *testing.T) {
	f := NewFormatter(DefaultFormat())
	require.Equal(t, "1,234.50", f.Format(1234.5))
	require.Equal(t, "0.00", f.Format(0))
	require.Equal(t, "1,234,567.89", f.Format(1234567.891))
}

func TestFormatRoundsHalfAwayFromZero(t *testing.T) {
	f := NewFormatter(DefaultFormat())
	require.Equal(t, "10.01", f.Format(10.005))
	require.Equal(t, "24.21", f.Format(10.004*1.21*2))
	require.Equal(t, "-10.01", f.Format(-10.005))
}

func TestFormatOverrides(t *testing.T) {
	f := NewFormatter(Format{Decimals: 2, DecimalPoint: ".", ThousandsSep: ",", Currency: "$"})
	require.Equal(t, "$1,000.00", f.Format(1000))
	require.Equal(t, "1.000,000", f.Format(1000, Decimals(3), DecimalPoint(","), ThousandsSep("."), WithoutCurrency()))
	require.Equal(t, "€5", f.Format(4.6, Decimals(0), Currency("€")))
	require.Equal(t, "-$3.50", f.Format(-3.5))
}

func TestFormatNoThousandsSeparator(t *testing.T) {
	f := NewFormatter(Format{Decimals: 1, DecimalPoint: ".", ThousandsSep: ""})
	require.Equal(t, "1234567.9", f.Format(1234567.89))
}
