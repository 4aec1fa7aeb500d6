package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Format captures number formatting preferences for monetary values.
type Format struct {
	Decimals     int
	DecimalPoint string
	ThousandsSep string
	Currency     string
}

// DefaultFormat mirrors the formatting used when no configuration is supplied.
func DefaultFormat() Format {
	return Format{Decimals: 2, DecimalPoint: ".", ThousandsSep: ","}
}

// Option overrides a single formatting preference for one call.
type Option func(*Format)

// Decimals overrides the number of decimals.
func Decimals(n int) Option {
	return func(f *Format) {
		if n >= 0 {
			f.Decimals = n
		}
	}
}

// DecimalPoint overrides the decimal separator.
func DecimalPoint(sep string) Option {
	return func(f *Format) { f.DecimalPoint = sep }
}

// ThousandsSep overrides the thousands separator.
func ThousandsSep(sep string) Option {
	return func(f *Format) { f.ThousandsSep = sep }
}

// Currency overrides the currency symbol.
func Currency(symbol string) Option {
	return func(f *Format) { f.Currency = symbol }
}

// WithoutCurrency suppresses the currency symbol.
func WithoutCurrency() Option {
	return func(f *Format) { f.Currency = "" }
}

// Formatter renders values using configured defaults.
type Formatter struct {
	Defaults Format
}

// NewFormatter returns a formatter using def, filling blank decimal points.
func NewFormatter(def Format) Formatter {
	if def.Decimals < 0 {
		def.Decimals = 2
	}
	if def.DecimalPoint == "" {
		def.DecimalPoint = "."
	}
	return Formatter{Defaults: def}
}

// Resolve returns the effective format after applying opts to the defaults.
func (f Formatter) Resolve(opts ...Option) Format {
	out := f.Defaults
	if out.DecimalPoint == "" {
		out.DecimalPoint = "."
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}

// Format renders value rounding once, half away from zero.
func (f Formatter) Format(value float64, opts ...Option) string {
	return Render(value, f.Resolve(opts...))
}

// Render formats value with layout f.
func Render(value float64, f Format) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	places := int32(f.Decimals)
	if places < 0 {
		places = 0
	}
	rounded := decimal.NewFromFloat(value).Round(places)
	negative := rounded.IsNegative()
	fixed := rounded.Abs().StringFixed(places)

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(f.Currency)
	b.WriteString(groupThousands(intPart, f.ThousandsSep))
	if places > 0 {
		b.WriteString(f.DecimalPoint)
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
