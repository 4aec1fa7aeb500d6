package item

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

func hashFields(fields ...string) string {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ProductRowID derives the merge key of a product line from its identifier and options.
func ProductRowID(id string, opts Options) (string, error) {
	canon, err := opts.canonical()
	if err != nil {
		return "", err
	}
	return hashFields(string(KindProduct), id, canon), nil
}

// ShippingRowID derives the key of a shipping line.
func ShippingRowID(id, name string, price float64) string {
	return hashFields(string(KindShipping), id, name, formatFloat(price))
}

// DiscountRowID derives the key of a discount line.
func DiscountRowID(id, name string, value float64, typ string) string {
	return hashFields(string(KindDiscount), id, name, formatFloat(value), typ)
}
