package item

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Options holds free-form attributes of a product line such as size or colour.
// Key order never matters: equality and hashing use a key-sorted serialisation.
// Numbers decoded from storage come back as json.Number so large integers keep their digits.
type Options map[string]any

// Get returns the option stored under key or nil.
func (o Options) Get(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o[key]
	return ok
}

// String returns the option under key when it is a string.
func (o Options) String(key string) (string, bool) {
	v, ok := o.Get(key).(string)
	return v, ok
}

// Clone returns a shallow copy; nil stays nil-safe and becomes an empty set.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Equal compares two option sets structurally.
func (o Options) Equal(other Options) bool {
	a, errA := o.canonical()
	b, errB := other.canonical()
	return errA == nil && errB == nil && a == b
}

// canonical serialises the set with sorted keys at every level. The value is
// encoded, decoded into generic JSON and encoded again so a struct and the map it
// decodes to, or an int64 and the json.Number read back from storage, hash alike.
func (o Options) canonical() (string, error) {
	if len(o) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]any(o))
	if err != nil {
		return "", fmt.Errorf("options are not serialisable: %w", ErrInvalidArgument)
	}
	var generic any
	if err := decodeNumbers(data, &generic); err != nil {
		return "", fmt.Errorf("options are not serialisable: %w", ErrInvalidArgument)
	}
	if data, err = json.Marshal(generic); err != nil {
		return "", fmt.Errorf("options are not serialisable: %w", ErrInvalidArgument)
	}
	return string(data), nil
}

// decodeNumbers unmarshals data keeping numbers inside interface values as json.Number.
func decodeNumbers(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}
