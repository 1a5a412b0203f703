package model

import (
	"encoding/json"
	"math"
)

// Sentinel is the census placeholder for "value not available".
const Sentinel = -666666666

// Number is the set of numeric types an Optional can carry.
type Number interface {
	~int64 | ~float64
}

// Optional is a measurement that may be missing from the source data.
// The zero value is missing.
type Optional[T Number] struct {
	value T
	valid bool
}

// Some returns a present value.
func Some[T Number](v T) Optional[T] {
	return Optional[T]{value: v, valid: true}
}

// None returns a missing value.
func None[T Number]() Optional[T] {
	return Optional[T]{}
}

// FromRaw converts a raw source reading into an Optional. Absent readings,
// NaN and the census sentinel all become None.
func FromRaw[T Number](v T, ok bool) Optional[T] {
	if !ok || v == Sentinel || math.IsNaN(float64(v)) {
		return None[T]()
	}
	return Some(v)
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.valid
}

// Valid reports whether the value is present.
func (o Optional[T]) Valid() bool {
	return o.valid
}

// Or returns the value, or def when missing.
func (o Optional[T]) Or(def T) T {
	if !o.valid {
		return def
	}
	return o.value
}

// MarshalJSON encodes a missing value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as missing and applies the sentinel rule.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = FromRaw(v, true)
	return nil
}
