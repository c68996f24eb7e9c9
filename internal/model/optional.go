// internal/model/optional.go
package model

import "encoding/json"

// Optional is a tri-state field for triage payloads: absent from the payload
// (Set=false), an explicit clear (Set=true, Value=nil), or a value. The
// distinction matters during merges: an explicit null replaces the staged
// value, while an absent field leaves it untouched.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Clear returns an Optional carrying an explicit null.
func Clear[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsZero reports whether the field is absent. Used by encoding/json's
// omitzero option.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}

// Get returns the held value and whether one is present. A cleared field
// returns (zero, false) just like an absent one; use Set to tell them apart.
func (o Optional[T]) Get() (T, bool) {
	if o.Value == nil {
		var zero T
		return zero, false
	}
	return *o.Value, true
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
