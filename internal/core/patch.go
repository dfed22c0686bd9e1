package core

import (
	"bytes"
	"encoding/json"
)

// Patch is a presence-aware optional field for partial updates. The zero
// value means "leave unchanged"; Clear means "set to empty"; Set carries a
// new value. Decoding JSON maps an absent key to unset and an explicit null
// to Clear.
type Patch[T any] struct {
	present bool
	value   *T
}

// Set returns a patch that assigns v.
func Set[T any](v T) Patch[T] {
	return Patch[T]{present: true, value: &v}
}

// Clear returns a patch that empties the field.
func Clear[T any]() Patch[T] {
	return Patch[T]{present: true}
}

// IsSet reports whether the field was supplied at all.
func (p Patch[T]) IsSet() bool { return p.present }

// IsNull reports an explicit clear.
func (p Patch[T]) IsNull() bool { return p.present && p.value == nil }

// Get returns the new value when one was supplied.
func (p Patch[T]) Get() (T, bool) {
	if p.value == nil {
		var zero T
		return zero, false
	}
	return *p.value, true
}

// Apply merges the patch into a nullable target.
func (p Patch[T]) Apply(target **T) {
	if !p.present {
		return
	}
	if p.value == nil {
		*target = nil
		return
	}
	v := *p.value
	*target = &v
}

func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		p.value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.value = &v
	return nil
}

func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if p.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.value)
}
