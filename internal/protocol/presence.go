package protocol

import (
	"bytes"
	"encoding/json"
)

// Presence records whether a JSON key was present at all, separately from
// its value. An explicit null sets Present with a nil Value.
type Presence[T any] struct {
	Present bool
	Value   *T
}

func Present[T any](v *T) Presence[T] {
	return Presence[T]{Present: true, Value: v}
}

func (p *Presence[T]) UnmarshalJSON(b []byte) error {
	p.Present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		p.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}

func (p Presence[T]) MarshalJSON() ([]byte, error) {
	if p.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}
