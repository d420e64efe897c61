package domain

import (
	"bytes"
	"encoding/json"
)

// NullableInt64 distinguishes an absent field from an explicit null.
// Set is true whenever the field appeared in the payload.
type NullableInt64 struct {
	Set   bool
	Value *int64
}

// SetInt64 returns a present, non-null value.
func SetInt64(v int64) NullableInt64 { return NullableInt64{Set: true, Value: &v} }

// NullInt64 returns a present, explicit null.
func NullInt64() NullableInt64 { return NullableInt64{Set: true} }

// IsZero reports an absent field; used by the omitzero tag.
func (n NullableInt64) IsZero() bool { return !n.Set }

func (n NullableInt64) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func (n *NullableInt64) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// NullableString distinguishes an absent field from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// SetString returns a present, non-null value.
func SetString(v string) NullableString { return NullableString{Set: true, Value: &v} }

// NullString returns a present, explicit null.
func NullString() NullableString { return NullableString{Set: true} }

func (n NullableString) IsZero() bool { return !n.Set }

func (n NullableString) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}
