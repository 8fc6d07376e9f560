// Copyright 2024-2026 Aiku AI

// Package envelope defines the tagged payload carried between the filesystem
// bridge and the session engine. Requests and responses share one shape and
// differ only in the direction they travel.
package envelope

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Envelope is a type tag plus an ordered set of string-keyed fields.
type Envelope struct {
	Type   string
	Fields *orderedmap.OrderedMap[string, any]
}

type (
	Request  = Envelope
	Response = Envelope
)

// None is the response returned when no operation matched a request. It is
// not an error.
var None *Response

// Field is a single key/value pair used when building an envelope.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// New creates an envelope with the given fields in order.
func New(typ string, fields ...Field) *Envelope {
	e := &Envelope{
		Type:   typ,
		Fields: orderedmap.New[string, any](),
	}
	for _, f := range fields {
		e.Fields.Set(f.Key, f.Value)
	}
	return e
}

// IsNone reports whether the envelope is the None response. Safe on nil.
func (e *Envelope) IsNone() bool {
	return e == nil
}

// Set stores a field, keeping the original position if the key exists.
func (e *Envelope) Set(key string, value any) *Envelope {
	if e.Fields == nil {
		e.Fields = orderedmap.New[string, any]()
	}
	e.Fields.Set(key, value)
	return e
}

// Get returns the raw value of a field.
func (e *Envelope) Get(key string) (any, bool) {
	if e == nil || e.Fields == nil {
		return nil, false
	}
	return e.Fields.Get(key)
}

// GetString returns a field as a string, or "" if absent or not a string.
func (e *Envelope) GetString(key string) string {
	v, ok := e.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Keys returns field names in insertion order.
func (e *Envelope) Keys() []string {
	if e == nil || e.Fields == nil {
		return nil
	}
	keys := make([]string, 0, e.Fields.Len())
	for pair := e.Fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (e *Envelope) String() string {
	if e == nil {
		return "none"
	}
	return fmt.Sprintf("%s%v", e.Type, e.Keys())
}

// InvalidRequestError reports a request whose type is not recognized or whose
// payload cannot be used.
type InvalidRequestError struct {
	Type   string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %q request: %s", e.Type, e.Reason)
}
