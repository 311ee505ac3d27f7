package store

import (
	"encoding/json"
	"time"
)

// Well known document fields
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimeFormat is the layout of all timestamps stored in documents.
const TimeFormat = time.RFC3339Nano

// Document is a single record of a collection as it is stored on disk.
type Document map[string]any

// ID returns the id of the document or "" if it has none.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// String returns the value of a string field or "" if it is missing or of another type.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Clone returns a deep copy of the document. Nested maps and slices as produced
// by encoding/json are copied, other values are copied by assignment.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Document:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// CloneAll returns a deep copy of a list of documents.
func CloneAll(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// --------------------------------------------------------------------------
// Typed conversion
// --------------------------------------------------------------------------

// Encode converts a struct into a Document using its json tags.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Code: ErrCInternal, Op: "encode", Msg: "failed to encode document", Err: err}
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, &Error{Code: ErrCInternal, Op: "encode", Msg: "value is not a json object", Err: err}
	}
	return doc, nil
}

// Decode converts a Document into a value of type T using its json tags.
func Decode[T any](doc Document) (T, error) {
	var out T
	b, err := json.Marshal(doc)
	if err != nil {
		return out, &Error{Code: ErrCInternal, Op: "decode", ID: doc.ID(), Msg: "failed to encode document", Err: err}
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, &Error{Code: ErrCCorruptData, Op: "decode", ID: doc.ID(), Msg: "document does not match the expected shape", Err: err}
	}
	return out, nil
}

// DecodeAll converts a list of Documents into values of type T.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FieldEquals returns a matcher for Find/FindOne comparing a string field.
func FieldEquals(field, value string) func(Document) bool {
	return func(d Document) bool {
		s, ok := d[field].(string)
		return ok && s == value
	}
}
