// Package document adapts a raw JSON object into the projections the
// secondary structures of a collection consume: index keys, clip tokens,
// range fields, view binding, and searchable content.
package document

import (
	"encoding/json"
	"strings"
)

// ViewOption binds a document to a named view when Prop's string form
// equals Expected.
type ViewOption struct {
	Prop     string `json:"prop"`
	Expected string `json:"expected"`
	ViewName string `json:"view_name"`
}

// Options describes the projections a collection maintains for its
// documents. It is immutable after a collection is created.
type Options struct {
	Name       string       `json:"name"`
	IndexOpts  []string     `json:"index_opts"`
	SearchOpts []string     `json:"search_opts"`
	ViewOpts   []ViewOption `json:"view_opts"`
	RangeOpts  []string     `json:"range_opts"`
	ClipsOpts  []string     `json:"clips_opts"`
}

// Field is a single {key, value} range projection.
type Field struct {
	Key   string
	Value string
}

// Document wraps a decoded JSON object together with the options used to
// derive its projections. It never mutates the underlying object; every
// projection is computed on demand from Object and Opts, with no redundant
// copies kept.
type Document struct {
	Object map[string]interface{}
	Opts   *Options
}

// New decodes raw JSON bytes into a Document bound to opts.
func New(raw []byte, opts *Options) (*Document, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, ErrParse
	}
	return &Document{Object: obj, Opts: opts}, nil
}

// FromValue wraps an already-decoded object.
func FromValue(obj map[string]interface{}, opts *Options) *Document {
	return &Document{Object: obj, Opts: opts}
}

func stringField(obj map[string]interface{}, field string) (string, bool) {
	v, ok := obj[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, true
}

// Keys returns the values of fields listed in IndexOpts that are present
// and string-typed.
func (d *Document) Keys() []string {
	if d.Opts == nil {
		return nil
	}
	out := make([]string, 0, len(d.Opts.IndexOpts))
	for _, f := range d.Opts.IndexOpts {
		if v, ok := stringField(d.Object, f); ok {
			out = append(out, v)
		}
	}
	return out
}

// Tokens returns the values of fields listed in ClipsOpts that are present
// and string-typed.
func (d *Document) Tokens() []string {
	if d.Opts == nil {
		return nil
	}
	out := make([]string, 0, len(d.Opts.ClipsOpts))
	for _, f := range d.Opts.ClipsOpts {
		if v, ok := stringField(d.Object, f); ok {
			out = append(out, v)
		}
	}
	return out
}

// Fields returns {key, value} pairs for fields in RangeOpts.
func (d *Document) Fields() []Field {
	if d.Opts == nil {
		return nil
	}
	out := make([]Field, 0, len(d.Opts.RangeOpts))
	for _, f := range d.Opts.RangeOpts {
		if v, ok := stringField(d.Object, f); ok {
			out = append(out, Field{Key: f, Value: v})
		}
	}
	return out
}

// Binding returns the first view_name whose prop/expected matches, if any.
func (d *Document) Binding() (string, bool) {
	if d.Opts == nil {
		return "", false
	}
	for _, v := range d.Opts.ViewOpts {
		if got, ok := stringField(d.Object, v.Prop); ok && got == v.Expected {
			return v.ViewName, true
		}
	}
	return "", false
}

// Content concatenates the string values of fields in SearchOpts.
func (d *Document) Content() string {
	if d.Opts == nil {
		return ""
	}
	var b strings.Builder
	for _, f := range d.Opts.SearchOpts {
		if v, ok := stringField(d.Object, f); ok {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(v)
		}
	}
	return b.String()
}

// Make returns a copy of the document's object with an extra "_pointer"
// field injected, used when a query result must carry the pointer inline.
func (d *Document) Make(pointer string) map[string]interface{} {
	out := make(map[string]interface{}, len(d.Object)+1)
	for k, v := range d.Object {
		out[k] = v
	}
	out["_pointer"] = pointer
	return out
}

// String renders the document's object back to its JSON text form.
func (d *Document) String() string {
	b, err := json.Marshal(d.Object)
	if err != nil {
		return "{}"
	}
	return string(b)
}
