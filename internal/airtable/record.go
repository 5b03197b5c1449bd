package airtable

import (
	"bytes"
	"encoding/json"
	"math"
)

// Record is one row as returned by the API.
type Record struct {
	ID          string `json:"id"`
	Fields      Fields `json:"fields"`
	CreatedTime string `json:"createdTime,omitempty"`
}

// Fields is a raw field-name to value map. Values stay undecoded until a typed
// accessor asks for them, so one bad cell never fails the whole record.
type Fields map[string]json.RawMessage

var null = []byte("null")

func (f Fields) raw(name string) (json.RawMessage, bool) {
	v, ok := f[name]
	if !ok || len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), null) {
		return nil, false
	}
	return v, true
}

// Has reports whether the field is present and not null.
func (f Fields) Has(name string) bool {
	_, ok := f.raw(name)
	return ok
}

// Int reads an integer, accepting floats with no fractional part.
func (f Fields) Int(name string) (int, bool) {
	v, ok := f.raw(name)
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, false
	}
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return int(n), true
}

// Float reads any JSON number.
func (f Fields) Float(name string) (float64, bool) {
	v, ok := f.raw(name)
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, false
	}
	return n, true
}

// Bool reads a checkbox. Some bases deliver checkboxes as 0/1, where 1 is true.
func (f Fields) Bool(name string) (bool, bool) {
	v, ok := f.raw(name)
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, true
	}
	if n, ok := f.Int(name); ok {
		return n == 1, true
	}
	return false, false
}

// String reads a text value.
func (f Fields) String(name string) (string, bool) {
	v, ok := f.raw(name)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// Strings reads a list of strings, as used by linked-record fields.
func (f Fields) Strings(name string) ([]string, bool) {
	v, ok := f.raw(name)
	if !ok {
		return nil, false
	}
	var ss []string
	if err := json.Unmarshal(v, &ss); err != nil {
		return nil, false
	}
	return ss, true
}

// Attachment is an entry of an attachment field.
type Attachment struct {
	ID         string                `json:"id"`
	URL        string                `json:"url"`
	Filename   string                `json:"filename"`
	Thumbnails map[string]*Thumbnail `json:"thumbnails"`
}

// Thumbnail is one rendition of an attachment.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Attachments reads an attachment field.
func (f Fields) Attachments(name string) ([]Attachment, bool) {
	v, ok := f.raw(name)
	if !ok {
		return nil, false
	}
	var as []Attachment
	if err := json.Unmarshal(v, &as); err != nil {
		return nil, false
	}
	return as, true
}

// ThumbnailURL follows attachment -> thumbnails -> size -> url on the first
// attachment. Any missing link yields false.
func (f Fields) ThumbnailURL(name, size string) (string, bool) {
	as, ok := f.Attachments(name)
	if !ok || len(as) == 0 {
		return "", false
	}
	t := as[0].Thumbnails[size]
	if t == nil || t.URL == "" {
		return "", false
	}
	return t.URL, true
}

// Set stores v under name. Values that cannot be marshalled are dropped.
func (f Fields) Set(name string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	f[name] = b
}
