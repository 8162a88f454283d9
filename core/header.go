package core

import (
	"fmt"
	"net/http"
	"strings"
)

// Header is a multimap of header fields. Keys are stored lower-cased and every
// value of a repeated field is kept as a distinct entry, never joined.
type Header map[string][]string

// Add appends value to the values of key.
func (h Header) Add(key, value string) {
	k := strings.ToLower(key)
	h[k] = append(h[k], value)
}

// Set replaces any existing values of key with value.
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = []string{value}
}

// Get returns the first value of key or "".
func (h Header) Get(key string) string {
	if v := h[strings.ToLower(key)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all values of key in insertion order.
func (h Header) Values(key string) []string {
	return h[strings.ToLower(key)]
}

// Has reports whether key is present.
func (h Header) Has(key string) bool {
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Clone returns a deep copy of h. A nil Header clones to an empty one.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// HeaderFromMap converts loosely typed caller input into a Header. Each value
// must be a string, a []string or a []any holding only strings.
func HeaderFromMap(m map[string]any) (Header, error) {
	h := make(Header, len(m))
	for k, raw := range m {
		switch v := raw.(type) {
		case string:
			h.Add(k, v)
		case []string:
			for _, s := range v {
				h.Add(k, s)
			}
		case []any:
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("header %q: value %d is %T, want string", k, i, item)
				}
				h.Add(k, s)
			}
		default:
			return nil, fmt.Errorf("header %q: unsupported value type %T", k, raw)
		}
	}

	return h, nil
}

// HeaderFromHTTP copies an http.Header into a Header, lower-casing keys.
func HeaderFromHTTP(src http.Header) Header {
	h := make(Header, len(src))
	for k, v := range src {
		lk := strings.ToLower(k)
		h[lk] = append(h[lk], v...)
	}
	return h
}

// HTTP returns h as an http.Header. Repeated fields stay repeated.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		ck := http.CanonicalHeaderKey(k)
		out[ck] = append(out[ck], v...)
	}
	return out
}
