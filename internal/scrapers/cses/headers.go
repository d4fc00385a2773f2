package cses

import (
	"net/url"
	"sort"
)

// Headers is an immutable set of request headers, every method that
// changes it returns a copy.
type Headers struct {
	values map[string]string
}

func NewHeaders(values map[string]string) Headers {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Headers{values: copied}
}

// DefaultHeaders emulates desktop Firefox on Ubuntu browsing baseUrl.
//
// Accept-Encoding is limited to gzip since that is the only content
// encoding resty decodes.
func DefaultHeaders(baseUrl *url.URL) Headers {
	return NewHeaders(map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Encoding":           "gzip",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Host":                      baseUrl.Host,
		"Upgrade-Insecure-Requests": "1",
		"User-Agent":                "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:83.0) Gecko/20100101 Firefox/83.0",
	})
}

func (h Headers) With(key, value string) Headers {
	out := NewHeaders(h.values)
	out.values[key] = value
	return out
}

// Merge returns a copy of h where every key in overrides replaces the
// existing value, an empty value removes the header.
func (h Headers) Merge(overrides map[string]string) Headers {
	out := NewHeaders(h.values)
	for k, v := range overrides {
		if v == "" {
			delete(out.values, k)
			continue
		}
		out.values[k] = v
	}
	return out
}

func (h Headers) Get(key string) string {
	return h.values[key]
}

func (h Headers) Len() int {
	return len(h.values)
}

func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h.values))
	for k := range h.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the underlying values.
func (h Headers) Map() map[string]string {
	return NewHeaders(h.values).values
}

// loginHeaders augments the base headers for the login submission and
// every request made after it.
func loginHeaders(base Headers, baseUrl string) Headers {
	return base.
		With("Content-Type", "application/x-www-form-urlencoded").
		With("Origin", baseUrl).
		With("Referer", baseUrl+loginPath)
}
