package core

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrMissingPath is returned when DispatchOptions.Path is empty.
	ErrMissingPath = errors.New("path is required")
	// ErrNilHandler is returned when a dispatch is attempted without a Handler.
	ErrNilHandler = errors.New("handler is required")
	// ErrNilOptions is returned when a dispatch is attempted without options.
	ErrNilOptions = errors.New("dispatch options are required")
)

// DispatchOptions describes one HTTP exchange. It is built by the caller,
// consumed once by the dispatch task and must not be modified afterwards.
type DispatchOptions struct {
	// Origin is the optional scheme and authority, e.g. "http://localhost:3000"
	// or "localhost:3000". When empty, Path must be an absolute URL.
	Origin string
	// Path is the request target, including any query string.
	Path string
	// Method is the request method; see ParseMethod.
	Method Method
	// Headers are sent as-is; repeated values are sent as repeated fields.
	Headers Header
	// Body is an optional single-use request body. It is never replayed.
	Body io.Reader
	// Upgrade names a protocol upgrade. Upgrades are not supported and any
	// non-empty value makes the dispatch fail with NotSupported.
	Upgrade string
	// ThrowOnError turns responses with status >= 400 into a ResponseError
	// instead of a normal response.
	ThrowOnError bool
}

// Validate checks the parts of the options that can be rejected before a
// dispatch task is scheduled. The method is matched case-insensitively.
func (o *DispatchOptions) Validate() error {
	_, err := o.Normalize()
	return err
}

// Normalize validates o and returns a copy whose Method is in canonical
// upper-case form. o itself is left untouched.
func (o *DispatchOptions) Normalize() (*DispatchOptions, error) {
	m, err := ParseMethod(string(o.Method))
	if err != nil {
		return nil, err
	}
	if o.Path == "" {
		return nil, ErrMissingPath
	}

	n := *o
	n.Method = m
	return &n, nil
}

// HasUpgradeIntent reports whether the request asks for a protocol upgrade,
// either explicitly or through its Upgrade/Connection headers.
func (o *DispatchOptions) HasUpgradeIntent() bool {
	if o.Upgrade != "" {
		return true
	}
	if o.Headers.Has("upgrade") {
		return true
	}
	for _, v := range o.Headers.Values("connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}

// URL resolves Origin and Path into the request URL.
func (o *DispatchOptions) URL() (*url.URL, error) {
	if o.Origin == "" {
		u, err := url.Parse(o.Path)
		if err != nil {
			return nil, fmt.Errorf("parse path: %w", err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("path %q is not absolute and no origin is set", o.Path)
		}
		return u, nil
	}

	origin := o.Origin
	if !strings.Contains(origin, "://") {
		origin = "http://" + origin
	}
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("origin %q has no host", o.Origin)
	}

	path := o.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}

	return base.ResolveReference(ref), nil
}
