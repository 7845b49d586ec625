// Package net fetches document resources: URL parsing and resolution plus
// an HTTP client with lax-same-site cookie handling.
package net

import (
	"fmt"
	"strconv"
	"strings"
)

// URL is a parsed resource locator. Only http, https, file, and about are
// understood.
type URL struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// AboutBlank is the empty document URL.
var AboutBlank = &URL{Scheme: "about", Path: "blank"}

// Parse splits a URL string. Fragments are dropped; a missing path becomes
// "/".
func Parse(raw string) (*URL, error) {
	if raw == "about:blank" {
		return AboutBlank, nil
	}
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		return nil, fmt.Errorf("net: url %q has no scheme", raw)
	}
	u := &URL{Scheme: scheme}
	switch scheme {
	case "http":
		u.Port = 80
	case "https":
		u.Port = 443
	case "file":
		u.Path = rest
		return u, nil
	default:
		return nil, fmt.Errorf("net: unsupported scheme %q", scheme)
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	host, path, found := strings.Cut(rest, "/")
	if !found {
		path = ""
	}
	if h, p, ok := strings.Cut(host, ":"); ok {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("net: bad port in %q: %w", raw, err)
		}
		host, u.Port = h, port
	}
	u.Host = host
	u.Path = "/" + path
	return u, nil
}

// String reassembles the URL.
func (u *URL) String() string {
	switch u.Scheme {
	case "about":
		return "about:" + u.Path
	case "file":
		return "file://" + u.Path
	}
	port := ""
	if (u.Scheme == "http" && u.Port != 80) || (u.Scheme == "https" && u.Port != 443) {
		port = ":" + strconv.Itoa(u.Port)
	}
	return u.Scheme + "://" + u.Host + port + u.Path
}

// Origin is the scheme-host-port triple that scopes cookies, scripts, and
// frames.
func (u *URL) Origin() string {
	port := ""
	if (u.Scheme == "http" && u.Port != 80) || (u.Scheme == "https" && u.Port != 443) {
		port = ":" + strconv.Itoa(u.Port)
	}
	return u.Scheme + "://" + u.Host + port
}

// Resolve interprets a possibly-relative reference against this URL.
func (u *URL) Resolve(ref string) (*URL, error) {
	if ref == "" {
		return u, nil
	}
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "about:") {
		return Parse(ref)
	}
	if strings.HasPrefix(ref, "//") {
		return Parse(u.Scheme + ":" + ref)
	}
	out := &URL{Scheme: u.Scheme, Host: u.Host, Port: u.Port}
	if strings.HasPrefix(ref, "/") {
		out.Path = ref
		return out, nil
	}
	dir := u.Path
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		dir = dir[:i]
	}
	for strings.HasPrefix(ref, "../") {
		ref = ref[3:]
		if i := strings.LastIndexByte(dir, '/'); i > 0 {
			dir = dir[:i]
		} else {
			dir = ""
		}
	}
	out.Path = dir + "/" + ref
	return out, nil
}
