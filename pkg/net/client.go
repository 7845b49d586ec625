package net

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Cookie is one stored cookie with its attributes. The engine keeps a
// single cookie per host, enough for the session flows it supports.
type Cookie struct {
	Value    string
	SameSite string
}

// Jar stores cookies by host.
type Jar struct {
	mu      sync.Mutex
	cookies map[string]Cookie
}

func NewJar() *Jar {
	return &Jar{cookies: make(map[string]Cookie)}
}

func (j *Jar) Get(host string) (Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[host]
	return c, ok
}

func (j *Jar) Set(host string, c Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies[host] = c
}

// parseSetCookie splits a Set-Cookie header into the cookie value and its
// lowercased attributes.
func parseSetCookie(header string) Cookie {
	value, rest, _ := strings.Cut(header, ";")
	c := Cookie{Value: strings.TrimSpace(value)}
	for _, param := range strings.Split(rest, ";") {
		key, val, _ := strings.Cut(param, "=")
		if strings.EqualFold(strings.TrimSpace(key), "samesite") {
			c.SameSite = strings.ToLower(strings.TrimSpace(val))
		}
	}
	return c
}

// Client fetches resources, carrying the cookie jar across requests.
type Client struct {
	jar  *Jar
	http *http.Client
}

func NewClient() *Client {
	return &Client{
		jar: NewJar(),
		// Redirects would bypass the jar's same-site logic, so follow none.
		http: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *Client) Jar() *Jar { return c.jar }

// Request fetches a URL. A non-nil payload makes it a POST. The referrer
// gates lax-same-site cookies: cross-site POSTs do not carry them.
func (c *Client) Request(u *URL, referrer *URL, payload []byte) ([]byte, http.Header, error) {
	switch u.Scheme {
	case "about":
		return nil, http.Header{}, nil
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("net: read %s: %w", u.Path, err)
		}
		return data, http.Header{}, nil
	}

	method := http.MethodGet
	var body io.Reader
	if payload != nil {
		method = http.MethodPost
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("net: build request for %s: %w", u, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if cookie, ok := c.jar.Get(u.Host); ok {
		allow := true
		if referrer != nil && cookie.SameSite == "lax" && method != http.MethodGet {
			allow = referrer.Host == u.Host
		}
		if allow {
			req.Header.Set("Cookie", cookie.Value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("net: fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if setCookie := resp.Header.Get("Set-Cookie"); setCookie != "" {
		c.jar.Set(u.Host, parseSetCookie(setCookie))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("net: read body of %s: %w", u, err)
	}
	return data, resp.Header, nil
}

// ParseCSP extracts the allowed origins from a Content-Security-Policy
// header value of the form "default-src origin...". Returns nil when the
// policy is absent or not understood, meaning everything is allowed.
func ParseCSP(headers http.Header) []string {
	csp := strings.Fields(headers.Get("Content-Security-Policy"))
	if len(csp) == 0 || csp[0] != "default-src" {
		return nil
	}
	return csp[1:]
}

// AllowedByCSP checks a URL against an allowed-origin list; a nil list
// allows everything.
func AllowedByCSP(allowed []string, u *URL) bool {
	if allowed == nil {
		return true
	}
	for _, origin := range allowed {
		if origin == u.Origin() {
			return true
		}
	}
	return false
}
