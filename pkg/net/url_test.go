package net

import "testing"

func TestParse(t *testing.T) {
	u, err := Parse("http://example.org/page")
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "http" || u.Host != "example.org" || u.Port != 80 || u.Path != "/page" {
		t.Errorf("parsed %+v", u)
	}

	u, err = Parse("https://example.org:8443")
	if err != nil {
		t.Fatal(err)
	}
	if u.Port != 8443 || u.Path != "/" {
		t.Errorf("parsed %+v", u)
	}

	if _, err := Parse("gopher://x"); err == nil {
		t.Errorf("unsupported scheme should fail")
	}
	if _, err := Parse("no-scheme"); err == nil {
		t.Errorf("missing scheme should fail")
	}

	u, err = Parse("about:blank")
	if err != nil || u != AboutBlank {
		t.Errorf("about:blank parse = %v, %v", u, err)
	}
}

func TestParseDropsFragment(t *testing.T) {
	u, err := Parse("http://example.org/page#section")
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/page" {
		t.Errorf("path = %q", u.Path)
	}
}

func TestOrigin(t *testing.T) {
	u, _ := Parse("http://example.org/deep/path")
	if got := u.Origin(); got != "http://example.org" {
		t.Errorf("origin = %q", got)
	}
	u, _ = Parse("http://example.org:8080/x")
	if got := u.Origin(); got != "http://example.org:8080" {
		t.Errorf("origin = %q", got)
	}
}

func TestResolve(t *testing.T) {
	base, _ := Parse("http://example.org/a/b/page.html")
	cases := []struct {
		ref  string
		want string
	}{
		{"other.html", "http://example.org/a/b/other.html"},
		{"/rooted", "http://example.org/rooted"},
		{"../up.html", "http://example.org/a/up.html"},
		{"../../top.html", "http://example.org/top.html"},
		{"//cdn.example.org/lib.js", "http://cdn.example.org/lib.js"},
		{"https://elsewhere.org/x", "https://elsewhere.org/x"},
	}
	for _, tc := range cases {
		got, err := base.Resolve(tc.ref)
		if err != nil {
			t.Errorf("resolve %q: %v", tc.ref, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("resolve %q = %q, want %q", tc.ref, got.String(), tc.want)
		}
	}
}

func TestParseSetCookie(t *testing.T) {
	c := parseSetCookie("token=abc123; SameSite=Lax; HttpOnly")
	if c.Value != "token=abc123" {
		t.Errorf("value = %q", c.Value)
	}
	if c.SameSite != "lax" {
		t.Errorf("samesite = %q", c.SameSite)
	}

	c = parseSetCookie("plain=1")
	if c.Value != "plain=1" || c.SameSite != "" {
		t.Errorf("plain cookie = %+v", c)
	}
}

func TestCSP(t *testing.T) {
	same, _ := Parse("http://example.org/x")
	other, _ := Parse("http://evil.org/x")
	allowed := []string{"http://example.org"}

	if !AllowedByCSP(allowed, same) {
		t.Errorf("allowed origin rejected")
	}
	if AllowedByCSP(allowed, other) {
		t.Errorf("cross origin accepted")
	}
	if !AllowedByCSP(nil, other) {
		t.Errorf("nil policy should allow everything")
	}
}
