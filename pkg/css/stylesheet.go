// Package css parses stylesheets and computes each document node's resolved
// style, writing the results into the node's dependency fields so layout
// recomputes only what a style change actually touched.
package css

import (
	"fmt"
	"strings"

	"lantern/pkg/html"
)

// Selector matches document nodes and carries a cascade priority.
type Selector interface {
	Matches(n *html.Node) bool
	Priority() int
}

// TagSelector matches elements by tag name.
type TagSelector struct {
	Tag string
}

func (s TagSelector) Matches(n *html.Node) bool {
	return n.Type == html.ElementNode && n.TagName == s.Tag
}

func (s TagSelector) Priority() int { return 1 }

// PseudoclassSelector wraps a base selector with a pseudo-class check.
// Only :focus is understood; unknown pseudo-classes never match.
type PseudoclassSelector struct {
	Pseudoclass string
	Base        Selector
}

func (s PseudoclassSelector) Matches(n *html.Node) bool {
	if !s.Base.Matches(n) {
		return false
	}
	switch s.Pseudoclass {
	case "focus":
		return n.IsFocused
	default:
		return false
	}
}

func (s PseudoclassSelector) Priority() int { return s.Base.Priority() }

// DescendantSelector matches a node whose ancestor chain contains a match
// for the ancestor selector. Priority is the sum of both parts.
type DescendantSelector struct {
	Ancestor   Selector
	Descendant Selector
}

func (s DescendantSelector) Matches(n *html.Node) bool {
	if !s.Descendant.Matches(n) {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if s.Ancestor.Matches(p) {
			return true
		}
	}
	return false
}

func (s DescendantSelector) Priority() int {
	return s.Ancestor.Priority() + s.Descendant.Priority()
}

// Rule is one parsed style rule. Media is "", "dark" or "light"; non-empty
// media restricts the rule to the matching color scheme.
type Rule struct {
	Media        string
	Selector     Selector
	Declarations map[string]string
}

// Parser is a recursive-descent CSS parser with skip-to-next-rule error
// recovery: a malformed rule is dropped, the rest of the sheet survives.
type Parser struct {
	s string
	i int
}

func NewParser(s string) *Parser {
	return &Parser{s: s}
}

// ParseStylesheet parses a stylesheet into rules, in source order.
func ParseStylesheet(s string) []Rule {
	return NewParser(s).Parse()
}

func (p *Parser) whitespace() {
	for p.i < len(p.s) && isSpace(p.s[p.i]) {
		p.i++
	}
}

func (p *Parser) word() (string, error) {
	start := p.i
	for p.i < len(p.s) {
		c := p.s[p.i]
		if isAlnum(c) || strings.IndexByte("#-.%", c) >= 0 {
			p.i++
		} else {
			break
		}
	}
	if p.i == start {
		return "", fmt.Errorf("css: expected word at %d", p.i)
	}
	return p.s[start:p.i], nil
}

func (p *Parser) literal(c byte) error {
	if p.i >= len(p.s) || p.s[p.i] != c {
		return fmt.Errorf("css: expected %q at %d", string(c), p.i)
	}
	p.i++
	return nil
}

func (p *Parser) untilChars(chars string) string {
	start := p.i
	for p.i < len(p.s) && strings.IndexByte(chars, p.s[p.i]) < 0 {
		p.i++
	}
	return p.s[start:p.i]
}

func (p *Parser) pair(until string) (string, string, error) {
	prop, err := p.word()
	if err != nil {
		return "", "", err
	}
	p.whitespace()
	if err := p.literal(':'); err != nil {
		return "", "", err
	}
	p.whitespace()
	val := strings.TrimSpace(p.untilChars(until))
	return strings.ToLower(prop), val, nil
}

// Body parses declarations up to a closing brace, skipping malformed pairs.
func (p *Parser) Body() map[string]string {
	pairs := make(map[string]string)
	for p.i < len(p.s) && p.s[p.i] != '}' {
		prop, val, err := p.pair(";}")
		if err == nil {
			pairs[prop] = val
			p.whitespace()
			if p.literal(';') != nil {
				break
			}
			p.whitespace()
			continue
		}
		switch p.ignoreUntil(";}") {
		case ';':
			p.i++
			p.whitespace()
		default:
			return pairs
		}
	}
	return pairs
}

func (p *Parser) ignoreUntil(chars string) byte {
	for p.i < len(p.s) {
		if strings.IndexByte(chars, p.s[p.i]) >= 0 {
			return p.s[p.i]
		}
		p.i++
	}
	return 0
}

func (p *Parser) simpleSelector() (Selector, error) {
	w, err := p.word()
	if err != nil {
		return nil, err
	}
	var out Selector = TagSelector{Tag: strings.ToLower(w)}
	if p.i < len(p.s) && p.s[p.i] == ':' {
		p.i++
		pseudo, err := p.word()
		if err != nil {
			return nil, err
		}
		out = PseudoclassSelector{Pseudoclass: strings.ToLower(pseudo), Base: out}
	}
	return out, nil
}

// Selector parses a compound selector: whitespace combines parts into
// descendant selectors.
func (p *Parser) Selector() (Selector, error) {
	out, err := p.simpleSelector()
	if err != nil {
		return nil, err
	}
	p.whitespace()
	for p.i < len(p.s) && p.s[p.i] != '{' {
		descendant, err := p.simpleSelector()
		if err != nil {
			return nil, err
		}
		out = DescendantSelector{Ancestor: out, Descendant: descendant}
		p.whitespace()
	}
	return out, nil
}

func (p *Parser) mediaQuery() (string, string, error) {
	if err := p.literal('@'); err != nil {
		return "", "", err
	}
	if w, err := p.word(); err != nil || w != "media" {
		return "", "", fmt.Errorf("css: unsupported at-rule at %d", p.i)
	}
	p.whitespace()
	if err := p.literal('('); err != nil {
		return "", "", err
	}
	p.whitespace()
	prop, val, err := p.pair(")")
	if err != nil {
		return "", "", err
	}
	p.whitespace()
	if err := p.literal(')'); err != nil {
		return "", "", err
	}
	return prop, val, nil
}

// Parse parses the whole stylesheet. Rules inside an @media
// (prefers-color-scheme) block carry the scheme as their Media key.
func (p *Parser) Parse() []Rule {
	var rules []Rule
	media := ""
	p.whitespace()
	for p.i < len(p.s) {
		ok := func() bool {
			if p.s[p.i] == '@' && media == "" {
				prop, val, err := p.mediaQuery()
				if err != nil {
					return false
				}
				if prop == "prefers-color-scheme" && (val == "dark" || val == "light") {
					media = val
				}
				p.whitespace()
				if p.literal('{') != nil {
					return false
				}
				p.whitespace()
				return true
			}
			if p.s[p.i] == '}' && media != "" {
				p.i++
				media = ""
				p.whitespace()
				return true
			}
			selector, err := p.Selector()
			if err != nil {
				return false
			}
			if p.literal('{') != nil {
				return false
			}
			p.whitespace()
			body := p.Body()
			if p.literal('}') != nil {
				return false
			}
			p.whitespace()
			rules = append(rules, Rule{Media: media, Selector: selector, Declarations: body})
			return true
		}()
		if !ok {
			if p.ignoreUntil("}") == '}' {
				p.i++
				p.whitespace()
			} else {
				break
			}
		}
	}
	return rules
}

// ParseInlineStyle parses a style attribute's declaration list.
func ParseInlineStyle(s string) map[string]string {
	return NewParser(s).Body()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
