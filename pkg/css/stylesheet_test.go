package css

import (
	"testing"

	"lantern/pkg/html"
)

func TestParseStylesheet(t *testing.T) {
	rules := ParseStylesheet("p { color: red; font-size: 20px; } pre { background-color: gray; }")
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Declarations["color"] != "red" {
		t.Errorf("color = %q, want red", rules[0].Declarations["color"])
	}
	if rules[0].Declarations["font-size"] != "20px" {
		t.Errorf("font-size = %q, want 20px", rules[0].Declarations["font-size"])
	}
	if rules[1].Declarations["background-color"] != "gray" {
		t.Errorf("background-color = %q, want gray", rules[1].Declarations["background-color"])
	}
}

func TestParseRecoversFromMalformedRule(t *testing.T) {
	rules := ParseStylesheet("p { color red } div { color: blue; }")
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if len(rules[0].Declarations) != 0 {
		t.Errorf("malformed body produced declarations: %v", rules[0].Declarations)
	}
	if rules[1].Declarations["color"] != "blue" {
		t.Errorf("rule after malformed one was lost")
	}
}

func TestParseSkipsUnknownAtRule(t *testing.T) {
	rules := ParseStylesheet("@import url(x); p { color: red; }")
	if len(rules) != 1 || rules[0].Declarations["color"] != "red" {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestParseMediaQuery(t *testing.T) {
	sheet := `
		@media (prefers-color-scheme: dark) {
			a { color: lightblue; }
		}
		a { color: blue; }
	`
	rules := ParseStylesheet(sheet)
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Media != "dark" {
		t.Errorf("first rule media = %q, want dark", rules[0].Media)
	}
	if rules[1].Media != "" {
		t.Errorf("second rule media = %q, want empty", rules[1].Media)
	}
}

func TestDescendantSelector(t *testing.T) {
	rules := ParseStylesheet("ul li { color: red; }")
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	sel := rules[0].Selector
	if sel.Priority() != 2 {
		t.Errorf("priority = %d, want 2", sel.Priority())
	}

	ul := html.NewElement("ul", nil, nil)
	li := html.NewElement("li", nil, ul)
	ul.AddChild(li)
	orphan := html.NewElement("li", nil, nil)

	if !sel.Matches(li) {
		t.Errorf("li under ul should match")
	}
	if sel.Matches(orphan) {
		t.Errorf("li without ul ancestor should not match")
	}
	if sel.Matches(ul) {
		t.Errorf("ul itself should not match")
	}
}

func TestFocusPseudoclass(t *testing.T) {
	rules := ParseStylesheet("input:focus { outline: 2px solid red; }")
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	input := html.NewElement("input", nil, nil)
	if rules[0].Selector.Matches(input) {
		t.Errorf("unfocused input matched :focus")
	}
	input.IsFocused = true
	if !rules[0].Selector.Matches(input) {
		t.Errorf("focused input did not match :focus")
	}
}

func TestParseInlineStyle(t *testing.T) {
	got := ParseInlineStyle("opacity: 0.5; transform: translate(10px, 20px)")
	if got["opacity"] != "0.5" {
		t.Errorf("opacity = %q", got["opacity"])
	}
	if got["transform"] != "translate(10px, 20px)" {
		t.Errorf("transform = %q", got["transform"])
	}
}

func TestSortRulesIsStable(t *testing.T) {
	rules := ParseStylesheet("div a { color: red; } p { color: green; } p { color: blue; }")
	SortRules(rules)
	if rules[0].Declarations["color"] != "green" || rules[1].Declarations["color"] != "blue" {
		t.Errorf("equal-priority rules reordered: %v", rules)
	}
	if rules[2].Selector.Priority() != 2 {
		t.Errorf("descendant rule should sort last")
	}
}

func TestParseColor(t *testing.T) {
	if c := ParseColor("lightblue"); c.R != 0xad || c.G != 0xd8 || c.B != 0xe6 || c.A != 0xff {
		t.Errorf("lightblue = %v", c)
	}
	if c := ParseColor("#ff450080"); c.R != 0xff || c.G != 0x45 || c.B != 0x00 || c.A != 0x80 {
		t.Errorf("#ff450080 = %v", c)
	}
	if c := ParseColor("no-such-color"); c.R != 0 || c.G != 0 || c.B != 0 || c.A != 0xff {
		t.Errorf("unknown color should be black, got %v", c)
	}
}

func TestParseTransform(t *testing.T) {
	tr, ok := ParseTransform("translate(12px, -3.5px)")
	if !ok || tr.X != 12 || tr.Y != -3.5 {
		t.Errorf("got %v %v", tr, ok)
	}
	if _, ok := ParseTransform("rotate(30deg)"); ok {
		t.Errorf("rotate should not parse")
	}
	if _, ok := ParseTransform("none"); ok {
		t.Errorf("none should not parse")
	}
}

func TestParseOutline(t *testing.T) {
	o, ok := ParseOutline("2px solid red")
	if !ok || o.Thickness != 2 || o.Color != "red" {
		t.Errorf("got %v %v", o, ok)
	}
	if _, ok := ParseOutline("none"); ok {
		t.Errorf("none should not parse")
	}
	if _, ok := ParseOutline("2px dotted red"); ok {
		t.Errorf("non-solid outline should not parse")
	}
}
