package css

import (
	"strconv"
	"testing"

	"lantern/pkg/html"
)

type fakeEnv struct {
	darkMode    bool
	needsRender int
}

func (e *fakeEnv) DarkMode() bool  { return e.darkMode }
func (e *fakeEnv) SetNeedsRender() { e.needsRender++ }

func styledTree(t *testing.T, markup string, sheet string, env Env) *html.Node {
	t.Helper()
	root, err := html.Parse(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	InitStyleTree(root)
	rules := ParseStylesheet(sheet)
	SortRules(rules)
	Style(root, rules, env)
	return root
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.TagName == tag {
		return n
	}
	for _, c := range n.Children {
		if m := findTag(c, tag); m != nil {
			return m
		}
	}
	return nil
}

func TestCascadeAppliesRules(t *testing.T) {
	env := &fakeEnv{}
	root := styledTree(t, "<p>hi</p>", "p { color: red; background-color: blue; }", env)
	p := findTag(root, "p")
	if got := p.Style["color"].Get(); got != "red" {
		t.Errorf("color = %q, want red", got)
	}
	if got := p.Style["background-color"].Get(); got != "blue" {
		t.Errorf("background-color = %q, want blue", got)
	}
	if got := p.Style["opacity"].Get(); got != "1.0" {
		t.Errorf("opacity default = %q, want 1.0", got)
	}
}

func TestCascadeInheritance(t *testing.T) {
	env := &fakeEnv{}
	root := styledTree(t, "<div><p>hi</p></div>", "div { color: green; }", env)
	p := findTag(root, "p")
	if got := p.Style["color"].Get(); got != "green" {
		t.Errorf("inherited color = %q, want green", got)
	}
	// Text node inherits too.
	text := p.Children[0]
	if got := text.Style["color"].Get(); got != "green" {
		t.Errorf("text color = %q, want green", got)
	}
	// Non-inherited properties come from defaults, not the parent.
	if got := p.Style["background-color"].Get(); got != "transparent" {
		t.Errorf("background-color = %q, want transparent", got)
	}
}

func TestCascadeParentChangeRestyleChild(t *testing.T) {
	env := &fakeEnv{}
	root := styledTree(t, "<div><p>hi</p></div>", "", env)
	div := findTag(root, "div")
	p := findTag(root, "p")
	if got := p.Style["color"].Get(); got != "black" {
		t.Fatalf("initial color = %q, want black", got)
	}

	div.Attributes["style"] = "color: red"
	DirtyStyle(div)
	if !p.Style["color"].Dirty() {
		t.Fatalf("child color field not dirtied by parent style change")
	}
	rules := ParseStylesheet("")
	Style(root, rules, env)
	if got := p.Style["color"].Get(); got != "red" {
		t.Errorf("child color after parent change = %q, want red", got)
	}
}

func TestCascadeSkipsCleanNodes(t *testing.T) {
	env := &fakeEnv{}
	root := styledTree(t, "<p>hi</p>", "p { color: red; }", env)
	p := findTag(root, "p")
	for _, f := range p.Style {
		if f.Dirty() {
			t.Fatalf("field %v still dirty after cascade", f)
		}
	}
	// A second pass with unchanged inputs leaves everything clean.
	rules := ParseStylesheet("p { color: red; }")
	SortRules(rules)
	Style(root, rules, env)
	if got := p.Style["color"].Get(); got != "red" {
		t.Errorf("color after idempotent restyle = %q", got)
	}
}

func TestCascadePriorityAndSourceOrder(t *testing.T) {
	env := &fakeEnv{}
	sheet := "p { color: red; } p { color: blue; } body p { color: green; }"
	root := styledTree(t, "<p>hi</p>", sheet, env)
	p := findTag(root, "p")
	// The descendant selector has higher priority than either tag rule.
	if got := p.Style["color"].Get(); got != "green" {
		t.Errorf("color = %q, want green", got)
	}
}

func TestCascadeInlineStyleWins(t *testing.T) {
	env := &fakeEnv{}
	root := styledTree(t, `<p style="color: orange">hi</p>`, "p { color: red; }", env)
	p := findTag(root, "p")
	if got := p.Style["color"].Get(); got != "orange" {
		t.Errorf("color = %q, want orange", got)
	}
}

func TestCascadeFontSizePercentage(t *testing.T) {
	env := &fakeEnv{}
	sheet := "div { font-size: 20px; } p { font-size: 150% ; }"
	root := styledTree(t, "<div><p>hi</p></div>", sheet, env)
	p := findTag(root, "p")
	if got := p.Style["font-size"].Get(); got != "30px" {
		t.Errorf("font-size = %q, want 30px", got)
	}
}

func TestCascadeDarkMode(t *testing.T) {
	env := &fakeEnv{darkMode: true}
	sheet := `
		@media (prefers-color-scheme: dark) { a { color: lightblue; } }
		@media (prefers-color-scheme: light) { a { color: blue; } }
	`
	root := styledTree(t, "<p>hi <a href=x>link</a></p>", sheet, env)
	a := findTag(root, "a")
	if got := a.Style["color"].Get(); got != "lightblue" {
		t.Errorf("dark-mode link color = %q, want lightblue", got)
	}
	// Root default text color flips to white in dark mode.
	p := findTag(root, "p")
	if got := p.Style["color"].Get(); got != "white" {
		t.Errorf("dark-mode text color = %q, want white", got)
	}
}

func TestOpacityTransition(t *testing.T) {
	env := &fakeEnv{}
	sheet := "div { opacity: 1; transition: opacity 0.132s; }"
	root := styledTree(t, "<div>hi</div>", sheet, env)
	div := findTag(root, "div")
	if got := div.Style["opacity"].Get(); got != "1" {
		t.Fatalf("initial opacity = %q, want 1", got)
	}

	// The rule now drives opacity to 0; the transition spreads the change
	// over several frames at the 33ms refresh rate.
	rules := ParseStylesheet("div { opacity: 0; transition: opacity 0.132s; }")
	SortRules(rules)
	DirtyStyle(div)
	Style(root, rules, env)

	if env.needsRender == 0 {
		t.Fatalf("starting a transition did not request a render")
	}
	anim, ok := div.Animations["opacity"]
	if !ok {
		t.Fatalf("no opacity animation registered")
	}

	prev := 1.0
	first, err := strconv.ParseFloat(div.Style["opacity"].Get(), 64)
	if err != nil {
		t.Fatalf("opacity %q: %v", div.Style["opacity"].Get(), err)
	}
	if first >= prev || first <= 0 {
		t.Fatalf("first frame opacity = %v, want strictly between 0 and 1", first)
	}
	prev = first

	var last float64 = first
	for {
		value, ok := anim.Animate()
		if !ok {
			break
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			t.Fatalf("opacity %q: %v", value, err)
		}
		if v >= prev {
			t.Errorf("opacity did not decrease: %v -> %v", prev, v)
		}
		prev = v
		last = v
	}
	if last != 0 {
		t.Errorf("final opacity = %v, want exactly 0", last)
	}
}

func TestTransitionNotStartedWhenValueUnchanged(t *testing.T) {
	env := &fakeEnv{}
	sheet := "div { opacity: 0.5; transition: opacity 1s; }"
	root := styledTree(t, "<div>hi</div>", sheet, env)
	div := findTag(root, "div")

	DirtyStyle(div)
	rules := ParseStylesheet(sheet)
	SortRules(rules)
	before := env.needsRender
	Style(root, rules, env)
	if env.needsRender != before {
		t.Errorf("restyle with unchanged opacity started a transition")
	}
	if _, ok := div.Animations["opacity"]; ok {
		t.Errorf("animation registered for unchanged value")
	}
}
