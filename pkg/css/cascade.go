package css

import (
	"sort"
	"strconv"
	"strings"

	"lantern/pkg/html"
	"lantern/pkg/invalidation"
)

// InheritedProperties are seeded from the parent's resolved values, or from
// these root defaults when there is no parent.
var InheritedProperties = map[string]string{
	"font-size":   "16px",
	"font-style":  "normal",
	"font-weight": "normal",
	"color":       "black",
}

// defaultProperties lists every property the engine resolves, with its
// non-inherited default ("inherit" marks the inherited ones).
var defaultProperties = map[string]string{
	"font-size":        "inherit",
	"font-style":       "inherit",
	"font-weight":      "inherit",
	"color":            "inherit",
	"opacity":          "1.0",
	"transition":       "",
	"transform":        "none",
	"mix-blend-mode":   "",
	"border-radius":    "0px",
	"overflow":         "visible",
	"outline":          "none",
	"background-color": "transparent",
	"image-rendering":  "auto",
}

// Env gives the cascade access to ambient document state.
type Env interface {
	// DarkMode reports the ambient color scheme.
	DarkMode() bool
	// SetNeedsRender requests another style/layout/paint pass, used when a
	// transition starts and more frames are needed.
	SetNeedsRender()
}

// InitStyle creates the node's per-property style fields. Fields start
// dirty, so the first cascade always resolves every property.
func InitStyle(node *html.Node) {
	node.Style = make(map[string]*invalidation.Field[string], len(defaultProperties))
	for property := range defaultProperties {
		node.Style[property] = invalidation.New[string]("style."+property, nil)
	}
}

// InitStyleTree runs InitStyle over a whole subtree.
func InitStyleTree(node *html.Node) {
	InitStyle(node)
	for _, child := range node.Children {
		InitStyleTree(child)
	}
}

// DirtyStyle marks every style field of the node dirty, forcing the next
// cascade to re-resolve it. Used when attributes or the rule list change.
func DirtyStyle(node *html.Node) {
	for _, field := range node.Style {
		field.Mark()
	}
}

// SortRules orders rules by ascending selector priority, keeping source
// order for ties so later rules of equal priority win.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Selector.Priority() < rules[j].Selector.Priority()
	})
}

// Style resolves the node's style and recurses over its children. A node is
// skipped (not its children) unless at least one of its style fields is
// dirty. Rules must already be sorted by ascending priority.
func Style(node *html.Node, rules []Rule, env Env) {
	needsStyle := false
	for _, field := range node.Style {
		if field.Dirty() {
			needsStyle = true
			break
		}
	}
	if needsStyle {
		styleNode(node, rules, env)
	}
	for _, child := range node.Children {
		Style(child, rules, env)
	}
}

func styleNode(node *html.Node, rules []Rule, env Env) {
	oldStyle := make(map[string]string, len(node.Style))
	hadOld := false
	for property, field := range node.Style {
		if value, ok := field.Stale(); ok {
			oldStyle[property] = value
			hadOld = true
		}
	}

	newStyle := make(map[string]string, len(defaultProperties))
	for property, def := range defaultProperties {
		newStyle[property] = def
	}
	for property := range InheritedProperties {
		if node.Parent != nil {
			// Reading through the child's field records the edge, so a
			// parent style change re-dirties the child.
			newStyle[property] = node.Parent.Style[property].Read(node.Style[property])
		} else {
			newStyle[property] = rootDefault(property, env)
		}
	}

	for _, rule := range rules {
		if rule.Media != "" && (rule.Media == "dark") != env.DarkMode() {
			continue
		}
		if !rule.Selector.Matches(node) {
			continue
		}
		for property, value := range rule.Declarations {
			newStyle[property] = value
		}
	}

	if node.Type == html.ElementNode {
		if styleAttr, ok := node.GetAttribute("style"); ok {
			for property, value := range ParseInlineStyle(styleAttr) {
				newStyle[property] = value
			}
		}
	}

	if strings.HasSuffix(newStyle["font-size"], "%") {
		parentPx := InheritedProperties["font-size"]
		if node.Parent != nil {
			parentPx = node.Parent.Style["font-size"].Read(node.Style["font-size"])
		}
		pct := mustParseFloat(strings.TrimSuffix(newStyle["font-size"], "%")) / 100
		px := mustParseFloat(strings.TrimSuffix(parentPx, "px"))
		newStyle["font-size"] = strconv.FormatFloat(pct*px, 'f', -1, 64) + "px"
	}

	if hadOld {
		for property, tr := range diffStyles(oldStyle, newStyle) {
			// Only opacity transitions animate; other transitioned
			// properties jump to their new value.
			if property != "opacity" {
				continue
			}
			animation, err := NewNumericAnimation(tr.oldValue, tr.newValue, tr.numFrames)
			if err != nil {
				continue
			}
			env.SetNeedsRender()
			node.Animations[property] = animation
			if value, ok := animation.Animate(); ok {
				newStyle[property] = value
			}
		}
	}

	for property, field := range node.Style {
		field.Set(newStyle[property])
	}
}

func rootDefault(property string, env Env) string {
	if env.DarkMode() {
		if property == "color" {
			return "white"
		}
	}
	return InheritedProperties[property]
}

type transition struct {
	oldValue  string
	newValue  string
	numFrames int
}

// diffStyles finds properties named in the new style's transition
// declaration whose resolved value changed.
func diffStyles(oldStyle, newStyle map[string]string) map[string]transition {
	transitions := make(map[string]transition)
	for property, numFrames := range ParseTransition(newStyle["transition"]) {
		oldValue, okOld := oldStyle[property]
		newValue, okNew := newStyle[property]
		if !okOld || !okNew || oldValue == newValue {
			continue
		}
		transitions[property] = transition{oldValue: oldValue, newValue: newValue, numFrames: numFrames}
	}
	return transitions
}
