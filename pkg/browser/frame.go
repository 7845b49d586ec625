package browser

import (
	"fmt"
	"sort"
	"strings"

	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/images"
	"lantern/pkg/js"
	"lantern/pkg/layout"
	"lantern/pkg/net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultStyleSheet is the user-agent stylesheet every document starts from.
const defaultStyleSheet = `
pre { background-color: gray; }
a { color: blue; }
i { font-style: italic; }
b { font-weight: bold; }
small { font-size: 90%; }
big { font-size: 110%; }
input { font-size: 16px; font-weight: normal; font-style: normal; background-color: lightblue; }
button { font-size: 16px; font-weight: normal; font-style: normal; background-color: orange; }
iframe { outline: 1px solid black; }
@media (prefers-color-scheme: dark) {
a { color: lightblue; }
input { background-color: blue; }
button { background-color: orangered; }
}
`

// Frame is one document inside a tab: the root document or an iframe's
// embedded document. All frame methods run on the tab's task runner.
type Frame struct {
	tab          *Tab
	parentFrame  *Frame
	frameElement *html.Node
	windowID     int

	url            *net.URL
	nodes          *html.Node
	rules          []css.Rule
	allowedOrigins []string

	document    *layout.DocumentLayout
	frameWidth  float64
	frameHeight float64

	scroll               float64
	scrollChangedInFrame bool
	needsFocusScroll     bool

	needsStyle  bool
	needsLayout bool

	loaded bool
	log    *zap.Logger
}

func newFrame(tab *Tab, parent *Frame, frameElement *html.Node) *Frame {
	f := &Frame{
		tab:          tab,
		parentFrame:  parent,
		frameElement: frameElement,
		windowID:     tab.allocWindowID(),
		frameWidth:   tab.width,
		frameHeight:  tab.height,
		log:          tab.log,
	}
	tab.windowIDToFrame[f.windowID] = f
	return f
}

// Loaded, SetViewport, Scroll and DocumentLayout let iframe layout objects
// drive this frame's embedded document.
func (f *Frame) Loaded() bool { return f.loaded }

func (f *Frame) SetViewport(width, height float64) {
	if width != f.frameWidth || height != f.frameHeight {
		f.setNeedsLayout()
	}
	f.frameWidth = width
	f.frameHeight = height
	f.document.SetViewport(width, f.tab.zoom)
}

func (f *Frame) Scroll() float64             { return f.scroll }
func (f *Frame) DocumentLayout() layout.Node { return f.document }

// WindowID, Document, BaseURL, Fetch, Cookie and ParentWindowID are the
// script engine's view of the frame.
func (f *Frame) WindowID() int        { return f.windowID }
func (f *Frame) Document() *html.Node { return f.nodes }
func (f *Frame) BaseURL() *net.URL    { return f.url }

func (f *Frame) Fetch(u *net.URL, payload string) (string, error) {
	var body []byte
	if payload != "" {
		body = []byte(payload)
	}
	out, _, err := f.tab.client.Request(u, f.url, body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (f *Frame) Cookie() string {
	if f.url == nil {
		return ""
	}
	if c, ok := f.tab.client.Jar().Get(f.url.Host); ok {
		return c.Value
	}
	return ""
}

func (f *Frame) ParentWindowID() (int, bool) {
	if f.parentFrame == nil {
		return 0, false
	}
	return f.parentFrame.windowID, true
}

// AllowedRequest applies the document's content security policy.
func (f *Frame) AllowedRequest(u *net.URL) bool {
	return net.AllowedByCSP(f.allowedOrigins, u)
}

// DarkMode and SetNeedsRender make the frame the cascade's environment.
func (f *Frame) DarkMode() bool { return f.tab.darkMode }

func (f *Frame) SetNeedsRender() {
	f.needsStyle = true
	f.tab.setNeedsAccessibility()
	f.tab.setNeedsPaint()
}

func (f *Frame) setNeedsLayout() {
	f.needsLayout = true
	f.tab.setNeedsAccessibility()
	f.tab.setNeedsPaint()
}

func (f *Frame) js() *js.Context { return f.tab.getJS(f.url) }

// load fetches and builds the document: parse, subresources, scripts,
// style, layout tree. payload non-nil means a POST (form submission).
func (f *Frame) load(url *net.URL, payload []byte) {
	f.loaded = false
	f.scroll = 0
	f.scrollChangedInFrame = true

	body, headers, err := f.tab.client.Request(url, f.referrer(), payload)
	if err != nil {
		f.log.Info("load failed", zap.Stringer("url", url), zap.Error(err))
		return
	}
	f.url = url
	f.allowedOrigins = net.ParseCSP(headers)

	nodes, err := html.Parse(string(body))
	if err != nil {
		f.log.Info("parse failed", zap.Stringer("url", url), zap.Error(err))
		return
	}
	f.nodes = nodes
	css.InitStyleTree(nodes)

	if err := f.js().AddWindow(f); err != nil {
		f.log.Info("window setup failed", zap.Error(err))
	}

	f.loadScripts()
	f.loadStyles()
	f.loadImages()
	f.loadIframes()

	f.document = layout.NewDocumentLayout(nodes, f)
	f.document.SetViewport(f.frameWidth, f.tab.zoom)
	f.SetNeedsRender()
	f.setNeedsLayout()
	f.loaded = true
}

// navigate routes a user-initiated navigation. The root frame navigates
// through the tab so history grows and the old page's script contexts are
// discarded; an iframe swaps out only its own document.
func (f *Frame) navigate(url *net.URL, payload []byte) {
	if f.parentFrame == nil {
		f.tab.Load(url, payload)
		return
	}
	f.load(url, payload)
}

func (f *Frame) referrer() *net.URL {
	if f.parentFrame != nil {
		return f.parentFrame.url
	}
	return nil
}

// fetchAllowed resolves a subresource reference and applies CSP. A blocked
// or unresolvable reference returns ok=false with a diagnostic.
func (f *Frame) fetchAllowed(ref, kind string) (*net.URL, bool) {
	u, err := f.url.Resolve(ref)
	if err != nil {
		f.log.Info("bad "+kind+" URL", zap.String("ref", ref), zap.Error(err))
		return nil, false
	}
	if !f.AllowedRequest(u) {
		f.log.Info(kind+" blocked by Content-Security-Policy", zap.Stringer("url", u))
		return nil, false
	}
	return u, true
}

func (f *Frame) loadScripts() {
	type script struct {
		url  *net.URL
		code string
		ok   bool
	}
	var scripts []*script
	for _, node := range html.TreeToList(f.nodes, nil) {
		if node.TagName != "script" {
			continue
		}
		src, ok := node.GetAttribute("src")
		if !ok {
			continue
		}
		if u, allowed := f.fetchAllowed(src, "script"); allowed {
			scripts = append(scripts, &script{url: u})
		}
	}

	var g errgroup.Group
	for _, s := range scripts {
		s := s
		g.Go(func() error {
			body, _, err := f.tab.client.Request(s.url, f.url, nil)
			if err != nil {
				f.log.Info("script fetch failed", zap.Stringer("url", s.url), zap.Error(err))
				return nil
			}
			s.code = string(body)
			s.ok = true
			return nil
		})
	}
	g.Wait()

	// Scripts execute in document order once the load task finishes.
	for _, s := range scripts {
		if s.ok {
			f.tab.scheduleScript(s.url.String(), s.code, f.windowID)
		}
	}
}

func (f *Frame) loadStyles() {
	f.rules = css.ParseStylesheet(defaultStyleSheet)

	var links []*net.URL
	for _, node := range html.TreeToList(f.nodes, nil) {
		if node.TagName != "link" || node.Attr("rel") != "stylesheet" {
			continue
		}
		href, ok := node.GetAttribute("href")
		if !ok {
			continue
		}
		if u, allowed := f.fetchAllowed(href, "stylesheet"); allowed {
			links = append(links, u)
		}
	}

	sheets := make([][]css.Rule, len(links))
	var g errgroup.Group
	for i, u := range links {
		i, u := i, u
		g.Go(func() error {
			body, _, err := f.tab.client.Request(u, f.url, nil)
			if err != nil {
				f.log.Info("stylesheet fetch failed", zap.Stringer("url", u), zap.Error(err))
				return nil
			}
			sheets[i] = css.ParseStylesheet(string(body))
			return nil
		})
	}
	g.Wait()

	for _, sheet := range sheets {
		f.rules = append(f.rules, sheet...)
	}
	css.SortRules(f.rules)
}

func (f *Frame) loadImages() {
	type imgLoad struct {
		node *html.Node
		url  *net.URL
	}
	var loads []imgLoad
	for _, node := range html.TreeToList(f.nodes, nil) {
		if node.TagName != "img" {
			continue
		}
		src, ok := node.GetAttribute("src")
		if !ok {
			node.Image = images.Broken
			continue
		}
		u, allowed := f.fetchAllowed(src, "image")
		if !allowed {
			node.Image = images.Broken
			continue
		}
		if img, ok := f.tab.imageCache.Get(u.String()); ok {
			node.Image = img
			continue
		}
		loads = append(loads, imgLoad{node, u})
	}

	var g errgroup.Group
	for _, l := range loads {
		l := l
		g.Go(func() error {
			body, _, err := f.tab.client.Request(l.url, f.url, nil)
			if err == nil {
				if img, derr := images.Decode(body); derr == nil {
					f.tab.imageCache.Put(l.url.String(), img)
					l.node.Image = img
					return nil
				} else {
					err = derr
				}
			}
			f.log.Info("image failed", zap.Stringer("url", l.url), zap.Error(err))
			l.node.Image = images.Broken
			return nil
		})
	}
	g.Wait()
}

func (f *Frame) loadIframes() {
	for _, node := range html.TreeToList(f.nodes, nil) {
		if node.TagName != "iframe" {
			continue
		}
		src, ok := node.GetAttribute("src")
		if !ok {
			continue
		}
		u, allowed := f.fetchAllowed(src, "frame")
		if !allowed {
			continue
		}
		child := newFrame(f.tab, f, node)
		node.Frame = child
		child.load(u, nil)
	}
}

// render runs the style and layout passes where dirty. Paint happens at the
// tab level because the display list spans frames.
func (f *Frame) render() {
	if f.needsStyle {
		css.Style(f.nodes, f.rules, f)
		f.needsStyle = false
		f.needsLayout = true
	}
	if f.needsLayout {
		f.document.Layout()
		f.needsLayout = false
	}
}

func (f *Frame) clampScroll(scroll float64) float64 {
	maxScroll := f.document.Height() + 2*layout.VStep - f.frameHeight
	return max(0, min(scroll, max(0, maxScroll)))
}

func (f *Frame) scrollDown() {
	if !f.loaded {
		return
	}
	f.scroll = f.clampScroll(f.scroll + scrollStep)
	f.scrollChangedInFrame = true
}

// scrollTo brings elt into the viewport if it is outside it.
func (f *Frame) scrollTo(elt *html.Node) {
	obj, ok := elt.LayoutObject.(layout.Node)
	if !ok || obj == nil {
		return
	}
	if f.scroll < obj.Y()+obj.Height() && obj.Y() < f.scroll+f.frameHeight {
		return
	}
	f.scroll = f.clampScroll(obj.Y() - scrollStep)
	f.scrollChangedInFrame = true
}

func (f *Frame) focusElement(elt *html.Node) {
	if elt != nil && elt == f.tab.focus {
		return
	}
	if elt != nil {
		f.needsFocusScroll = true
	}
	if f.tab.focus != nil {
		f.tab.focus.IsFocused = false
		css.DirtyStyle(f.tab.focus)
	}
	f.tab.focus = elt
	f.tab.focusedFrame = f
	if elt != nil {
		elt.IsFocused = true
		css.DirtyStyle(elt)
	}
	f.SetNeedsRender()
}

// advanceTab moves focus to the next focusable element in tab-index order,
// wrapping around to the address-bar-less start of the document.
func (f *Frame) advanceTab() {
	var focusable []*html.Node
	for _, node := range html.TreeToList(f.nodes, nil) {
		if html.IsFocusable(node) {
			focusable = append(focusable, node)
		}
	}
	if len(focusable) == 0 {
		f.focusElement(nil)
		return
	}
	sort.SliceStable(focusable, func(i, j int) bool {
		return html.TabIndex(focusable[i]) < html.TabIndex(focusable[j])
	})

	next := 0
	for i, node := range focusable {
		if node == f.tab.focus {
			next = i + 1
			break
		}
	}
	if next >= len(focusable) {
		f.focusElement(nil)
		return
	}
	f.focusElement(focusable[next])
}

func (f *Frame) keypress(char rune) {
	focus := f.tab.focus
	if focus == nil || focus.TagName != "input" {
		return
	}
	if !f.js().DispatchEvent("keydown", focus, f.windowID) {
		return
	}
	focus.Attributes["value"] += string(char)
	layout.MarkChildrenDirty(focus)
	f.SetNeedsRender()
}

// click hit-tests frame coordinates against the layout tree and triggers
// the deepest interested element.
func (f *Frame) click(x, y float64) {
	f.focusElement(nil)
	y += f.scroll

	var hit layout.Node
	for _, obj := range layoutTreeToList(f.document, nil) {
		if layout.SelfRect(obj).Contains(x, y) {
			hit = obj
		}
	}
	if hit == nil {
		return
	}

	for elt := hit.DOMNode(); elt != nil; elt = elt.Parent {
		if elt.Type == html.TextNode {
			continue
		}
		switch elt.TagName {
		case "iframe":
			child, ok := elt.Frame.(*Frame)
			if !ok || !child.loaded {
				return
			}
			obj, _ := elt.LayoutObject.(layout.Node)
			if obj == nil {
				return
			}
			border := layout.DPX(1, f.tab.zoom)
			child.click(x-obj.X()-border, y-obj.Y()-border)
			return
		case "a":
			href, ok := elt.GetAttribute("href")
			if !ok {
				continue
			}
			if !f.js().DispatchEvent("click", elt, f.windowID) {
				return
			}
			u, err := f.url.Resolve(href)
			if err != nil {
				f.log.Info("bad link", zap.String("href", href), zap.Error(err))
				return
			}
			f.navigate(u, nil)
			return
		case "input":
			if !f.js().DispatchEvent("click", elt, f.windowID) {
				return
			}
			elt.Attributes["value"] = ""
			f.focusElement(elt)
			layout.MarkChildrenDirty(elt)
			return
		case "button":
			if !f.js().DispatchEvent("click", elt, f.windowID) {
				return
			}
			f.submitForm(elt)
			return
		}
	}
}

func (f *Frame) activateElement(elt *html.Node) {
	switch elt.TagName {
	case "a":
		if href, ok := elt.GetAttribute("href"); ok {
			if u, err := f.url.Resolve(href); err == nil {
				f.navigate(u, nil)
			}
		}
	case "input":
		elt.Attributes["value"] = ""
		layout.MarkChildrenDirty(elt)
		f.SetNeedsRender()
	case "button":
		f.submitForm(elt)
	}
}

// submitForm POSTs the enclosing form's input values.
func (f *Frame) submitForm(elt *html.Node) {
	var form *html.Node
	for n := elt; n != nil; n = n.Parent {
		if n.TagName == "form" {
			if _, ok := n.GetAttribute("action"); ok {
				form = n
				break
			}
		}
	}
	if form == nil {
		return
	}
	if !f.js().DispatchEvent("submit", form, f.windowID) {
		return
	}

	var pairs []string
	for _, node := range html.TreeToList(form, nil) {
		if node.TagName != "input" {
			continue
		}
		name, ok := node.GetAttribute("name")
		if !ok {
			continue
		}
		pairs = append(pairs, formEncode(name)+"="+formEncode(node.Attr("value")))
	}
	body := strings.Join(pairs, "&")

	u, err := f.url.Resolve(form.Attr("action"))
	if err != nil {
		f.log.Info("bad form action", zap.String("action", form.Attr("action")), zap.Error(err))
		return
	}
	f.navigate(u, []byte(body))
}

func formEncode(s string) string {
	var sb strings.Builder
	for _, b := range []byte(s) {
		alnum := b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
		if alnum || b == '-' || b == '_' || b == '.' {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}

func layoutTreeToList(n layout.Node, list []layout.Node) []layout.Node {
	list = append(list, n)
	for _, child := range n.Children() {
		list = layoutTreeToList(child, list)
	}
	return list
}
