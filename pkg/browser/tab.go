package browser

import (
	"math"
	"sort"

	"lantern/pkg/a11y"
	"lantern/pkg/html"
	"lantern/pkg/images"
	"lantern/pkg/js"
	"lantern/pkg/layout"
	"lantern/pkg/net"
	"lantern/pkg/render"
	"lantern/pkg/task"

	"go.uber.org/zap"
)

const scrollStep = 100

// CommitData is an immutable frame snapshot handed from a tab's runner
// goroutine to the browser. Nil fields mean "unchanged since last commit".
type CommitData struct {
	URL              *net.URL
	Scroll           *float64
	RootFrameFocused bool
	Height           float64
	DisplayList      []render.Item
	// CompositedUpdates is non-nil when nothing moved or resized this
	// frame, only isolated effect parameters changed; the browser then
	// skips compositing and rastering entirely.
	CompositedUpdates map[*html.Node]render.Effect
	AccessibilityTree *a11y.Node
	Focus             *html.Node
}

// Tab owns one page: a root frame plus any nested iframes, a task runner
// goroutine everything document-side runs on, and per-origin script
// contexts.
type Tab struct {
	browser *Browser
	runner  *task.Runner
	client  *net.Client

	width, height float64
	zoom          float64
	darkMode      bool

	history      []*net.URL
	focus        *html.Node
	focusedFrame *Frame

	rootFrame       *Frame
	windowIDToFrame map[int]*Frame
	originToJS      map[string]*js.Context
	nextWindowID    int

	needsPaint         bool
	needsAccessibility bool
	accessibilityTree  *a11y.Node
	compositedUpdates  []*html.Node
	displayList        []render.Item

	imageCache *images.Cache
	loaded     bool
	log        *zap.Logger
}

func NewTab(browser *Browser, width, height float64) *Tab {
	t := &Tab{
		browser:         browser,
		runner:          task.NewRunner(),
		client:          net.NewClient(),
		width:           width,
		height:          height,
		zoom:            1,
		darkMode:        browser.darkMode,
		windowIDToFrame: make(map[int]*Frame),
		originToJS:      make(map[string]*js.Context),
		imageCache:      images.NewCache(),
		log:             browser.log,
	}
	t.runner.Start()
	return t
}

func (t *Tab) Runner() *task.Runner { return t.runner }

// Schedule, SetNeedsAnimationFrame and PostMessage are the script engine's
// view of the tab.
func (t *Tab) Schedule(tk *task.Task) { t.runner.Schedule(tk) }

func (t *Tab) SetNeedsAnimationFrame() {
	t.browser.setNeedsAnimationFrame(t)
}

func (t *Tab) PostMessage(targetWindowID int, message string) {
	frame, ok := t.windowIDToFrame[targetWindowID]
	if !ok || !frame.loaded {
		return
	}
	frame.js().DeliverMessage(targetWindowID, message)
}

func (t *Tab) allocWindowID() int {
	id := t.nextWindowID
	t.nextWindowID++
	return id
}

func (t *Tab) getJS(url *net.URL) *js.Context {
	origin := url.Origin()
	ctx, ok := t.originToJS[origin]
	if !ok {
		ctx = js.NewContext(t, origin, t.log)
		t.originToJS[origin] = ctx
	}
	return ctx
}

func (t *Tab) scheduleScript(name, code string, windowID int) {
	frame := t.windowIDToFrame[windowID]
	t.runner.Schedule(task.New("script "+name, func() {
		frame.js().Run(name, code, windowID)
	}))
}

func (t *Tab) setNeedsPaint() {
	t.needsPaint = true
	t.browser.setNeedsAnimationFrame(t)
}

func (t *Tab) setNeedsAccessibility() {
	t.needsAccessibility = true
}

// Load navigates the tab. Pending tasks are dropped and the old page's
// script contexts are discarded so their in-flight callbacks become no-ops.
func (t *Tab) Load(url *net.URL, payload []byte) {
	t.loaded = false
	t.history = append(t.history, url)
	t.runner.ClearPending()
	for _, ctx := range t.originToJS {
		ctx.SetDiscarded()
	}
	t.originToJS = make(map[string]*js.Context)
	t.windowIDToFrame = make(map[int]*Frame)
	t.focus = nil
	t.focusedFrame = nil

	t.rootFrame = newFrame(t, nil, nil)
	t.rootFrame.frameWidth = t.width
	t.rootFrame.frameHeight = t.height
	t.rootFrame.load(url, payload)
	t.loaded = true
}

func (t *Tab) GoBack() {
	if len(t.history) <= 1 {
		return
	}
	t.history = t.history[:len(t.history)-1]
	back := t.history[len(t.history)-1]
	t.history = t.history[:len(t.history)-1]
	t.Load(back, nil)
}

// ZoomBy scales the page and the scroll position together so the viewport
// keeps showing the same content.
func (t *Tab) ZoomBy(increment bool) {
	if t.rootFrame == nil {
		return
	}
	factor := 1.1
	if !increment {
		factor = 1 / 1.1
	}
	t.zoom *= factor
	t.rootFrame.scroll *= factor
	t.markZoomDirty()
}

func (t *Tab) ResetZoom() {
	if t.rootFrame == nil {
		return
	}
	t.rootFrame.scroll /= t.zoom
	t.zoom = 1
	t.markZoomDirty()
}

func (t *Tab) markZoomDirty() {
	for _, frame := range t.windowIDToFrame {
		if frame.loaded {
			frame.document.SetViewport(frame.frameWidth, t.zoom)
		}
	}
	t.rootFrame.scrollChangedInFrame = true
	t.setNeedsRenderAllFrames()
}

func (t *Tab) SetDarkMode(on bool) {
	t.darkMode = on
	t.setNeedsRenderAllFrames()
}

func (t *Tab) setNeedsRenderAllFrames() {
	for _, frame := range t.windowIDToFrame {
		frame.SetNeedsRender()
	}
}

// orderedFrames returns frames in window-ID order, so a parent document
// always renders before the iframes it sizes.
func (t *Tab) orderedFrames() []*Frame {
	ids := make([]int, 0, len(t.windowIDToFrame))
	for id := range t.windowIDToFrame {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	frames := make([]*Frame, 0, len(ids))
	for _, id := range ids {
		frames = append(frames, t.windowIDToFrame[id])
	}
	return frames
}

func (t *Tab) targetFrame() *Frame {
	if t.focusedFrame != nil {
		return t.focusedFrame
	}
	return t.rootFrame
}

func (t *Tab) AdvanceTab() {
	if frame := t.targetFrame(); frame != nil && frame.loaded {
		frame.advanceTab()
	}
}

func (t *Tab) Keypress(char rune) {
	if frame := t.targetFrame(); frame != nil && frame.loaded {
		frame.keypress(char)
	}
}

func (t *Tab) Click(x, y float64) {
	if t.rootFrame == nil || !t.rootFrame.loaded {
		return
	}
	t.render()
	t.rootFrame.click(x, y)
}

func (t *Tab) Enter() {
	if t.focus != nil {
		t.targetFrame().activateElement(t.focus)
	}
}

func (t *Tab) ScrollDown() {
	frame := t.targetFrame()
	if frame == nil {
		return
	}
	frame.scrollDown()
	t.setNeedsPaint()
}

// RunAnimationFrame produces one frame: pending scroll, script callbacks,
// animation steps, incremental render, then a commit to the browser.
func (t *Tab) RunAnimationFrame(scroll float64) {
	if t.rootFrame == nil || t.rootFrame.document == nil {
		return
	}
	if !t.rootFrame.scrollChangedInFrame {
		t.rootFrame.scroll = scroll
	}

	needsComposite := false
	for _, frame := range t.orderedFrames() {
		if !frame.loaded {
			continue
		}
		frame.js().RunAnimationFrameHandlers(frame.windowID)

		for _, node := range html.TreeToList(frame.nodes, nil) {
			for property, animation := range node.Animations {
				value, ok := animation.Animate()
				if !ok {
					delete(node.Animations, property)
					continue
				}
				node.Style[property].Set(value)
				t.compositedUpdates = append(t.compositedUpdates, node)
				t.setNeedsPaint()
			}
		}

		if frame.needsStyle || frame.needsLayout {
			needsComposite = true
		}
	}

	t.render()

	for _, frame := range t.orderedFrames() {
		if frame == t.rootFrame {
			continue
		}
		if frame.scrollChangedInFrame {
			needsComposite = true
			frame.scrollChangedInFrame = false
		}
	}

	if t.focus != nil && t.focusedFrame != nil && t.focusedFrame.needsFocusScroll {
		t.focusedFrame.scrollTo(t.focus)
		t.focusedFrame.needsFocusScroll = false
	}

	var compositedUpdates map[*html.Node]render.Effect
	if !needsComposite {
		compositedUpdates = make(map[*html.Node]render.Effect, len(t.compositedUpdates))
		for _, node := range t.compositedUpdates {
			if effect, ok := node.BlendOp.(render.Effect); ok {
				compositedUpdates[node] = effect
			}
		}
	}
	t.compositedUpdates = nil

	var scrollOut *float64
	if t.rootFrame.scrollChangedInFrame {
		s := t.rootFrame.scroll
		scrollOut = &s
	}

	data := &CommitData{
		URL:               t.rootFrame.url,
		Scroll:            scrollOut,
		RootFrameFocused:  t.focusedFrame == nil || t.focusedFrame == t.rootFrame,
		Height:            math.Ceil(t.rootFrame.document.Height()),
		DisplayList:       t.displayList,
		CompositedUpdates: compositedUpdates,
		AccessibilityTree: t.accessibilityTree,
		Focus:             t.focus,
	}
	t.displayList = nil
	t.rootFrame.scrollChangedInFrame = false
	t.browser.commit(t, data)
}

// render runs style and layout on every loaded frame, then rebuilds the
// accessibility tree and display list where needed.
func (t *Tab) render() {
	for _, frame := range t.orderedFrames() {
		if frame.loaded {
			frame.render()
		}
	}

	if t.needsAccessibility {
		t.accessibilityTree = a11y.Build(t.rootFrame.nodes)
		t.needsAccessibility = false
		t.needsPaint = true
	}

	if t.needsPaint {
		t.displayList = nil
		layout.PaintTree(t.rootFrame.document, &t.displayList)
		t.needsPaint = false
	}
}
