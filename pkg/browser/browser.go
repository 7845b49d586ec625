package browser

import (
	"image"
	"sync"
	"time"

	"lantern/pkg/a11y"
	"lantern/pkg/composite"
	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/net"
	"lantern/pkg/render"
	"lantern/pkg/task"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

// Browser owns the graphics surfaces and the composite/raster/draw half of
// the pipeline. Tabs publish work to it through commit; it never calls
// back into a tab while holding its lock.
type Browser struct {
	mu sync.Mutex

	tabs      []*Tab
	activeTab *Tab

	width, height float64
	darkMode      bool
	rootSurface   *gg.Context

	needsComposite      bool
	needsRaster         bool
	needsDraw           bool
	needsAnimationFrame bool
	animationTimer      *time.Timer

	activeTabURL         *net.URL
	activeTabScroll      float64
	activeTabHeight      float64
	rootFrameFocused     bool
	activeTabDisplayList []render.Item
	compositedLayers     []*composite.Layer
	drawList             []render.Item
	compositedUpdates    map[*html.Node]render.Effect
	accessibilityTree    *a11y.Node

	focus string
	log   *zap.Logger
}

func New(width, height float64, darkMode bool, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{
		width:               width,
		height:              height,
		darkMode:            darkMode,
		rootSurface:         gg.NewContext(int(width), int(height)),
		needsAnimationFrame: true,
		rootFrameFocused:    true,
		log:                 logger,
	}
}

// Surface returns a snapshot copy of the rasterized frame buffer, so the
// window shell can hand it to its renderer while the next frame draws into
// the live buffer.
func (b *Browser) Surface() image.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	src := b.rootSurface.Image().(*image.RGBA)
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}

// ActiveURL is the address of the last committed page, for the window title.
func (b *Browser) ActiveURL() *net.URL {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeTabURL
}

// AccessibilityTree is the last committed accessibility snapshot.
func (b *Browser) AccessibilityTree() *a11y.Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessibilityTree
}

func (b *Browser) NewTab(url *net.URL) *Tab {
	b.mu.Lock()
	tab := NewTab(b, b.width, b.height)
	b.tabs = append(b.tabs, tab)
	b.setActiveTab(tab)
	b.mu.Unlock()

	b.ScheduleLoad(url, nil)
	return tab
}

func (b *Browser) setActiveTab(tab *Tab) {
	b.activeTab = tab
	b.rootFrameFocused = true
	b.activeTabScroll = 0
	b.activeTabURL = nil
	b.activeTabDisplayList = nil
	b.compositedLayers = nil
	b.compositedUpdates = nil
	b.needsAnimationFrame = true
	b.stopAnimationTimer()
}

func (b *Browser) SetActiveTab(tab *Tab) {
	b.mu.Lock()
	b.setActiveTab(tab)
	b.mu.Unlock()
}

// lockedActiveTab reads the active-tab pointer under the browser lock; every
// event handler goes through it so tab switches never race.
func (b *Browser) lockedActiveTab() *Tab {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeTab
}

func (b *Browser) stopAnimationTimer() {
	if b.animationTimer != nil {
		b.animationTimer.Stop()
		b.animationTimer = nil
	}
}

func (b *Browser) clampScroll(scroll float64) float64 {
	maxScroll := b.activeTabHeight - b.height
	return max(0, min(scroll, max(0, maxScroll)))
}

// commit is the producer's single entry point. A commit from a tab that is
// no longer active is dropped without touching browser state.
func (b *Browser) commit(tab *Tab, data *CommitData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tab != b.activeTab {
		return
	}

	b.activeTabURL = data.URL
	b.activeTabHeight = data.Height
	b.rootFrameFocused = data.RootFrameFocused
	b.accessibilityTree = data.AccessibilityTree
	b.animationTimer = nil

	if data.Scroll != nil {
		b.activeTabScroll = *data.Scroll
	}
	if data.DisplayList != nil {
		b.activeTabDisplayList = data.DisplayList
	}

	b.compositedUpdates = data.CompositedUpdates
	if b.compositedUpdates == nil {
		b.compositedUpdates = map[*html.Node]render.Effect{}
		b.setNeedsComposite()
	} else {
		b.setNeedsDraw()
	}
}

func (b *Browser) setNeedsAnimationFrame(tab *Tab) {
	b.mu.Lock()
	if tab == b.activeTab {
		b.needsAnimationFrame = true
	}
	b.mu.Unlock()
}

func (b *Browser) setNeedsRaster() {
	b.needsRaster = true
	b.needsDraw = true
}

func (b *Browser) setNeedsComposite() {
	b.needsComposite = true
	b.needsRaster = true
	b.needsDraw = true
}

func (b *Browser) setNeedsDraw() {
	b.needsDraw = true
}

// ScheduleAnimationFrame arms the frame timer: a single in-flight timer,
// created only when a tab has asked for a frame.
func (b *Browser) ScheduleAnimationFrame() {
	callback := func() {
		b.mu.Lock()
		scroll := b.activeTabScroll
		tab := b.activeTab
		b.needsAnimationFrame = false
		b.mu.Unlock()
		if tab == nil {
			return
		}
		tab.Schedule(task.New("animation frame", func() {
			tab.RunAnimationFrame(scroll)
		}))
	}

	b.mu.Lock()
	if b.needsAnimationFrame && b.animationTimer == nil {
		b.animationTimer = time.AfterFunc(css.RefreshRate, callback)
	}
	b.mu.Unlock()
}

func (b *Browser) ScheduleLoad(url *net.URL, body []byte) {
	b.mu.Lock()
	tab := b.activeTab
	b.mu.Unlock()
	if tab == nil {
		return
	}
	tab.Runner().ClearPending()
	tab.Schedule(task.New("load", func() {
		tab.Load(url, body)
	}))
}

func (b *Browser) HandleClick(x, y float64) {
	b.mu.Lock()
	b.focus = "content"
	tab := b.activeTab
	b.mu.Unlock()
	if tab == nil {
		return
	}
	tab.Schedule(task.New("click", func() {
		tab.Click(x, y)
	}))
}

func (b *Browser) HandleKey(char rune) {
	b.mu.Lock()
	focused := b.focus == "content"
	tab := b.activeTab
	b.mu.Unlock()
	if !focused || tab == nil || char < 0x20 || char >= 0x7f {
		return
	}
	tab.Schedule(task.New("keypress", func() {
		tab.Keypress(char)
	}))
}

func (b *Browser) HandleEnter() {
	tab := b.lockedActiveTab()
	if tab == nil {
		return
	}
	tab.Schedule(task.New("enter", func() {
		tab.Enter()
	}))
}

func (b *Browser) HandleTab() {
	tab := b.lockedActiveTab()
	if tab == nil {
		return
	}
	tab.Schedule(task.New("advance focus", func() {
		tab.AdvanceTab()
	}))
}

// HandleDown scrolls the root page directly; when an iframe holds focus the
// scroll is forwarded to its frame instead.
func (b *Browser) HandleDown() {
	b.mu.Lock()
	if !b.rootFrameFocused {
		tab := b.activeTab
		b.mu.Unlock()
		if tab != nil {
			tab.Schedule(task.New("scroll", tab.ScrollDown))
		}
		return
	}
	if b.activeTabHeight == 0 {
		b.mu.Unlock()
		return
	}
	b.activeTabScroll = b.clampScroll(b.activeTabScroll + scrollStep)
	b.setNeedsRaster()
	b.needsAnimationFrame = true
	b.mu.Unlock()
}

func (b *Browser) HandleBack() {
	tab := b.lockedActiveTab()
	if tab == nil {
		return
	}
	tab.Schedule(task.New("back", func() {
		tab.GoBack()
	}))
}

func (b *Browser) ToggleDarkMode() {
	b.mu.Lock()
	b.darkMode = !b.darkMode
	dark := b.darkMode
	tab := b.activeTab
	b.mu.Unlock()
	if tab == nil {
		return
	}
	tab.Schedule(task.New("dark mode", func() {
		tab.SetDarkMode(dark)
	}))
}

func (b *Browser) HandleZoom(increment bool) {
	tab := b.lockedActiveTab()
	if tab == nil {
		return
	}
	tab.Schedule(task.New("zoom", func() {
		tab.ZoomBy(increment)
	}))
}

func (b *Browser) HandleResetZoom() {
	tab := b.lockedActiveTab()
	if tab == nil {
		return
	}
	tab.Schedule(task.New("reset zoom", func() {
		tab.ResetZoom()
	}))
}

// HandleQuit drains every tab's task runner and stops the frame timer.
func (b *Browser) HandleQuit() {
	b.mu.Lock()
	b.stopAnimationTimer()
	tabs := b.tabs
	b.mu.Unlock()
	for _, tab := range tabs {
		tab.Runner().Close()
	}
}

// CompositeRasterAndDraw runs whichever of the three consumer stages the
// pending flags require. Called from the shell's frame loop.
func (b *Browser) CompositeRasterAndDraw() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.needsComposite && !b.needsRaster && !b.needsDraw {
		return
	}

	if b.needsComposite {
		b.compositedLayers = composite.Composite(b.activeTabDisplayList)
	}
	if b.needsRaster {
		composite.RasterLayers(b.compositedLayers)
	}
	if b.needsDraw {
		b.drawList = composite.PaintDrawList(b.compositedLayers, b.compositedUpdates)
		b.draw()
	}

	b.needsComposite = false
	b.needsRaster = false
	b.needsDraw = false
}

func (b *Browser) draw() {
	if b.darkMode {
		b.rootSurface.SetRGB(0, 0, 0)
	} else {
		b.rootSurface.SetRGB(1, 1, 1)
	}
	b.rootSurface.Clear()
	composite.DrawLayers(b.drawList, b.rootSurface, b.activeTabScroll)
}
