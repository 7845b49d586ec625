// Package js hosts page scripts on a goja runtime. One Context exists per
// security origin; every frame from that origin gets a Window object inside
// the shared runtime, and cross-frame calls go back out through the Tab.
package js

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/layout"
	"lantern/pkg/net"
	"lantern/pkg/task"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Frame is the slice of a document frame that scripts can reach.
type Frame interface {
	WindowID() int
	Document() *html.Node
	BaseURL() *net.URL
	// AllowedRequest reports whether the frame's content security policy
	// permits a request to u.
	AllowedRequest(u *net.URL) bool
	// Fetch performs a subresource request with the frame as referrer.
	Fetch(u *net.URL, payload string) (string, error)
	Cookie() string
	SetNeedsRender()
	ParentWindowID() (int, bool)
}

// Tab is the slice of the owning tab that scripts can reach. Calls arrive
// on the tab's task runner thread.
type Tab interface {
	Schedule(t *task.Task)
	SetNeedsAnimationFrame()
	// PostMessage delivers a message event to the window with the given id,
	// which may live in a different Context when origins differ.
	PostMessage(targetWindowID int, message string)
}

// Context is a JavaScript runtime shared by all same-origin frames of a tab.
type Context struct {
	vm        *goja.Runtime
	tab       Tab
	origin    string
	log       *zap.Logger
	discarded atomic.Bool

	frames     map[int]Frame
	handles    map[*html.Node]int
	nodes      map[int]*html.Node
	nextHandle int
}

func NewContext(tab Tab, origin string, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Context{
		vm:      goja.New(),
		tab:     tab,
		origin:  origin,
		log:     logger,
		frames:  make(map[int]Frame),
		handles: make(map[*html.Node]int),
		nodes:   make(map[int]*html.Node),
	}
	c.register()
	if _, err := c.vm.RunString(runtimeJS); err != nil {
		// The runtime source is a compile-time constant.
		panic(err)
	}
	return c
}

func (c *Context) Origin() string { return c.origin }

// SetDiscarded detaches the context from its tab. Pending timers and
// network callbacks become no-ops; this happens when the tab navigates
// away while the old page's work is still in flight.
func (c *Context) SetDiscarded() { c.discarded.Store(true) }

// AddWindow creates the Window object for a newly loaded frame.
func (c *Context) AddWindow(frame Frame) error {
	id := frame.WindowID()
	c.frames[id] = frame
	_, err := c.vm.RunString(fmt.Sprintf("__newWindow(%d)", id))
	return err
}

// Run executes a script inside the given frame's window scope. Script
// errors are logged, not returned; a broken script must not break the page.
func (c *Context) Run(name, code string, windowID int) {
	if c.discarded.Load() {
		return
	}
	wrapped := fmt.Sprintf("window = WINDOWS[%d];\nwith (window) { %s }", windowID, code)
	if _, err := c.vm.RunString(wrapped); err != nil {
		c.log.Info("script crashed", zap.String("script", name), zap.Error(err))
	}
}

// DispatchEvent fires a DOM event at node and reports whether the default
// action should still run (i.e. no listener called preventDefault).
func (c *Context) DispatchEvent(eventType string, node *html.Node, windowID int) bool {
	if c.discarded.Load() {
		return true
	}
	out, err := c.windowCall(windowID, "__dispatchEvent", eventType, c.handleFor(node))
	if err != nil {
		c.log.Info("event handler crashed", zap.String("event", eventType), zap.Error(err))
		return true
	}
	return out.ToBoolean()
}

// RunAnimationFrameHandlers invokes callbacks queued by
// requestAnimationFrame since the last frame.
func (c *Context) RunAnimationFrameHandlers(windowID int) {
	if c.discarded.Load() {
		return
	}
	if _, err := c.windowCall(windowID, "__runRAFHandlers"); err != nil {
		c.log.Info("animation frame handler crashed", zap.Error(err))
	}
}

// DeliverMessage fires a message event on the target window.
func (c *Context) DeliverMessage(windowID int, message string) {
	if c.discarded.Load() {
		return
	}
	if _, err := c.windowCall(windowID, "__dispatchMessage", message); err != nil {
		c.log.Info("message handler crashed", zap.Error(err))
	}
}

func (c *Context) dispatchSetTimeout(handle, windowID int) {
	if c.discarded.Load() {
		return
	}
	if _, err := c.windowCall(windowID, "__runSetTimeout", handle); err != nil {
		c.log.Info("timer callback crashed", zap.Error(err))
	}
}

func (c *Context) dispatchXHROnload(body string, handle, windowID int) {
	if c.discarded.Load() {
		return
	}
	if _, err := c.windowCall(windowID, "__xhrOnload", body, handle); err != nil {
		c.log.Info("XHR onload crashed", zap.Error(err))
	}
}

// windowCall invokes a method on WINDOWS[windowID] through goja values,
// avoiding string interpolation of arguments.
func (c *Context) windowCall(windowID int, method string, args ...any) (goja.Value, error) {
	windows := c.vm.Get("WINDOWS")
	if windows == nil {
		return nil, fmt.Errorf("runtime not initialized")
	}
	win := windows.ToObject(c.vm).Get(strconv.Itoa(windowID))
	if win == nil || goja.IsUndefined(win) {
		return nil, fmt.Errorf("no window %d", windowID)
	}
	winObj := win.ToObject(c.vm)
	fn, ok := goja.AssertFunction(winObj.Get(method))
	if !ok {
		return nil, fmt.Errorf("%s is not a function", method)
	}
	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = c.vm.ToValue(a)
	}
	return fn(winObj, values...)
}

func (c *Context) handleFor(node *html.Node) int {
	if h, ok := c.handles[node]; ok {
		return h
	}
	h := c.nextHandle
	c.nextHandle++
	c.handles[node] = h
	c.nodes[h] = node
	return h
}

func (c *Context) node(handle int) *html.Node {
	return c.nodes[handle]
}

func (c *Context) frame(windowID int) Frame {
	return c.frames[windowID]
}

func (c *Context) throw(format string, args ...any) {
	panic(c.vm.ToValue(fmt.Sprintf(format, args...)))
}

// register installs the Go-backed natives the runtime script calls.
func (c *Context) register() {
	c.vm.Set("__log", func(s string) {
		c.log.Info("console.log", zap.String("message", s))
	})

	c.vm.Set("__querySelectorAll", func(selectorText string, windowID int) []int {
		frame := c.frame(windowID)
		if frame == nil {
			return nil
		}
		selector, err := css.NewParser(selectorText).Selector()
		if err != nil {
			c.throw("invalid selector %q", selectorText)
		}
		var handles []int
		for _, n := range html.TreeToList(frame.Document(), nil) {
			if selector.Matches(n) {
				handles = append(handles, c.handleFor(n))
			}
		}
		return handles
	})

	c.vm.Set("__getAttribute", func(handle int, attr string) string {
		n := c.node(handle)
		if n == nil {
			return ""
		}
		return n.Attr(attr)
	})

	c.vm.Set("__setAttribute", func(handle int, attr, value string, windowID int) {
		n := c.node(handle)
		frame := c.frame(windowID)
		if n == nil || frame == nil {
			return
		}
		if n.Attributes == nil {
			n.Attributes = make(map[string]string)
		}
		n.Attributes[attr] = value
		if attr == "style" {
			css.DirtyStyle(n)
		}
		frame.SetNeedsRender()
	})

	c.vm.Set("__innerHTMLSet", func(handle int, markup string, windowID int) {
		n := c.node(handle)
		frame := c.frame(windowID)
		if n == nil || frame == nil {
			return
		}
		doc, err := html.Parse(markup)
		if err != nil {
			c.throw("innerHTML parse failed: %v", err)
		}
		var body *html.Node
		for _, child := range doc.Children {
			if child.TagName == "body" {
				body = child
			}
		}
		if body == nil {
			return
		}
		// Orphaned nodes keep their handles but fall out of the document.
		n.Children = body.Children
		for _, child := range n.Children {
			child.Parent = n
			css.InitStyleTree(child)
		}
		layout.MarkChildrenDirty(n)
		frame.SetNeedsRender()
	})

	c.vm.Set("__styleSet", func(handle int, style string, windowID int) {
		n := c.node(handle)
		frame := c.frame(windowID)
		if n == nil || frame == nil {
			return
		}
		if n.Attributes == nil {
			n.Attributes = make(map[string]string)
		}
		n.Attributes["style"] = style
		css.DirtyStyle(n)
		frame.SetNeedsRender()
	})

	c.vm.Set("__cookie", func(windowID int) string {
		frame := c.frame(windowID)
		if frame == nil {
			return ""
		}
		return frame.Cookie()
	})

	c.vm.Set("__setTimeout", func(handle int, delayMillis float64, windowID int) {
		delay := time.Duration(delayMillis * float64(time.Millisecond))
		time.AfterFunc(delay, func() {
			if c.discarded.Load() {
				return
			}
			c.tab.Schedule(task.New("setTimeout", func() {
				c.dispatchSetTimeout(handle, windowID)
			}))
		})
	})

	c.vm.Set("__requestAnimationFrame", func() {
		c.tab.SetNeedsAnimationFrame()
	})

	c.vm.Set("__xhrSend", func(method, urlText, body string, isAsync bool, handle, windowID int) string {
		frame := c.frame(windowID)
		if frame == nil {
			return ""
		}
		full, err := frame.BaseURL().Resolve(urlText)
		if err != nil {
			c.throw("bad URL %q: %v", urlText, err)
		}
		if !frame.AllowedRequest(full) {
			c.throw("request to %s blocked by Content-Security-Policy", full)
		}
		if full.Origin() != frame.BaseURL().Origin() {
			c.throw("cross-origin XHR request to %s not allowed", full)
		}
		if !isAsync {
			out, err := frame.Fetch(full, body)
			if err != nil {
				c.throw("XHR to %s failed: %v", full, err)
			}
			return out
		}
		go func() {
			out, err := frame.Fetch(full, body)
			if err != nil {
				c.log.Info("async XHR failed", zap.Stringer("url", full), zap.Error(err))
				return
			}
			if c.discarded.Load() {
				return
			}
			c.tab.Schedule(task.New("XHR onload", func() {
				c.dispatchXHROnload(out, handle, windowID)
			}))
		}()
		return ""
	})

	c.vm.Set("__postMessage", func(windowID int, message string) {
		c.tab.PostMessage(windowID, message)
	})

	c.vm.Set("__parentPostMessage", func(windowID int, message string) {
		frame := c.frame(windowID)
		if frame == nil {
			return
		}
		if parent, ok := frame.ParentWindowID(); ok {
			c.tab.PostMessage(parent, message)
		}
	})
}
