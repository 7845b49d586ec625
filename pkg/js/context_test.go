package js

import (
	"testing"
	"time"

	"lantern/pkg/css"
	"lantern/pkg/html"
	"lantern/pkg/net"
	"lantern/pkg/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTab struct {
	scheduled chan *task.Task
	rafCount  int
	posted    []postedMessage
}

type postedMessage struct {
	target  int
	message string
}

func newFakeTab() *fakeTab {
	return &fakeTab{scheduled: make(chan *task.Task, 16)}
}

func (t *fakeTab) Schedule(tk *task.Task)  { t.scheduled <- tk }
func (t *fakeTab) SetNeedsAnimationFrame() { t.rafCount++ }
func (t *fakeTab) PostMessage(id int, m string) {
	t.posted = append(t.posted, postedMessage{id, m})
}

type fakeFrame struct {
	id          int
	doc         *html.Node
	base        *net.URL
	cookie      string
	needsRender int
	parentID    int
	hasParent   bool
	responses   map[string]string
	fetched     []string
}

func (f *fakeFrame) WindowID() int                  { return f.id }
func (f *fakeFrame) Document() *html.Node           { return f.doc }
func (f *fakeFrame) BaseURL() *net.URL              { return f.base }
func (f *fakeFrame) AllowedRequest(u *net.URL) bool { return true }
func (f *fakeFrame) Cookie() string                 { return f.cookie }
func (f *fakeFrame) SetNeedsRender()                { f.needsRender++ }
func (f *fakeFrame) ParentWindowID() (int, bool)    { return f.parentID, f.hasParent }

func (f *fakeFrame) Fetch(u *net.URL, payload string) (string, error) {
	f.fetched = append(f.fetched, u.String())
	return f.responses[u.String()], nil
}

func newTestContext(t *testing.T, markup string) (*Context, *fakeTab, *fakeFrame) {
	t.Helper()
	doc, err := html.Parse(markup)
	require.NoError(t, err)
	css.InitStyleTree(doc)
	base, err := net.Parse("http://example.com/index.html")
	require.NoError(t, err)
	tab := newFakeTab()
	frame := &fakeFrame{id: 1, doc: doc, base: base, responses: map[string]string{}}
	ctx := NewContext(tab, base.Origin(), nil)
	require.NoError(t, ctx.AddWindow(frame))
	return ctx, tab, frame
}

func findTag(n *html.Node, tag string) *html.Node {
	for _, node := range html.TreeToList(n, nil) {
		if node.TagName == tag {
			return node
		}
	}
	return nil
}

func TestQuerySelectorAllAndSetAttribute(t *testing.T) {
	ctx, _, frame := newTestContext(t, "<div><p>one</p><p>two</p></div>")

	ctx.Run("test", `
		var ps = document.querySelectorAll("p");
		ps[0].setAttribute("data-count", ps.length);
	`, 1)

	p := findTag(frame.doc, "p")
	assert.Equal(t, "2", p.Attr("data-count"))
	assert.Equal(t, 1, frame.needsRender)
}

func TestGetAttribute(t *testing.T) {
	ctx, _, frame := newTestContext(t, `<a href="/next">go</a>`)

	ctx.Run("test", `
		var a = document.querySelectorAll("a")[0];
		a.setAttribute("data-href", a.getAttribute("href"));
	`, 1)

	assert.Equal(t, "/next", findTag(frame.doc, "a").Attr("data-href"))
}

func TestDispatchEventListenersAndPreventDefault(t *testing.T) {
	ctx, _, frame := newTestContext(t, `<a href="/next">go</a>`)
	a := findTag(frame.doc, "a")

	// No listener: the default action runs.
	assert.True(t, ctx.DispatchEvent("click", a, 1))

	ctx.Run("test", `
		document.querySelectorAll("a")[0].addEventListener("click", function(e) {
			this.setAttribute("clicked", "yes");
			e.preventDefault();
		});
	`, 1)

	assert.False(t, ctx.DispatchEvent("click", a, 1))
	assert.Equal(t, "yes", a.Attr("clicked"))
}

func TestInnerHTMLReplacesChildren(t *testing.T) {
	ctx, _, frame := newTestContext(t, "<div><p>old</p></div>")
	div := findTag(frame.doc, "div")

	ctx.Run("test", `
		document.querySelectorAll("div")[0].innerHTML = "<b>new</b> text";
	`, 1)

	require.NotEmpty(t, div.Children)
	b := findTag(div, "b")
	require.NotNil(t, b)
	assert.Same(t, div, b.Parent)
	assert.Nil(t, findTag(div, "p"))
	// The spliced-in subtree is ready for the cascade.
	assert.NotNil(t, b.Style)
	assert.Greater(t, frame.needsRender, 0)
}

func TestStyleSetterWritesAttribute(t *testing.T) {
	ctx, _, frame := newTestContext(t, "<div>hi</div>")

	ctx.Run("test", `
		document.querySelectorAll("div")[0].style = "background-color:blue";
	`, 1)

	assert.Equal(t, "background-color:blue", findTag(frame.doc, "div").Attr("style"))
	assert.Equal(t, 1, frame.needsRender)
}

func TestDocumentCookie(t *testing.T) {
	ctx, _, frame := newTestContext(t, "<div>hi</div>")
	frame.cookie = "session=abc"

	ctx.Run("test", `
		document.querySelectorAll("div")[0].setAttribute("cookie", document.cookie);
	`, 1)

	assert.Equal(t, "session=abc", findTag(frame.doc, "div").Attr("cookie"))
}

func TestSynchronousXHRSameOrigin(t *testing.T) {
	ctx, _, frame := newTestContext(t, "<div>hi</div>")
	frame.responses["http://example.com/data"] = "payload"

	ctx.Run("test", `
		var xhr = new XMLHttpRequest();
		xhr.open("GET", "/data", false);
		xhr.send();
		document.querySelectorAll("div")[0].setAttribute("response", xhr.responseText);
	`, 1)

	assert.Equal(t, "payload", findTag(frame.doc, "div").Attr("response"))
	assert.Equal(t, []string{"http://example.com/data"}, frame.fetched)
}

func TestCrossOriginXHRBlocked(t *testing.T) {
	ctx, _, frame := newTestContext(t, "<div>hi</div>")

	ctx.Run("test", `
		try {
			var xhr = new XMLHttpRequest();
			xhr.open("GET", "http://other.com/data", false);
			xhr.send();
		} catch (e) {
			document.querySelectorAll("div")[0].setAttribute("err", "blocked");
		}
	`, 1)

	assert.Equal(t, "blocked", findTag(frame.doc, "div").Attr("err"))
	assert.Empty(t, frame.fetched)
}

func TestAsyncXHRSchedulesOnload(t *testing.T) {
	ctx, tab, frame := newTestContext(t, "<div>hi</div>")
	frame.responses["http://example.com/data"] = "later"

	ctx.Run("test", `
		var xhr = new XMLHttpRequest();
		xhr.open("GET", "/data", true);
		xhr.onload = function() {
			document.querySelectorAll("div")[0].setAttribute("response", xhr.responseText);
		};
		xhr.send();
	`, 1)

	select {
	case tk := <-tab.scheduled:
		tk.Run()
	case <-time.After(time.Second):
		t.Fatal("no task scheduled for XHR onload")
	}
	assert.Equal(t, "later", findTag(frame.doc, "div").Attr("response"))
}

func TestSetTimeoutSchedulesCallback(t *testing.T) {
	ctx, tab, frame := newTestContext(t, "<div>hi</div>")

	ctx.Run("test", `
		setTimeout(function() {
			document.querySelectorAll("div")[0].setAttribute("fired", "yes");
		}, 1);
	`, 1)

	select {
	case tk := <-tab.scheduled:
		tk.Run()
	case <-time.After(time.Second):
		t.Fatal("timer task never scheduled")
	}
	assert.Equal(t, "yes", findTag(frame.doc, "div").Attr("fired"))
}

func TestRequestAnimationFrame(t *testing.T) {
	ctx, tab, frame := newTestContext(t, "<div>hi</div>")

	ctx.Run("test", `
		requestAnimationFrame(function() {
			var div = document.querySelectorAll("div")[0];
			div.setAttribute("frames", Number(div.getAttribute("frames") || 0) + 1);
		});
	`, 1)
	assert.Equal(t, 1, tab.rafCount)

	ctx.RunAnimationFrameHandlers(1)
	// Handlers are one-shot.
	ctx.RunAnimationFrameHandlers(1)
	assert.Equal(t, "1", findTag(frame.doc, "div").Attr("frames"))
}

func TestParentPostMessageAndDelivery(t *testing.T) {
	ctx, tab, frame := newTestContext(t, "<div>hi</div>")
	frame.parentID = 7
	frame.hasParent = true

	ctx.Run("test", `parent.postMessage("hello", "*");`, 1)
	assert.Equal(t, []postedMessage{{7, "hello"}}, tab.posted)

	ctx.Run("test", `
		window.addEventListener("message", function(e) {
			document.querySelectorAll("div")[0].setAttribute("got", e.data);
		});
	`, 1)
	ctx.DeliverMessage(1, "from parent")
	assert.Equal(t, "from parent", findTag(frame.doc, "div").Attr("got"))
}

func TestDiscardedContextIgnoresDispatch(t *testing.T) {
	ctx, _, frame := newTestContext(t, `<a href="/x">go</a>`)
	a := findTag(frame.doc, "a")

	ctx.Run("test", `
		document.querySelectorAll("a")[0].addEventListener("click", function(e) {
			e.preventDefault();
		});
	`, 1)
	ctx.SetDiscarded()
	assert.True(t, ctx.DispatchEvent("click", a, 1))
}

func TestDiscardFromAnotherGoroutineSilencesTimer(t *testing.T) {
	ctx, tab, _ := newTestContext(t, "<div>hi</div>")

	// Navigation discards the context from the tab goroutine while the
	// timer goroutine is still waiting to fire.
	ctx.Run("test", `setTimeout(function() {}, 30);`, 1)
	done := make(chan struct{})
	go func() {
		ctx.SetDiscarded()
		close(done)
	}()
	<-done

	select {
	case tk := <-tab.scheduled:
		t.Fatalf("discarded context scheduled %q", tk.Name())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScriptErrorsDoNotPropagate(t *testing.T) {
	ctx, _, _ := newTestContext(t, "<div>hi</div>")
	// Must not panic.
	ctx.Run("broken", `throw new Error("boom");`, 1)
	ctx.Run("syntax", `function (`, 1)
}
