package js

// runtimeJS is evaluated once per script context. It defines the DOM view
// scripts see: windows keyed by frame, node wrappers around Go-side
// handles, and the event plumbing the Go bindings call back into.
const runtimeJS = `
var WINDOWS = {};

function Event(type) {
    this.type = type;
    this.do_default = true;
}
Event.prototype.preventDefault = function() {
    this.do_default = false;
};

function Node(handle, windowId) {
    this.handle = handle;
    this._windowId = windowId;
}
Node.prototype.getAttribute = function(attr) {
    return __getAttribute(this.handle, attr);
};
Node.prototype.setAttribute = function(attr, value) {
    __setAttribute(this.handle, attr, String(value), this._windowId);
};
Node.prototype.addEventListener = function(type, listener) {
    var win = WINDOWS[this._windowId];
    if (!win._listeners[this.handle]) win._listeners[this.handle] = {};
    var dict = win._listeners[this.handle];
    if (!dict[type]) dict[type] = [];
    dict[type].push(listener);
};
Node.prototype.dispatchEvent = function(evt) {
    var win = WINDOWS[this._windowId];
    var dict = win._listeners[this.handle] || {};
    var list = dict[evt.type] || [];
    for (var i = 0; i < list.length; i++) {
        list[i].call(this, evt);
    }
    return evt.do_default;
};
Object.defineProperty(Node.prototype, "innerHTML", {
    set: function(s) {
        __innerHTMLSet(this.handle, String(s), this._windowId);
    }
});
Object.defineProperty(Node.prototype, "style", {
    set: function(s) {
        __styleSet(this.handle, String(s), this._windowId);
    }
});

function Window(id) {
    var self = this;
    this._id = id;
    this._listeners = {};
    this._rafHandlers = [];
    this.Event = Event;
    this.Node = Node;
    this.console = {
        log: function() {
            var parts = [];
            for (var i = 0; i < arguments.length; i++) parts.push(String(arguments[i]));
            __log(parts.join(" "));
        }
    };
    this.document = {
        querySelectorAll: function(sel) {
            var handles = __querySelectorAll(String(sel), self._id);
            var out = [];
            for (var i = 0; i < handles.length; i++) out.push(new Node(handles[i], self._id));
            return out;
        }
    };
    Object.defineProperty(this.document, "cookie", {
        get: function() { return __cookie(self._id); }
    });
    this.setTimeout = function(callback, delay) {
        var handle = self._timerHandles.length;
        self._timerHandles.push(callback);
        __setTimeout(handle, Number(delay), self._id);
    };
    this._timerHandles = [];
    this.requestAnimationFrame = function(callback) {
        self._rafHandlers.push(callback);
        __requestAnimationFrame();
    };
    this.XMLHttpRequest = function() {
        var xhr = this;
        this.open = function(method, url, isAsync) {
            xhr._method = String(method);
            xhr._url = String(url);
            xhr._async = isAsync !== false;
        };
        this.send = function(body) {
            xhr._handle = self._xhrHandles.length;
            self._xhrHandles.push(xhr);
            var out = __xhrSend(xhr._method, xhr._url,
                body === undefined || body === null ? "" : String(body),
                xhr._async, xhr._handle, self._id);
            if (!xhr._async) {
                xhr.responseText = out;
            }
        };
    };
    this._xhrHandles = [];
    this.postMessage = function(message) {
        __postMessage(self._id, String(message));
    };
    this.parent = {
        postMessage: function(message, origin) {
            __parentPostMessage(self._id, String(message));
        }
    };
    this.window = this;
}
Window.prototype.addEventListener = function(type, listener) {
    if (!this._listeners[WINDOW_HANDLE]) this._listeners[WINDOW_HANDLE] = {};
    var dict = this._listeners[WINDOW_HANDLE];
    if (!dict[type]) dict[type] = [];
    dict[type].push(listener);
};
Window.prototype.__dispatchEvent = function(type, handle) {
    var node = new Node(handle, this._id);
    return node.dispatchEvent(new Event(type));
};
Window.prototype.__runRAFHandlers = function() {
    var handlers = this._rafHandlers;
    this._rafHandlers = [];
    for (var i = 0; i < handlers.length; i++) handlers[i]();
};
Window.prototype.__runSetTimeout = function(handle) {
    var callback = this._timerHandles[handle];
    if (callback) callback();
};
Window.prototype.__xhrOnload = function(body, handle) {
    var xhr = this._xhrHandles[handle];
    if (!xhr) return;
    xhr.responseText = body;
    if (xhr.onload) xhr.onload();
};
Window.prototype.__dispatchMessage = function(message) {
    var dict = this._listeners[WINDOW_HANDLE] || {};
    var list = dict["message"] || [];
    var evt = new Event("message");
    evt.data = message;
    for (var i = 0; i < list.length; i++) list[i](evt);
    return evt.do_default;
};

var WINDOW_HANDLE = -2;

function __newWindow(id) {
    WINDOWS[id] = new Window(id);
}
`
