// Package task runs a tab's work on a single goroutine: tasks queue in
// FIFO order and run to completion, so tab state never needs fine-grained
// locking.
package task

import "sync"

// Task is one unit of tab work.
type Task struct {
	run  func()
	name string
}

// New wraps a function as a named task; the name shows up in diagnostics.
func New(name string, run func()) *Task {
	return &Task{run: run, name: name}
}

func (t *Task) Name() string { return t.name }
func (t *Task) Run()         { t.run() }

// Runner drains a task queue on its own goroutine. Tasks added after Close
// are dropped.
type Runner struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []*Task
	running bool
	closed  bool
	done    chan struct{}
}

func NewRunner() *Runner {
	r := &Runner{done: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Start launches the runner goroutine.
func (r *Runner) Start() {
	go r.loop()
}

// Schedule queues a task. Safe from any goroutine.
func (r *Runner) Schedule(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.tasks = append(r.tasks, t)
	r.cond.Broadcast()
}

// ClearPending drops every queued task that has not started. Navigation
// uses this so work for the abandoned page never runs.
func (r *Runner) ClearPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = nil
	r.cond.Broadcast()
}

// Flush blocks until the queue has drained and the current task, if any,
// has finished. Tasks scheduled while flushing extend the wait; a closed
// runner flushes immediately.
func (r *Runner) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for (len(r.tasks) > 0 || r.running) && !r.closed {
		r.cond.Wait()
	}
}

// Close stops the runner after the current task finishes and waits for the
// goroutine to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
	<-r.done
}

// PendingCount reports how many tasks are waiting.
func (r *Runner) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		r.running = false
		r.cond.Broadcast()
		for len(r.tasks) == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.closed {
			r.mu.Unlock()
			return
		}
		t := r.tasks[0]
		r.tasks = r.tasks[1:]
		r.running = true
		r.mu.Unlock()
		t.Run()
	}
}
