// Package invalidation provides the dependency-tracked dirty-bit cells that
// the style and layout trees are built on. A Field is a single-writer,
// lazily-pulled, push-invalidated memoization cell: reading it through Read
// records who depends on it, and a later Set that changes the value marks
// every recorded dependent dirty.
package invalidation

import "fmt"

// Dependent is anything that can be invalidated when a field it read changes.
// Every *Field implements Dependent.
type Dependent interface {
	Mark()
}

// Owner is implemented by layout nodes. When one of a node's fields is
// marked dirty, the node's ancestor chain gets its has-dirty-descendants
// bits set so whole-subtree recomputation can be pruned.
type Owner interface {
	MarkAncestorsDirty()
}

// Field wraps a value, a dirty flag (initially dirty), and the set of
// dependents to invalidate when the value changes.
type Field[T any] struct {
	name       string
	value      T
	set        bool
	dirty      bool
	owner      Owner
	eq         func(a, b T) bool
	dependents map[Dependent]struct{}
}

// New creates a field for a comparable value type. Set only notifies
// dependents when the stored value actually changes.
func New[T comparable](name string, owner Owner) *Field[T] {
	return &Field[T]{
		name:       name,
		dirty:      true,
		owner:      owner,
		eq:         func(a, b T) bool { return a == b },
		dependents: make(map[Dependent]struct{}),
	}
}

// NewAny creates a field whose value type has no useful equality (child
// lists, fonts). Every Set notifies dependents.
func NewAny[T any](name string, owner Owner) *Field[T] {
	return &Field[T]{
		name:       name,
		dirty:      true,
		owner:      owner,
		dependents: make(map[Dependent]struct{}),
	}
}

// Dirty reports whether the field must be recomputed before it may be read.
func (f *Field[T]) Dirty() bool {
	return f.dirty
}

// Mark forces the field dirty without changing its value. Dependents are
// marked transitively and the owner's ancestor chain gets its
// has-dirty-descendants bits set. Marking an already-dirty field is a no-op.
func (f *Field[T]) Mark() {
	if f.dirty {
		return
	}
	f.dirty = true
	for d := range f.dependents {
		d.Mark()
	}
	if f.owner != nil {
		f.owner.MarkAncestorsDirty()
	}
}

// Get returns the value without recording a dependency edge. Reading a dirty
// field is a contract violation: it means some invalidation was not cascaded
// before the read, so we fail loudly rather than return stale data.
func (f *Field[T]) Get() T {
	if f.dirty {
		panic(fmt.Sprintf("invalidation: read of dirty field %q", f.name))
	}
	return f.value
}

// Stale returns the last stored value regardless of the dirty flag, plus
// whether any value has ever been stored. The style cascade uses it to diff
// previous resolved values against new ones when starting transitions.
func (f *Field[T]) Stale() (T, bool) {
	return f.value, f.set
}

// Read returns the value and records requestor as a dependent, so a future
// change to this field marks requestor dirty.
func (f *Field[T]) Read(requestor Dependent) T {
	if requestor != nil {
		f.dependents[requestor] = struct{}{}
	}
	return f.Get()
}

// Set stores a value and clears the dirty flag. Dependents are notified only
// if the value changed (or the field never held one); re-setting an equal
// value leaves dependents clean so no redundant recomputation cascades.
func (f *Field[T]) Set(value T) {
	if !f.set || f.eq == nil || !f.eq(f.value, value) {
		f.notify()
	}
	f.value = value
	f.set = true
	f.dirty = false
}

// Copy sets this field to another field's value, recording the dependency.
// This is the common "inherit the parent's value" pattern.
func (f *Field[T]) Copy(other *Field[T]) {
	f.Set(other.Read(f))
}

func (f *Field[T]) notify() {
	for d := range f.dependents {
		d.Mark()
	}
}

// String renders the field for diagnostics.
func (f *Field[T]) String() string {
	if f.dirty {
		return fmt.Sprintf("%s=<dirty>", f.name)
	}
	return fmt.Sprintf("%s=%v", f.name, f.value)
}
