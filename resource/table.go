package resource

import (
	"sync"

	"github.com/wippyai/vmcall/errors"
)

// Table maps guest handles to host values. Freed handles are reused, lowest
// first, so a guest sees small stable numbers the way it would from a native
// engine. It is safe for concurrent use.
type Table struct {
	entries   []entry
	free      []Handle
	observers []Observer
	limit     int
	live      int
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value any
	kind  Kind
	valid bool
}

// NewTable creates a table holding at most limit live handles. limit <= 0
// means unbounded.
func NewTable(limit int) *Table {
	return &Table{
		entries: make([]entry, 0, 16),
		limit:   limit,
	}
}

// Insert stores value and returns its handle.
func (t *Table) Insert(kind Kind, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.NotInitialized(errors.PhaseHost, "handle table")
	}
	if t.limit > 0 && t.live >= t.limit {
		t.mu.Unlock()
		return 0, errors.New(errors.PhaseHost, errors.KindOutOfBounds).
			Value(t.limit).
			Detail("no free %v handles (limit %d)", kind, t.limit).
			Build()
	}

	e := entry{kind: kind, value: value, valid: true}
	var h Handle
	if n := len(t.free); n > 0 {
		h = t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.live++
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind, Value: value})
	return h, nil
}

// Get retrieves the value behind h if it is of the given kind.
func (t *Table) Get(h Handle, kind Kind) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(h)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// Remove drops h, closing its value when it implements Closer.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	e, ok := t.lookup(h)
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	t.entries[h-1] = entry{}
	t.insertFree(h)
	t.live--
	t.mu.Unlock()

	if c, ok := e.value.(Closer); ok {
		_ = c.Close()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Kind: e.kind, Value: e.value})
	return e.value, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Each calls fn for every live handle in ascending order until fn returns false.
func (t *Table) Each(fn func(Handle, Kind, any) bool) {
	t.mu.Lock()
	snapshot := make([]entry, len(t.entries))
	copy(snapshot, t.entries)
	t.mu.Unlock()

	for i, e := range snapshot {
		if e.valid && !fn(Handle(i+1), e.kind, e.value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Close drops every handle and stops accepting inserts.
func (t *Table) Close() error {
	var handles []Handle
	t.Each(func(h Handle, _ Kind, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}

	t.mu.Lock()
	t.closed = true
	t.entries = nil
	t.free = nil
	t.mu.Unlock()
	return nil
}

func (t *Table) lookup(h Handle) (entry, bool) {
	if h == 0 || int(h) > len(t.entries) {
		return entry{}, false
	}
	e := t.entries[h-1]
	return e, e.valid
}

// insertFree keeps the free list sorted descending so the lowest handle pops first.
func (t *Table) insertFree(h Handle) {
	i := len(t.free)
	t.free = append(t.free, h)
	for i > 0 && t.free[i-1] < h {
		t.free[i] = t.free[i-1]
		i--
	}
	t.free[i] = h
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
