package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/errors"
	"github.com/wippyai/vmcall/frame"
)

// Entry is the single native entry point of the host. Pointer slots arrive as
// absolute host addresses, scalar slots as the raw 32-bit word zero-extended.
type Entry interface {
	Syscall(ctx context.Context, id capability.ID, args ...uint64) uint64
}

// EntryFunc adapts a function to Entry.
type EntryFunc func(ctx context.Context, id capability.ID, args ...uint64) uint64

// Syscall calls f.
func (f EntryFunc) Syscall(ctx context.Context, id capability.ID, args ...uint64) uint64 {
	return f(ctx, id, args...)
}

// Hook runs before the host call of one capability. It also runs for calls
// that pointer validation then rejects.
type Hook func(ctx context.Context, id capability.ID)

// AfterHook runs after the host call with the word the guest will receive.
type AfterHook func(ctx context.Context, id capability.ID, result int32)

// UnknownHook observes calls to identifiers missing from the table.
type UnknownHook func(ctx context.Context, id capability.ID)

// RejectHook observes calls failed by pointer validation.
type RejectHook func(ctx context.Context, id capability.ID, err error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithUncheckedPointers forwards translated pointers without checking them
// against the guest region.
func WithUncheckedPointers() Option {
	return func(d *Dispatcher) { d.unchecked = true }
}

// Dispatcher turns guest call frames into host entry calls.
// Hook registration is safe for concurrent use; Dispatch holds no state between
// calls besides diagnostic counters.
type Dispatcher struct {
	entry     Entry
	before    map[capability.ID][]Hook
	after     map[capability.ID][]AfterHook
	unknown   []UnknownHook
	rejected  []RejectHook
	stats     counters
	mu        sync.RWMutex
	unchecked bool
}

// New creates a Dispatcher forwarding to entry.
func New(entry Entry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		entry:  entry,
		before: make(map[capability.ID][]Hook),
		after:  make(map[capability.ID][]AfterHook),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnBefore attaches a pre-call hook to id.
func (d *Dispatcher) OnBefore(id capability.ID, h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.before[id] = append(d.before[id], h)
}

// OnAfter attaches a post-call hook to id.
func (d *Dispatcher) OnAfter(id capability.ID, h AfterHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.after[id] = append(d.after[id], h)
}

// OnUnknown attaches a hook to the unknown-capability path.
func (d *Dispatcher) OnUnknown(h UnknownHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unknown = append(d.unknown, h)
}

// OnRejected attaches a hook to the pointer-validation failure path.
func (d *Dispatcher) OnRejected(h RejectHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected = append(d.rejected, h)
}

// Checked reports whether pointer slots are validated against the guest region.
func (d *Dispatcher) Checked() bool { return !d.unchecked }

// Dispatch services one guest call. It never fails: unknown identifiers and
// rejected frames yield 0 without reaching the host, void capabilities yield 0
// whatever the host returned.
func (d *Dispatcher) Dispatch(ctx context.Context, id capability.ID, args []int32, region addr.Region) int32 {
	conv, ok := capability.Lookup(id)
	if !ok {
		return d.unknownCall(ctx, id)
	}

	var buf [frame.Size]uint64
	native := buf[:0]
	if conv.Arity() > len(buf) {
		native = make([]uint64, 0, conv.Arity())
	}

	badSlot := -1
	view := frame.NewView(args, region)
	for i, kind := range conv.Params {
		if i >= view.Len() {
			// short frame: the guest was built against a different table version
			native = append(native, 0)
			continue
		}
		if kind == capability.Scalar {
			native = append(native, uint64(uint32(view.Scalar(i))))
			continue
		}
		ptr := view.Pointer(i)
		if badSlot < 0 && !d.unchecked && !ptr.IsNull() && !region.Contains(ptr, 1) {
			badSlot = i
		}
		native = append(native, uint64(ptr))
	}

	d.mu.RLock()
	before := d.before[id]
	after := d.after[id]
	d.mu.RUnlock()

	// pre-call hooks see every call of their capability, whatever its arguments
	for _, h := range before {
		runHook(ctx, id, h)
	}
	if badSlot >= 0 {
		return d.reject(ctx, conv, badSlot, addr.Host(native[badSlot]), region)
	}

	ret := d.entry.Syscall(ctx, id, native...)
	d.stats.call(id)

	var result int32
	switch conv.Result {
	case capability.Value:
		result = int32(uint32(ret))
	case capability.GuestPointer:
		result = int32(region.ToGuest(addr.Host(ret)))
	}

	for _, h := range after {
		runAfterHook(ctx, id, result, h)
	}
	return result
}

func (d *Dispatcher) unknownCall(ctx context.Context, id capability.ID) int32 {
	d.stats.unknownCall()
	Logger().Debug("unknown capability", zap.Int32("id", int32(id)), zap.Bool("retired", capability.Retired(id)))

	d.mu.RLock()
	hooks := d.unknown
	d.mu.RUnlock()
	for _, h := range hooks {
		runHook(ctx, id, Hook(h))
	}
	return 0
}

func (d *Dispatcher) reject(ctx context.Context, conv capability.Convention, slot int, ptr addr.Host, region addr.Region) int32 {
	d.stats.rejectedCall()
	err := errors.New(errors.PhaseDispatch, errors.KindOutOfBounds).
		Capability(conv.ID.String()).
		Value(uint64(ptr)).
		Detail("pointer slot %d (%v) outside guest region %v", slot, ptr, region).
		Build()
	Logger().Warn("rejected guest call", zap.Stringer("capability", conv.ID), zap.Error(err))

	d.mu.RLock()
	hooks := d.rejected
	d.mu.RUnlock()
	for _, h := range hooks {
		func() {
			defer recoverHook(conv.ID)
			h(ctx, conv.ID, err)
		}()
	}
	return 0
}

func runHook(ctx context.Context, id capability.ID, h Hook) {
	defer recoverHook(id)
	h(ctx, id)
}

func runAfterHook(ctx context.Context, id capability.ID, result int32, h AfterHook) {
	defer recoverHook(id)
	h(ctx, id, result)
}

// recoverHook keeps a misbehaving hook from unwinding through the guest.
func recoverHook(id capability.ID) {
	if r := recover(); r != nil {
		Logger().Error("dispatch hook panicked", zap.Stringer("capability", id), zap.Any("panic", r))
	}
}
