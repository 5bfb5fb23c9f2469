// Package hook carries extension points attached to individual capabilities.
package hook

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/dispatch"
)

// RenderTrace observes scene submissions. It counts them and measures the
// interval between consecutive frames.
type RenderTrace struct {
	now      func() time.Time
	last     time.Time
	interval time.Duration
	count    atomic.Uint64
	mu       sync.Mutex
	quiet    bool
}

// TraceOption configures a RenderTrace.
type TraceOption func(*RenderTrace)

// WithoutLog keeps counting and timing scenes but never logs them.
func WithoutLog() TraceOption {
	return func(t *RenderTrace) { t.quiet = true }
}

// NewRenderTrace creates a trace using the wall clock.
func NewRenderTrace(opts ...TraceOption) *RenderTrace {
	t := &RenderTrace{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records one scene submission. It is a dispatch.Hook.
func (t *RenderTrace) Observe(_ context.Context, id capability.ID) {
	n := t.count.Add(1)

	t.mu.Lock()
	at := t.now()
	var interval time.Duration
	if !t.last.IsZero() {
		interval = at.Sub(t.last)
		t.interval = interval
	}
	t.last = at
	t.mu.Unlock()

	if t.quiet {
		return
	}
	if ce := Logger().Check(zap.DebugLevel, "render scene"); ce != nil {
		ce.Write(zap.Stringer("capability", id), zap.Uint64("frame", n), zap.Duration("interval", interval))
	}
}

// Count returns the number of scenes observed.
func (t *RenderTrace) Count() uint64 { return t.count.Load() }

// Interval returns the time between the last two scenes, zero before the second.
func (t *RenderTrace) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Install registers t as the pre-call hook of RenderScene on d. The hook runs
// for every RenderScene call, including ones rejected by pointer validation.
func Install(d *dispatch.Dispatcher, t *RenderTrace) {
	d.OnBefore(capability.RRenderScene, t.Observe)
}
