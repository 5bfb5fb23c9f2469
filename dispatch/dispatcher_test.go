package dispatch

import (
	"context"
	stderrors "errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/errors"
	"github.com/wippyai/vmcall/frame"
)

type recordedCall struct {
	args []uint64
	id   capability.ID
}

type recorder struct {
	events *[]string
	calls  []recordedCall
	ret    uint64
}

func (r *recorder) Syscall(_ context.Context, id capability.ID, args ...uint64) uint64 {
	r.calls = append(r.calls, recordedCall{id: id, args: append([]uint64(nil), args...)})
	if r.events != nil {
		*r.events = append(*r.events, "host:"+id.String())
	}
	return r.ret
}

var testRegion = addr.Region{Base: 0x10000, Size: 0x10000}

// validArgs fills every slot of conv with an in-range displacement.
func validArgs(conv capability.Convention) []int32 {
	args := make([]int32, conv.Arity())
	for i := range args {
		args[i] = int32(4 * (i + 1))
	}
	return args
}

func TestDispatch_Scenario(t *testing.T) {
	ctx := context.Background()
	host := &recorder{ret: 99}
	d := New(host)

	ret := d.Dispatch(ctx, capability.GetEntityToken, []int32{0x20, 99, 0}, testRegion)
	if ret != 99 {
		t.Fatalf("Dispatch = %d, want 99", ret)
	}
	if len(host.calls) != 1 {
		t.Fatalf("host calls = %d, want 1", len(host.calls))
	}
	c := host.calls[0]
	if c.id != capability.GetEntityToken {
		t.Errorf("id = %v", c.id)
	}
	if len(c.args) != 2 || c.args[0] != 0x10020 || c.args[1] != 99 {
		t.Errorf("args = %#x, want [0x10020 0x63]", c.args)
	}
}

func TestDispatch_UnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	host := &recorder{ret: 7}
	d := New(host)

	var seen []capability.ID
	d.OnUnknown(func(_ context.Context, id capability.ID) { seen = append(seen, id) })

	for _, id := range []capability.ID{9999, -1, capability.CMLoadModel, capability.TestPrintFloat} {
		if ret := d.Dispatch(ctx, id, []int32{1, 2, 3}, testRegion); ret != 0 {
			t.Errorf("Dispatch(%v) = %d, want 0", id, ret)
		}
	}
	if len(host.calls) != 0 {
		t.Errorf("host called %d times for unknown ids", len(host.calls))
	}
	if len(seen) != 4 || seen[0] != 9999 {
		t.Errorf("unknown hook saw %v", seen)
	}
	if st := d.Stats(); st.Unknown != 4 || st.Total != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestDispatch_VoidResultNormalized(t *testing.T) {
	ctx := context.Background()
	host := &recorder{ret: 0xdeadbeef}
	d := New(host)

	for _, conv := range capability.All() {
		if conv.Result != capability.None {
			continue
		}
		if ret := d.Dispatch(ctx, conv.ID, validArgs(conv), testRegion); ret != 0 {
			t.Errorf("%v returned %d, want 0", conv.ID, ret)
		}
	}
	if len(host.calls) == 0 {
		t.Fatal("no void capabilities dispatched")
	}
}

func TestDispatch_ValueForwarded(t *testing.T) {
	ctx := context.Background()
	host := &recorder{ret: 0xffffffff}
	d := New(host)

	if ret := d.Dispatch(ctx, capability.Milliseconds, nil, testRegion); ret != -1 {
		t.Errorf("Milliseconds = %d, want -1", ret)
	}

	host.ret = 0x1_0000_0005
	if ret := d.Dispatch(ctx, capability.Argc, nil, testRegion); ret != 5 {
		t.Errorf("Argc = %d, want truncated 5", ret)
	}
}

func TestDispatch_GuestPointerResult(t *testing.T) {
	ctx := context.Background()
	host := &recorder{ret: uint64(testRegion.Base) + 0x40}
	d := New(host)

	if ret := d.Dispatch(ctx, capability.StrNCpy, []int32{0x40, 0x80, 16}, testRegion); ret != 0x40 {
		t.Errorf("StrNCpy = %#x, want 0x40", ret)
	}

	host.ret = 0
	if ret := d.Dispatch(ctx, capability.StrNCpy, []int32{0x40, 0x80, 16}, testRegion); ret != 0 {
		t.Errorf("StrNCpy null = %#x, want 0", ret)
	}
}

func TestDispatch_ArityFidelity(t *testing.T) {
	ctx := context.Background()

	for _, conv := range capability.All() {
		t.Run(conv.ID.String(), func(t *testing.T) {
			host := &recorder{}
			d := New(host)

			// exact-length args: reading past arity would panic
			d.Dispatch(ctx, conv.ID, validArgs(conv), testRegion)

			// full frame with poison past arity
			var f [frame.Size]int32
			copy(f[:], validArgs(conv))
			for i := conv.Arity(); i < frame.Size; i++ {
				f[i] = -0x7fffffff
			}
			d.Dispatch(ctx, conv.ID, f[:], testRegion)

			if len(host.calls) != 2 {
				t.Fatalf("host calls = %d, want 2", len(host.calls))
			}
			for _, c := range host.calls {
				if len(c.args) != conv.Arity() {
					t.Errorf("host got %d args, want %d", len(c.args), conv.Arity())
				}
			}
		})
	}
}

func TestDispatch_ArityZeroIgnoresArgs(t *testing.T) {
	host := &recorder{ret: 3}
	d := New(host)
	if ret := d.Dispatch(context.Background(), capability.CMNumInlineModels, nil, addr.Region{}); ret != 3 {
		t.Errorf("Dispatch = %d, want 3", ret)
	}
	if len(host.calls[0].args) != 0 {
		t.Errorf("args = %v", host.calls[0].args)
	}
}

func TestDispatch_PointerTranslation(t *testing.T) {
	ctx := context.Background()

	for _, conv := range capability.All() {
		ptrs := conv.Pointers()
		if len(ptrs) == 0 {
			continue
		}
		t.Run(conv.ID.String(), func(t *testing.T) {
			host := &recorder{}
			d := New(host)
			args := validArgs(conv)
			// last pointer slot is null
			args[ptrs[len(ptrs)-1]] = 0

			d.Dispatch(ctx, conv.ID, args, testRegion)
			got := host.calls[0].args
			for i, kind := range conv.Params {
				want := uint64(uint32(args[i]))
				if kind == capability.Pointer {
					want = uint64(addr.ToHost(testRegion.Base, addr.Guest(args[i])))
				}
				if got[i] != want {
					t.Errorf("slot %d (%v) = %#x, want %#x", i, kind, got[i], want)
				}
			}
			if got[ptrs[len(ptrs)-1]] != 0 {
				t.Errorf("null pointer slot forwarded as %#x", got[ptrs[len(ptrs)-1]])
			}
		})
	}
}

func TestDispatch_ScalarBitsPreserved(t *testing.T) {
	host := &recorder{}
	d := New(host)
	d.Dispatch(context.Background(), capability.Atan2, []int32{-1, -2147483648}, testRegion)
	got := host.calls[0].args
	if got[0] != 0xffffffff || got[1] != 0x80000000 {
		t.Errorf("args = %#x", got)
	}
}

func TestDispatch_ShortFrame(t *testing.T) {
	host := &recorder{}
	d := New(host)
	d.Dispatch(context.Background(), capability.FSSeek, []int32{5}, testRegion)
	got := host.calls[0].args
	if len(got) != 3 || got[0] != 5 || got[1] != 0 || got[2] != 0 {
		t.Errorf("args = %v", got)
	}
}

func TestDispatch_RejectsOutOfRegion(t *testing.T) {
	ctx := context.Background()
	host := &recorder{ret: 1}
	d := New(host)

	var rejected []error
	d.OnRejected(func(_ context.Context, _ capability.ID, err error) { rejected = append(rejected, err) })

	tests := []struct {
		name string
		args []int32
	}{
		{"past end", []int32{0x10000, 4, 0}},
		{"negative", []int32{-4, 4, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ret := d.Dispatch(ctx, capability.FSFOpenFile, tt.args, testRegion); ret != 0 {
				t.Errorf("Dispatch = %d, want 0", ret)
			}
		})
	}

	if len(host.calls) != 0 {
		t.Errorf("host called for rejected frames")
	}
	if len(rejected) != 2 {
		t.Fatalf("rejected hook calls = %d", len(rejected))
	}
	if !stderrors.Is(rejected[0], &errors.Error{Phase: errors.PhaseDispatch, Kind: errors.KindOutOfBounds}) {
		t.Errorf("rejection error = %v", rejected[0])
	}
	if st := d.Stats(); st.Rejected != 2 {
		t.Errorf("Rejected = %d", st.Rejected)
	}
}

func TestDispatch_BeforeHookRunsForRejectedCall(t *testing.T) {
	host := &recorder{}
	d := New(host)
	var before, after int
	d.OnBefore(capability.RRenderScene, func(context.Context, capability.ID) { before++ })
	d.OnAfter(capability.RRenderScene, func(context.Context, capability.ID, int32) { after++ })

	region := addr.Region{Base: 0x10000, Size: 0x1000}
	if ret := d.Dispatch(context.Background(), capability.RRenderScene, []int32{0x5000}, region); ret != 0 {
		t.Errorf("Dispatch = %d", ret)
	}
	if before != 1 || after != 0 {
		t.Errorf("before = %d, after = %d; want 1, 0", before, after)
	}
	if len(host.calls) != 0 || d.Stats().Rejected != 1 {
		t.Errorf("calls = %d, rejected = %d", len(host.calls), d.Stats().Rejected)
	}
}

func TestDispatch_Unchecked(t *testing.T) {
	host := &recorder{}
	d := New(host, WithUncheckedPointers())
	if d.Checked() {
		t.Error("Checked should be false")
	}
	d.Dispatch(context.Background(), capability.Print, []int32{0x20000}, testRegion)
	if len(host.calls) != 1 || host.calls[0].args[0] != 0x30000 {
		t.Errorf("calls = %+v", host.calls)
	}
}

func TestDispatch_HooksOrder(t *testing.T) {
	ctx := context.Background()
	var events []string
	host := &recorder{events: &events, ret: 1}
	d := New(host)

	d.OnBefore(capability.RRenderScene, func(_ context.Context, id capability.ID) {
		events = append(events, "before:"+id.String())
	})
	d.OnAfter(capability.RRenderScene, func(_ context.Context, id capability.ID, result int32) {
		if result != 0 {
			t.Errorf("after hook saw %d for void capability", result)
		}
		events = append(events, "after:"+id.String())
	})

	d.Dispatch(ctx, capability.RRenderScene, []int32{0x100}, testRegion)
	d.Dispatch(ctx, capability.RClearScene, nil, testRegion)

	want := []string{
		"before:CG_R_RENDERSCENE",
		"host:CG_R_RENDERSCENE",
		"after:CG_R_RENDERSCENE",
		"host:CG_R_CLEARSCENE",
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestDispatch_HookPanicContained(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	host := &recorder{ret: 5}
	d := New(host)
	d.OnBefore(capability.RRenderScene, func(context.Context, capability.ID) { panic("boom") })

	d.Dispatch(context.Background(), capability.RRenderScene, []int32{0x100}, testRegion)
	if len(host.calls) != 1 {
		t.Error("host call skipped after hook panic")
	}
	if logs.FilterMessage("dispatch hook panicked").Len() != 1 {
		t.Errorf("panic not logged: %v", logs.All())
	}
}

func TestDispatch_LogsUnknownAndRejected(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	d := New(&recorder{})
	d.Dispatch(context.Background(), 9999, nil, testRegion)
	d.Dispatch(context.Background(), capability.Print, []int32{0x7fff0000}, testRegion)

	if logs.FilterMessage("unknown capability").Len() != 1 {
		t.Errorf("unknown not logged: %v", logs.All())
	}
	if logs.FilterMessage("rejected guest call").FilterField(zap.Stringer("capability", capability.Print)).Len() != 1 {
		t.Errorf("rejection not logged: %v", logs.All())
	}
}

func TestStats(t *testing.T) {
	d := New(&recorder{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d.Dispatch(ctx, capability.RRenderScene, []int32{0x100}, testRegion)
	}
	d.Dispatch(ctx, capability.Milliseconds, nil, testRegion)

	st := d.Stats()
	if st.Total != 4 || st.Calls[capability.RRenderScene] != 3 || st.Calls[capability.Milliseconds] != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestEntryFunc(t *testing.T) {
	var got capability.ID
	d := New(EntryFunc(func(_ context.Context, id capability.ID, args ...uint64) uint64 {
		got = id
		return uint64(len(args))
	}))
	if ret := d.Dispatch(context.Background(), capability.Atan2, []int32{1, 2}, testRegion); ret != 2 {
		t.Errorf("Dispatch = %d", ret)
	}
	if got != capability.Atan2 {
		t.Errorf("id = %v", got)
	}
}
