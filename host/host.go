// Package host is a reference implementation of the native side of the bridge.
//
// It serves the capabilities a headless Go process can provide on its own:
// console output and commands, cvars, sandboxed files, script sources, time,
// memory helpers and math. Rendering, sound and collision calls go to an optional fallback entry
// and are otherwise answered with 0.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/dispatch"
	"github.com/wippyai/vmcall/hostmem"
	"github.com/wippyai/vmcall/resource"
)

// MaxFileHandles bounds the files a guest may hold open at once.
const MaxFileHandles = 64

// DefaultMemoryRemaining is what MemoryRemaining reports unless overridden.
const DefaultMemoryRemaining = 4 << 20

type handler func(ctx context.Context, args []uint64) (uint64, error)

// Host implements dispatch.Entry over a host address space.
type Host struct {
	start     time.Time
	space     *hostmem.Space
	fs        afero.Fs
	fallback  dispatch.Entry
	files     *resource.Table
	sources   *resource.Table
	cvars     *Cvars
	console   *zap.Logger
	now       func() time.Time
	handlers  map[capability.ID]handler
	commands  map[string]struct{}
	defines   map[string]string
	lastError string
	argv      []string
	outbox    []Command
	memLeft   int32
	mu        sync.Mutex
}

// Option configures a Host.
type Option func(*Host)

// WithFS sets the filesystem backing the file capabilities. Callers sandbox it,
// typically with afero.NewBasePathFs.
func WithFS(fs afero.Fs) Option {
	return func(h *Host) { h.fs = fs }
}

// WithFallback forwards capabilities this host does not serve to e.
func WithFallback(e dispatch.Entry) Option {
	return func(h *Host) { h.fallback = e }
}

// WithCvars presets cvar values. Registration keeps a preset value instead of
// the guest's default.
func WithCvars(values map[string]string) Option {
	return func(h *Host) {
		for name, v := range values {
			h.cvars.Set(name, v)
		}
	}
}

// WithConsole sets the logger guest console output is written to.
func WithConsole(l *zap.Logger) Option {
	return func(h *Host) { h.console = l }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}

// WithMemoryRemaining sets the value reported by MemoryRemaining.
func WithMemoryRemaining(n int32) Option {
	return func(h *Host) { h.memLeft = n }
}

// New creates a host resolving guest pointers in space.
func New(space *hostmem.Space, opts ...Option) *Host {
	h := &Host{
		space:    space,
		fs:       afero.NewMemMapFs(),
		files:    resource.NewTable(MaxFileHandles),
		sources:  resource.NewTable(MaxSourceHandles),
		cvars:    NewCvars(),
		console:  zap.NewNop(),
		now:      time.Now,
		commands: make(map[string]struct{}),
		defines:  make(map[string]string),
		memLeft:  DefaultMemoryRemaining,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.start = h.now()
	h.files.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		if e.Type == resource.EventCreated {
			Logger().Debug("file handle opened", zap.Uint32("handle", uint32(e.Handle)))
		}
	}))
	h.handlers = h.buildHandlers()
	return h
}

func (h *Host) buildHandlers() map[capability.ID]handler {
	return map[capability.ID]handler{
		capability.Print:              h.print,
		capability.Error:              h.error,
		capability.Milliseconds:       h.milliseconds,
		capability.RealTime:           h.realTime,
		capability.Argc:               h.argc,
		capability.Argv:               h.argvAt,
		capability.Args:               h.args,
		capability.SendConsoleCommand: h.sendConsoleCommand,
		capability.SendClientCommand:  h.sendClientCommand,
		capability.AddCommand:         h.addCommand,
		capability.RemoveCommand:      h.removeCommand,

		capability.CvarRegister:             h.cvarRegister,
		capability.CvarUpdate:               h.cvarUpdate,
		capability.CvarSet:                  h.cvarSet,
		capability.CvarVariableStringBuffer: h.cvarStringBuffer,

		capability.FSFOpenFile:  h.fsOpen,
		capability.FSRead:       h.fsRead,
		capability.FSWrite:      h.fsWrite,
		capability.FSFCloseFile: h.fsClose,
		capability.FSSeek:       h.fsSeek,

		capability.PCAddGlobalDefine:   h.pcAddGlobalDefine,
		capability.PCLoadSource:        h.pcLoadSource,
		capability.PCFreeSource:        h.pcFreeSource,
		capability.PCReadToken:         h.pcReadToken,
		capability.PCSourceFileAndLine: h.pcSourceFileAndLine,

		capability.MemSet:          h.memSet,
		capability.MemCpy:          h.memCpy,
		capability.StrNCpy:         h.strNCpy,
		capability.MemoryRemaining: h.memoryRemaining,
		capability.SnapVector:      h.snapVector,

		capability.Sin:   unary(sin),
		capability.Cos:   unary(cos),
		capability.Sqrt:  unary(sqrt),
		capability.Floor: unary(floor),
		capability.Ceil:  unary(ceil),
		capability.ACos:  unary(acos),
		capability.Atan2: atan2,
	}
}

// Syscall implements dispatch.Entry.
func (h *Host) Syscall(ctx context.Context, id capability.ID, args ...uint64) uint64 {
	fn, ok := h.handlers[id]
	if !ok {
		if h.fallback != nil {
			return h.fallback.Syscall(ctx, id, args...)
		}
		Logger().Debug("unserved capability", zap.Stringer("capability", id))
		return 0
	}
	ret, err := fn(ctx, args)
	if err != nil {
		Logger().Warn("capability failed", zap.Stringer("capability", id), zap.Error(err))
	}
	return ret
}

// Serves reports whether id is handled by this host rather than the fallback.
func (h *Host) Serves(id capability.ID) bool {
	_, ok := h.handlers[id]
	return ok
}

// Cvars returns the host's cvar store.
func (h *Host) Cvars() *Cvars { return h.cvars }

// OpenFiles returns the number of file handles the guest holds.
func (h *Host) OpenFiles() int { return h.files.Len() }

// Close releases every open file and script source handle.
func (h *Host) Close() error {
	if n := h.files.Len() + h.sources.Len(); n > 0 {
		Logger().Info("closing leaked handles", zap.Int("count", n))
	}
	h.sources.Close()
	return h.files.Close()
}

func ptr(a uint64) addr.Host { return addr.Host(a) }

func i32(a uint64) int32 { return int32(uint32(a)) }

func word(v int32) uint64 { return uint64(uint32(v)) }
