package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/capability"
	"github.com/wippyai/vmcall/dispatch"
	"github.com/wippyai/vmcall/errors"
	"github.com/wippyai/vmcall/frame"
	"github.com/wippyai/vmcall/hostmem"
)

// Config holds configuration for engine creation
type Config struct {
	// ImportModule and ImportName name the system-call import guests link against.
	ImportModule string
	ImportName   string

	// EntryPoint is the guest export receiving engine commands.
	EntryPoint string

	// MemoryLimitPages sets the maximum memory per guest in pages (64KB each).
	// 0 or anything above hostmem.MaxPages means hostmem.MaxPages (2GB).
	MemoryLimitPages uint32
}

// DefaultConfig returns the cgame ABI names with a 16MB memory limit.
func DefaultConfig() *Config {
	return &Config{
		ImportModule:     "env",
		ImportName:       "syscall",
		EntryPoint:       "vmMain",
		MemoryLimitPages: 256,
	}
}

// Engine runs guests under wazero and routes their system calls through a
// dispatcher.
type Engine struct {
	runtime    wazero.Runtime
	dispatcher *dispatch.Dispatcher
	space      *hostmem.Space
	instances  map[string]*Instance
	cfg        Config
	mu         sync.RWMutex
}

// New creates an engine. A nil space gets one sized to the memory limit; a nil
// cfg means DefaultConfig.
func New(ctx context.Context, d *dispatch.Dispatcher, space *hostmem.Space, cfg *Config) (*Engine, error) {
	if d == nil {
		return nil, errors.NilPointer(errors.PhaseLoad, "dispatcher")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if space == nil {
		space = hostmem.NewSpace(cfg.MemoryLimitPages)
	}

	limit := cfg.MemoryLimitPages
	if limit == 0 || limit > hostmem.MaxPages {
		limit = hostmem.MaxPages
	}
	runtimeCfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(limit)

	e := &Engine{
		runtime:    wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		dispatcher: d,
		space:      space,
		instances:  make(map[string]*Instance),
		cfg:        *cfg,
	}

	_, err := e.runtime.NewHostModuleBuilder(cfg.ImportModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.syscall),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI32}).
		WithParameterNames("id", "args").
		Export(cfg.ImportName).
		Instantiate(ctx)
	if err != nil {
		e.runtime.Close(ctx)
		return nil, errors.Instantiation(cfg.ImportModule, err)
	}
	return e, nil
}

// Dispatcher returns the dispatcher guest calls are routed through.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// Space returns the host address space guests are mapped into.
func (e *Engine) Space() *hostmem.Space { return e.space }

// Instance returns the loaded guest called name.
func (e *Engine) Instance(name string) (*Instance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances[name]
	return inst, ok
}

// Load compiles and instantiates a guest, then maps its memory into the host
// address space.
func (e *Engine) Load(ctx context.Context, name string, wasmBytes []byte) (*Instance, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "guest name is required")
	}
	e.mu.RLock()
	_, dup := e.instances[name]
	e.mu.RUnlock()
	if dup {
		return nil, errors.New(errors.PhaseLoad, errors.KindOverlap).
			Detail("guest %q already loaded", name).
			Build()
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile "+name, err)
	}
	if _, ok := compiled.ExportedFunctions()[e.cfg.EntryPoint]; !ok {
		compiled.Close(ctx)
		return nil, errors.MissingExport(name, e.cfg.EntryPoint)
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		compiled.Close(ctx)
		return nil, errors.MissingExport(name, "memory")
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.Instantiation(name, err)
	}

	region, err := e.space.Map(name, mod.Memory())
	if err != nil {
		mod.Close(ctx)
		compiled.Close(ctx)
		return nil, err
	}

	inst := &Instance{
		engine:   e,
		name:     name,
		module:   mod,
		compiled: compiled,
		base:     region.Base,
		entry:    mod.ExportedFunction(e.cfg.EntryPoint),
	}

	e.mu.Lock()
	e.instances[name] = inst
	e.mu.Unlock()

	Logger().Info("guest loaded", zap.String("name", name), zap.Stringer("region", region))
	return inst, nil
}

// Close shuts down the runtime and every guest.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	for name, inst := range e.instances {
		e.space.Unmap(inst.base)
		delete(e.instances, name)
	}
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}

// syscall is the host side of the guest's system-call import.
func (e *Engine) syscall(ctx context.Context, mod api.Module, stack []uint64) {
	id := capability.ID(api.DecodeI32(stack[0]))
	argsAt := api.DecodeU32(stack[1])

	inst, ok := e.Instance(mod.Name())
	if !ok {
		Logger().Warn("system call from unmapped guest", zap.String("module", mod.Name()), zap.Stringer("capability", id))
		stack[0] = 0
		return
	}

	f := frame.Decode(id, readFrame(mod.Memory(), argsAt))
	stack[0] = api.EncodeI32(e.dispatcher.Dispatch(ctx, id, f.Args[:], inst.Region()))
}

// readFrame returns the frame words at off, truncated at the end of memory.
func readFrame(mem api.Memory, off uint32) []byte {
	const n = frame.Size * frame.WordSize
	if buf, ok := mem.Read(off, n); ok {
		return buf
	}
	size := mem.Size()
	if off >= size {
		return nil
	}
	buf, _ := mem.Read(off, size-off)
	return buf
}

// Instance is one loaded guest.
type Instance struct {
	engine   *Engine
	module   api.Module
	compiled wazero.CompiledModule
	entry    api.Function
	name     string
	base     addr.Host
	closed   bool
}

// Name returns the guest name.
func (i *Instance) Name() string { return i.name }

// Region returns the guest's current extent in the host address space.
func (i *Instance) Region() addr.Region {
	r, ok := i.engine.space.Region(i.base)
	if !ok {
		return addr.Region{Base: i.base}
	}
	return r
}

// Memory returns the guest's linear memory.
func (i *Instance) Memory() api.Memory { return i.module.Memory() }

// Params returns the number of argument words the entry point accepts after
// the command.
func (i *Instance) Params() int {
	n := len(i.entry.Definition().ParamTypes()) - 1
	if n < 0 {
		return 0
	}
	return n
}

// Call sends cmd to the guest entry point with up to as many argument words as
// the entry point declares after the command.
func (i *Instance) Call(ctx context.Context, cmd capability.Export, args ...int32) (int32, error) {
	if i.closed {
		return 0, errors.NotInitialized(errors.PhaseRuntime, i.name)
	}
	params := len(i.entry.Definition().ParamTypes())
	if params == 0 || len(args) > params-1 || len(args) > capability.MaxExportArgs {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Capability(cmd.String()).
			Detail("%d arguments for entry point taking %d", len(args), params-1).
			Build()
	}

	stack := make([]uint64, params)
	stack[0] = api.EncodeI32(int32(cmd))
	for n, a := range args {
		stack[n+1] = api.EncodeI32(a)
	}

	results, err := i.entry.Call(ctx, stack...)
	if err != nil {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Capability(cmd.String()).
			Cause(err).
			Detail("guest %s trapped", i.name).
			Build()
	}
	if len(results) == 0 {
		return 0, nil
	}
	return api.DecodeI32(results[0]), nil
}

// Close unmaps and closes the guest.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	e := i.engine
	e.mu.Lock()
	delete(e.instances, i.name)
	e.mu.Unlock()
	e.space.Unmap(i.base)

	err := i.module.Close(ctx)
	i.compiled.Close(ctx)
	return err
}
