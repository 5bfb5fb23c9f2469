// Package vmcall bridges sandboxed game-logic guests to a native host through a
// single system-call entry point.
//
// A guest issues every request to the host as one call carrying a capability
// identifier and a frame of 32-bit argument words. The bridge looks the
// identifier up in a fixed table, turns pointer words (displacements into the
// guest's own memory) into absolute host addresses, forwards the call and
// hands back one word.
//
// # Architecture Overview
//
//	vmcall/              Root package with the guest Memory interface
//	├── addr/            Guest displacements, host addresses and regions
//	├── capability/      The closed capability table and entry commands
//	├── frame/           Raw call frames and typed argument views
//	├── dispatch/        Table-driven dispatcher with hooks and counters
//	├── hook/            Render-scene trace hook
//	├── hostmem/         Host address space mapping guest memories
//	├── host/            Reference host: console, cvars, files, scripts, math
//	├── resource/        Handle table for host-side objects
//	├── engine/          wazero integration: env.syscall and vmMain
//	├── config/          TOML configuration
//	├── errors/          Structured error types for debugging
//	└── cmd/vmcall/      Command line runner and capability browser
//
// # Quick Start
//
//	space := hostmem.NewSpace(cfg.Engine.MemoryLimitPages)
//	h := host.New(space, host.WithFS(afero.NewOsFs()))
//	d := dispatch.New(h)
//	hook.Install(d, hook.NewRenderTrace())
//
//	eng, err := engine.New(ctx, d, space, engine.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	inst, err := eng.Load(ctx, "cgame", wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = inst.Call(ctx, capability.Init, 0, 0, 0)
//
// # Failure Policy
//
// No error crosses the guest boundary. Unknown identifiers, void capabilities
// and calls rejected by pointer validation all yield 0.
//
// # Thread Safety
//
// Dispatcher and Space are safe for concurrent use. An Instance, like the guest
// it wraps, must be driven by one goroutine at a time.
package vmcall
