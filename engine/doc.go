// Package engine runs cgame guests compiled to WebAssembly.
//
// The engine wraps wazero and provides the one import every guest links
// against:
//
//	(import "env" "syscall" (func (param $id i32) (param $args i32) (result i32)))
//
// $args is the guest address of a call frame of frame.Size little-endian
// words. The engine decodes the frame, resolves the calling guest's region in
// the host address space and hands both to the dispatcher. The dispatcher's
// word is returned to the guest unchanged.
//
// # Guest Lifecycle
//
//  1. Engine.Load compiles the module, checks it exports memory and the entry
//     point, instantiates it and maps its memory into the hostmem.Space
//  2. Instance.Call sends entry commands (capability.Init, DrawActiveFrame, ...)
//     to the guest's vmMain
//  3. Instance.Close unmaps the region; its reservation is never reused
//
// Guests are named; the name identifies the calling instance inside the
// system-call import, so two guests with the same name cannot be loaded at once.
//
// # Thread Safety
//
// Engine is safe for concurrent use. An Instance is NOT thread-safe and should
// be driven by a single goroutine, like the guest it wraps.
package engine
