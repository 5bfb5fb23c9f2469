// Package dispatch is the single chokepoint through which a guest asks the host
// to do privileged work.
//
// A Dispatcher receives a capability identifier, the raw argument words of the call
// frame and the region the calling guest is mapped at. It looks the identifier up
// in the capability table, resolves each declared slot (scalars unchanged, pointers
// translated into host addresses), calls the host Entry and reduces the host result
// to the one word the guest's call instruction expects.
//
//	d := dispatch.New(host)
//	hook.Install(d, hook.NewRenderTrace())
//	ret := d.Dispatch(ctx, capability.FSWrite, args, region)
//
// # Failure policy
//
// Nothing crosses the guest boundary except the result word:
//
//	unknown or retired identifier   0, no host call, OnUnknown hooks
//	pointer outside guest region    0, no host call, OnRejected hooks
//	void capability                 0, whatever the host returned
//
// Pointer validation only checks that the first byte of each non-null pointer lies
// inside the guest region. Extents depend on capability-specific lengths and are
// checked by the host capability. WithUncheckedPointers restores the legacy
// behaviour of forwarding any translated address.
//
// # Hooks
//
// Hooks attach per capability before or after the host call. Pre-call hooks
// run for every call of a known capability, including one rejected by pointer
// validation; post-call hooks only follow a host call. Hooks run on the calling
// goroutine, must not block, and a panicking hook is logged and swallowed.
package dispatch
