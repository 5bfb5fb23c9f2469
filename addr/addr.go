// Package addr translates between guest displacements and host addresses.
//
// A guest sees its memory as a private range starting at displacement 0. The host
// maps that range somewhere inside its own address space at a base chosen when the
// guest is instantiated. Every pointer-shaped value crossing the boundary goes
// through ToHost or ToGuest; the two address types are distinct so one can never be
// used as the other by accident.
//
// Displacement 0 is the guest's null pointer and always translates to Null, never
// to the base itself.
package addr

import (
	"fmt"

	"github.com/wippyai/vmcall/errors"
)

// Guest is a displacement from the base of a guest address space.
type Guest int32

// Host is an absolute address in the host address space.
type Host uint64

// Null is the host null address.
const Null Host = 0

// IsNull reports whether p is the host null address.
func (p Host) IsNull() bool { return p == Null }

func (p Host) String() string { return fmt.Sprintf("%#x", uint64(p)) }

// ToHost converts a guest displacement to a host address for a guest mapped at base.
// Translation is total and unchecked; use Region.Check to validate the result.
func ToHost(base Host, d Guest) Host {
	if d == 0 {
		return Null
	}
	return base + Host(int64(d))
}

// ToGuest converts a host address back into a displacement relative to base.
func ToGuest(base Host, p Host) Guest {
	if p == Null {
		return 0
	}
	return Guest(int32(p - base))
}

// Region is the host-side extent of one mapped guest address space.
type Region struct {
	Base Host
	Size uint32
}

// ToHost translates d relative to the region base.
func (r Region) ToHost(d Guest) Host { return ToHost(r.Base, d) }

// ToGuest translates p relative to the region base.
func (r Region) ToGuest(p Host) Guest { return ToGuest(r.Base, p) }

// End returns the first host address past the region.
func (r Region) End() Host { return r.Base + Host(r.Size) }

// Contains reports whether [p, p+n) lies inside the region. A zero-length range
// is contained when p itself is inside or at the end of the region.
func (r Region) Contains(p Host, n uint32) bool {
	if p < r.Base {
		return false
	}
	off := uint64(p - r.Base)
	return off+uint64(n) <= uint64(r.Size)
}

// Check returns an out-of-bounds error when [p, p+n) is not inside the region.
// Null is rejected as well; callers that accept null test for it first.
func (r Region) Check(p Host, n uint32) error {
	if p == Null {
		return errors.New(errors.PhaseTranslate, errors.KindNilPointer).
			Detail("null address").
			Build()
	}
	if !r.Contains(p, n) {
		return errors.OutOfBounds(errors.PhaseTranslate, uint64(p), n)
	}
	return nil
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", uint64(r.Base), uint64(r.End()))
}
