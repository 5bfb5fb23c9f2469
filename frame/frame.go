// Package frame reads the raw argument array of one guest call.
package frame

import (
	"encoding/binary"

	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/capability"
)

// Size is the number of argument words the guest calling convention places in
// every call frame. It covers the largest arity in the capability table.
const Size = 10

// WordSize is the width of one guest argument word in bytes.
const WordSize = 4

// Frame is one transient guest call: a capability identifier and its raw words.
type Frame struct {
	ID   capability.ID
	Args [Size]int32
}

// Decode fills the argument words from little-endian guest memory. Words past the
// end of buf read as zero.
func Decode(id capability.ID, buf []byte) Frame {
	f := Frame{ID: id}
	for i := range f.Args {
		off := i * WordSize
		if off+WordSize > len(buf) {
			break
		}
		f.Args[i] = int32(binary.LittleEndian.Uint32(buf[off:]))
	}
	return f
}

// Encode writes the argument words in guest byte order.
func (f *Frame) Encode() []byte {
	buf := make([]byte, Size*WordSize)
	for i, w := range f.Args {
		binary.LittleEndian.PutUint32(buf[i*WordSize:], uint32(w))
	}
	return buf
}

// View exposes argument slots as scalars or translated pointers.
// Indexing past the slice is a table bug and panics.
type View struct {
	args   []int32
	region addr.Region
}

// NewView wraps args for a guest mapped at region.
func NewView(args []int32, region addr.Region) View {
	return View{args: args, region: region}
}

// Len returns the number of raw slots available.
func (v View) Len() int { return len(v.args) }

// Scalar returns slot i unchanged.
func (v View) Scalar(i int) int32 { return v.args[i] }

// Displacement returns slot i as a guest address.
func (v View) Displacement(i int) addr.Guest { return addr.Guest(v.args[i]) }

// Pointer returns slot i translated into the host address space.
func (v View) Pointer(i int) addr.Host { return v.region.ToHost(addr.Guest(v.args[i])) }

// Region returns the guest region the view translates against.
func (v View) Region() addr.Region { return v.region }
