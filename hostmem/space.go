// Package hostmem implements the host address space that guest memories are
// mapped into.
//
// Each mapped guest receives a base and a reservation large enough for its
// memory to grow to the configured limit. Reservations never overlap and are
// separated by an unmapped guard page, so an address that escapes one guest
// resolves to no memory at all rather than to a neighbour.
package hostmem

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	vmcall "github.com/wippyai/vmcall"
	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/errors"
)

// PageSize is the guest memory page size.
const PageSize = 65536

// FirstBase is the lowest base handed out, keeping the null page unmapped.
const FirstBase addr.Host = 0x10000

// MaxPages is the largest memory a guest may reserve. Displacements are
// signed 32-bit words, so nothing past 2GiB is reachable.
const MaxPages = 32768

type mapping struct {
	mem  vmcall.Memory
	name string
	base addr.Host
}

// Space maps guest memories at fixed host bases. It is safe for concurrent use.
type Space struct {
	maps    []mapping // sorted by base
	next    addr.Host
	reserve uint64
	mu      sync.RWMutex
}

// NewSpace creates an empty address space reserving limitPages pages per guest.
// Zero or out-of-range limits reserve MaxPages.
func NewSpace(limitPages uint32) *Space {
	if limitPages == 0 || limitPages > MaxPages {
		limitPages = MaxPages
	}
	return &Space{
		next:    FirstBase,
		reserve: uint64(limitPages) * PageSize,
	}
}

// Reservation returns the number of bytes reserved per guest.
func (s *Space) Reservation() uint64 { return s.reserve }

// Map places mem in the address space and returns its region.
func (s *Space) Map(name string, mem vmcall.Memory) (addr.Region, error) {
	if mem == nil {
		return addr.Region{}, errors.NilPointer(errors.PhaseTranslate, name)
	}
	if uint64(mem.Size()) > s.reserve {
		return addr.Region{}, errors.New(errors.PhaseTranslate, errors.KindOutOfBounds).
			Detail("memory %q of %d bytes exceeds reservation of %d", name, mem.Size(), s.reserve).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.next
	s.next = base + addr.Host(s.reserve) + PageSize
	s.maps = append(s.maps, mapping{name: name, base: base, mem: mem})
	sort.Slice(s.maps, func(i, j int) bool { return s.maps[i].base < s.maps[j].base })

	Logger().Debug("mapped guest memory",
		zap.String("name", name),
		zap.Stringer("base", base),
		zap.Uint32("size", mem.Size()))
	return addr.Region{Base: base, Size: mem.Size()}, nil
}

// Unmap removes the guest mapped at base. Its reservation is not reused.
func (s *Space) Unmap(base addr.Host) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(base)
	if i < 0 || s.maps[i].base != base {
		return false
	}
	s.maps = append(s.maps[:i], s.maps[i+1:]...)
	return true
}

// Region returns the current extent of the guest mapped at base. The size
// tracks memory growth.
func (s *Space) Region(base addr.Host) (addr.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(base)
	if i < 0 || s.maps[i].base != base {
		return addr.Region{}, false
	}
	return addr.Region{Base: base, Size: s.maps[i].mem.Size()}, true
}

// Name returns the name the guest at base was mapped under.
func (s *Space) Name(base addr.Host) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(base); i >= 0 && s.maps[i].base == base {
		return s.maps[i].name
	}
	return ""
}

// Regions returns every mapped region ordered by base.
func (s *Space) Regions() []addr.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]addr.Region, len(s.maps))
	for i, m := range s.maps {
		out[i] = addr.Region{Base: m.base, Size: m.mem.Size()}
	}
	return out
}

// index returns the last mapping with base <= p, or -1.
func (s *Space) index(p addr.Host) int {
	i := sort.Search(len(s.maps), func(i int) bool { return s.maps[i].base > p })
	return i - 1
}

// resolve finds the memory holding [p, p+n) and the offset of p within it.
func (s *Space) resolve(p addr.Host, n uint32) (vmcall.Memory, uint32, error) {
	if p.IsNull() {
		return nil, 0, errors.New(errors.PhaseHost, errors.KindNilPointer).Detail("null address").Build()
	}
	s.mu.RLock()
	i := s.index(p)
	var m mapping
	if i >= 0 {
		m = s.maps[i]
	}
	s.mu.RUnlock()

	if m.mem == nil {
		return nil, 0, errors.OutOfBounds(errors.PhaseHost, uint64(p), n)
	}
	region := addr.Region{Base: m.base, Size: m.mem.Size()}
	if !region.Contains(p, n) {
		return nil, 0, errors.OutOfBounds(errors.PhaseHost, uint64(p), n)
	}
	return m.mem, uint32(p - m.base), nil
}
