package hostmem

// Buffer is a fixed-size guest memory backed by a byte slice.
type Buffer []byte

// NewBuffer allocates a zeroed memory of the given number of pages.
func NewBuffer(pages uint32) Buffer {
	return make(Buffer, uint64(pages)*PageSize)
}

// Size returns the memory size in bytes.
func (b Buffer) Size() uint32 { return uint32(len(b)) }

// Read returns a view of byteCount bytes at offset.
func (b Buffer) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(b)) {
		return nil, false
	}
	return b[offset:end:end], true
}

// Write copies v into the memory at offset.
func (b Buffer) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(b)) {
		return false
	}
	copy(b[offset:], v)
	return true
}
