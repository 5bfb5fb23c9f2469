package vmcall

// Memory is one guest's linear memory. wazero's api.Memory satisfies it.
// Read returns a view that aliases guest memory; ok is false when the range
// falls outside the current size.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}
