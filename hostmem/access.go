package hostmem

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/errors"
)

// Check reports an error unless [p, p+n) lies inside one mapped guest memory.
// Callers sizing host buffers from guest lengths check before allocating.
func (s *Space) Check(p addr.Host, n uint32) error {
	_, _, err := s.resolve(p, n)
	return err
}

// Read copies n bytes starting at p.
func (s *Space) Read(p addr.Host, n uint32) ([]byte, error) {
	mem, off, err := s.resolve(p, n)
	if err != nil {
		return nil, err
	}
	view, ok := mem.Read(off, n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseHost, uint64(p), n)
	}
	return bytes.Clone(view), nil
}

// Write stores data starting at p.
func (s *Space) Write(p addr.Host, data []byte) error {
	mem, off, err := s.resolve(p, uint32(len(data)))
	if err != nil {
		return err
	}
	if !mem.Write(off, data) {
		return errors.OutOfBounds(errors.PhaseHost, uint64(p), uint32(len(data)))
	}
	return nil
}

// Fill sets n bytes starting at p to b.
func (s *Space) Fill(p addr.Host, b byte, n uint32) error {
	if n == 0 {
		return nil
	}
	if err := s.Check(p, n); err != nil {
		return err
	}
	return s.Write(p, bytes.Repeat([]byte{b}, int(n)))
}

// Move copies n bytes from src to dst. Overlapping ranges behave like memmove.
func (s *Space) Move(dst, src addr.Host, n uint32) error {
	if n == 0 {
		return nil
	}
	data, err := s.Read(src, n)
	if err != nil {
		return err
	}
	return s.Write(dst, data)
}

// ReadString reads a NUL-terminated string starting at p, stopping after limit
// bytes or at the end of the guest's memory.
func (s *Space) ReadString(p addr.Host, limit uint32) (string, error) {
	mem, off, err := s.resolve(p, 1)
	if err != nil {
		return "", err
	}
	n := mem.Size() - off
	if limit > 0 && limit < n {
		n = limit
	}
	view, ok := mem.Read(off, n)
	if !ok {
		return "", errors.OutOfBounds(errors.PhaseHost, uint64(p), n)
	}
	if i := bytes.IndexByte(view, 0); i >= 0 {
		view = view[:i]
	}
	return string(view), nil
}

// WriteString stores str at p as a NUL-terminated string truncated to fit size
// bytes, the way the guest's bounded string copy does. size 0 writes nothing.
func (s *Space) WriteString(p addr.Host, str string, size uint32) error {
	if size == 0 {
		return nil
	}
	if uint32(len(str)) >= size {
		str = str[:size-1]
	}
	buf := make([]byte, len(str)+1)
	copy(buf, str)
	return s.Write(p, buf)
}

// ReadU32 reads a little-endian word at p.
func (s *Space) ReadU32(p addr.Host) (uint32, error) {
	b, err := s.Read(p, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// WriteU32 stores a little-endian word at p.
func (s *Space) WriteU32(p addr.Host, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return s.Write(p, b[:])
}

// ReadF32 reads a float stored at p.
func (s *Space) ReadF32(p addr.Host) (float32, error) {
	v, err := s.ReadU32(p)
	return math.Float32frombits(v), err
}

// WriteF32 stores a float at p.
func (s *Space) WriteF32(p addr.Host, f float32) error {
	return s.WriteU32(p, math.Float32bits(f))
}
