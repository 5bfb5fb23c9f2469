package host

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/wippyai/vmcall/errors"
)

// Cvar flags understood by the store.
const (
	CvarArchive  int32 = 0x0001
	CvarUserInfo int32 = 0x0002
	CvarROM      int32 = 0x0040
)

// Guest vmCvar_t layout.
const (
	cvarStringSize = 256
	cvarStructSize = 16 + cvarStringSize
)

// Cvar is one console variable.
type Cvar struct {
	Name              string
	Value             string
	Default           string
	Handle            int32
	Flags             int32
	ModificationCount int32
}

// Float returns the value parsed like atof.
func (c *Cvar) Float() float32 {
	f, _ := strconv.ParseFloat(leadingNumber(c.Value, true), 32)
	return float32(f)
}

// Int returns the value parsed like atoi.
func (c *Cvar) Int() int32 {
	n, _ := strconv.ParseInt(leadingNumber(c.Value, false), 10, 32)
	return int32(n)
}

// leadingNumber returns the longest numeric prefix of s.
func leadingNumber(s string, float bool) string {
	s = strings.TrimSpace(s)
	end := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case (c == '-' || c == '+') && i == 0:
		case c == '.' && float && !strings.Contains(s[:i], "."):
		default:
			return s[:end]
		}
		end = i + 1
	}
	return s[:end]
}

// Cvars is a concurrency-safe cvar store. Handles start at 1.
type Cvars struct {
	byName map[string]*Cvar
	list   []*Cvar
	mu     sync.RWMutex
}

// NewCvars creates an empty store.
func NewCvars() *Cvars {
	return &Cvars{byName: make(map[string]*Cvar)}
}

// Register declares name with a default value. An existing cvar keeps its value
// and gains the flags.
func (s *Cvars) Register(name, def string, flags int32) *Cvar {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byName[strings.ToLower(name)]; ok {
		c.Flags |= flags
		if c.Default == "" {
			c.Default = def
		}
		return c
	}
	return s.create(name, def, def, flags)
}

// Set assigns value to name, creating the cvar when missing. Read-only cvars
// are left untouched.
func (s *Cvars) Set(name, value string) *Cvar {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return s.create(name, value, "", 0)
	}
	if c.Flags&CvarROM != 0 || c.Value == value {
		return c
	}
	c.Value = value
	c.ModificationCount++
	return c
}

// Get returns a copy of the cvar called name.
func (s *Cvars) Get(name string) (Cvar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.byName[strings.ToLower(name)]; ok {
		return *c, true
	}
	return Cvar{}, false
}

// ByHandle returns a copy of the cvar with handle h.
func (s *Cvars) ByHandle(h int32) (Cvar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h < 1 || int(h) > len(s.list) {
		return Cvar{}, false
	}
	return *s.list[h-1], true
}

// All returns copies of every cvar sorted by name.
func (s *Cvars) All() []Cvar {
	s.mu.RLock()
	out := make([]Cvar, len(s.list))
	for i, c := range s.list {
		out[i] = *c
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Cvars) create(name, value, def string, flags int32) *Cvar {
	c := &Cvar{
		Name:              name,
		Value:             value,
		Default:           def,
		Flags:             flags,
		Handle:            int32(len(s.list) + 1),
		ModificationCount: 1,
	}
	s.list = append(s.list, c)
	s.byName[strings.ToLower(name)] = c
	return c
}

type archive struct {
	Cvars map[string]string `toml:"cvars"`
}

// SaveArchive writes every archived cvar to path on fs as TOML.
func (s *Cvars) SaveArchive(fs afero.Fs, path string) error {
	a := archive{Cvars: map[string]string{}}
	for _, c := range s.All() {
		if c.Flags&CvarArchive != 0 {
			a.Cvars[c.Name] = c.Value
		}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(a); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "encode cvar archive")
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "write "+path)
	}
	return nil
}

// LoadArchive presets cvars from an archive written by SaveArchive. A missing
// file is not an error.
func (s *Cvars) LoadArchive(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if ok, _ := afero.Exists(fs, path); !ok {
			return nil
		}
		return errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "read "+path)
	}
	var a archive
	if err := toml.Unmarshal(data, &a); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "parse "+path)
	}
	for name, v := range a.Cvars {
		s.Register(name, v, CvarArchive)
		s.Set(name, v)
	}
	return nil
}

// encodeVMCvar renders c in the guest's vmCvar_t layout.
func encodeVMCvar(c Cvar) []byte {
	buf := make([]byte, cvarStructSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(c.Handle))
	binary.LittleEndian.PutUint32(buf[4:], uint32(c.ModificationCount))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(c.Float()))
	binary.LittleEndian.PutUint32(buf[12:], uint32(c.Int()))
	v := c.Value
	if len(v) >= cvarStringSize {
		v = v[:cvarStringSize-1]
	}
	copy(buf[16:], v)
	return buf
}

func (h *Host) cvarRegister(_ context.Context, args []uint64) (uint64, error) {
	name, err := h.space.ReadString(ptr(args[1]), cvarStringSize)
	if err != nil {
		return 0, err
	}
	var def string
	if !ptr(args[2]).IsNull() {
		if def, err = h.space.ReadString(ptr(args[2]), cvarStringSize); err != nil {
			return 0, err
		}
	}
	c := h.cvars.Register(name, def, i32(args[3]))
	if ptr(args[0]).IsNull() {
		return 0, nil
	}
	return 0, h.space.Write(ptr(args[0]), encodeVMCvar(*c))
}

func (h *Host) cvarUpdate(_ context.Context, args []uint64) (uint64, error) {
	p := ptr(args[0])
	handle, err := h.space.ReadU32(p)
	if err != nil {
		return 0, err
	}
	c, ok := h.cvars.ByHandle(int32(handle))
	if !ok {
		return 0, errors.NotFound(errors.PhaseHost, "cvar handle", strconv.Itoa(int(int32(handle))))
	}
	return 0, h.space.Write(p, encodeVMCvar(c))
}

func (h *Host) cvarSet(_ context.Context, args []uint64) (uint64, error) {
	name, err := h.space.ReadString(ptr(args[0]), cvarStringSize)
	if err != nil {
		return 0, err
	}
	value, err := h.space.ReadString(ptr(args[1]), cvarStringSize)
	if err != nil {
		return 0, err
	}
	h.cvars.Set(name, value)
	return 0, nil
}

func (h *Host) cvarStringBuffer(_ context.Context, args []uint64) (uint64, error) {
	name, err := h.space.ReadString(ptr(args[0]), cvarStringSize)
	if err != nil {
		return 0, err
	}
	c, _ := h.cvars.Get(name)
	return 0, h.space.WriteString(ptr(args[1]), c.Value, uint32(i32(args[2])))
}
