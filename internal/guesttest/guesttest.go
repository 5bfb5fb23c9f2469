// Package guesttest assembles minimal guest modules for engine tests.
//
// The default guest is a trampoline: its entry point forwards both of its
// arguments straight to the system-call import, so
//
//	vmMain(cmd, argsPtr) == syscall(cmd, argsPtr)
//
// which lets a test drive any capability with a frame it wrote into guest memory.
package guesttest

const (
	valI32  = 0x7f
	funcTyp = 0x60

	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secExport   = 7
	secCode     = 10

	kindFunc   = 0
	kindMemory = 2

	opLocalGet = 0x20
	opCall     = 0x10
	opEnd      = 0x0b
)

// Options shapes the assembled module.
type Options struct {
	ImportModule string
	ImportName   string
	EntryPoint   string
	MemoryPages  uint32
	NoMemory     bool
	NoEntry      bool
}

// Trampoline returns the default guest: env.syscall import, one page of
// exported memory and a vmMain(i32, i32) i32 entry point.
func Trampoline() []byte {
	return Build(Options{})
}

// Build assembles a trampoline guest shaped by o.
func Build(o Options) []byte {
	if o.ImportModule == "" {
		o.ImportModule = "env"
	}
	if o.ImportName == "" {
		o.ImportName = "syscall"
	}
	if o.EntryPoint == "" {
		o.EntryPoint = "vmMain"
	}
	if o.MemoryPages == 0 {
		o.MemoryPages = 1
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// (i32, i32) -> i32, shared by the import and the entry point
	out = section(out, secType, []byte{1, funcTyp, 2, valI32, valI32, 1, valI32})

	imp := []byte{1}
	imp = name(imp, o.ImportModule)
	imp = name(imp, o.ImportName)
	imp = append(imp, kindFunc, 0)
	out = section(out, secImport, imp)

	out = section(out, secFunction, []byte{1, 0})

	if !o.NoMemory {
		out = section(out, secMemory, uleb([]byte{1, 0}, o.MemoryPages))
	}

	var exports [][]byte
	if !o.NoMemory {
		exports = append(exports, append(name(nil, "memory"), kindMemory, 0))
	}
	if !o.NoEntry {
		exports = append(exports, append(name(nil, o.EntryPoint), kindFunc, 1))
	}
	exp := uleb(nil, uint32(len(exports)))
	for _, e := range exports {
		exp = append(exp, e...)
	}
	out = section(out, secExport, exp)

	body := []byte{0, opLocalGet, 0, opLocalGet, 1, opCall, 0, opEnd}
	code := uleb([]byte{1}, uint32(len(body)))
	out = section(out, secCode, append(code, body...))
	return out
}

func section(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = uleb(out, uint32(len(content)))
	return append(out, content...)
}

func name(out []byte, s string) []byte {
	out = uleb(out, uint32(len(s)))
	return append(out, s...)
}

func uleb(out []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
