package host

import (
	"runtime"
	"testing"

	"github.com/spf13/afero"

	"github.com/wippyai/vmcall/capability"
)

func TestFiles_ReadWrite(t *testing.T) {
	g := newGuest(t)
	afero.WriteFile(g.fs, "scripts/hud.cfg", []byte("hud data"), 0o644)

	g.put(0x100, "scripts/hud.cfg")
	length := g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSRead))
	if length != 8 {
		t.Fatalf("FOpenFile length = %d", length)
	}
	handle := g.u32(0x200)
	if handle == 0 {
		t.Fatal("no handle written")
	}

	g.call(capability.FSRead, g.at(0x300), 4, uint64(handle))
	if got := string(g.mem[0x300:0x304]); got != "hud " {
		t.Errorf("first read = %q", got)
	}
	if ret := g.call(capability.FSSeek, uint64(handle), 1, uint64(FSSeekSet)); ret != 0 {
		t.Errorf("Seek = %d", ret)
	}
	g.call(capability.FSRead, g.at(0x300), 16, uint64(handle))
	if got := string(g.mem[0x300:0x310]); got != "ud data\x00\x00\x00\x00\x00\x00\x00\x00\x00" {
		t.Errorf("short read = %q", got)
	}

	g.call(capability.FSFCloseFile, uint64(handle))
	if g.host.OpenFiles() != 0 {
		t.Errorf("OpenFiles = %d", g.host.OpenFiles())
	}

	// write then append
	g.put(0x100, "demo.log")
	g.put(0x400, "abc")
	g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSWrite))
	wh := g.u32(0x200)
	g.call(capability.FSWrite, g.at(0x400), 3, uint64(wh))
	g.call(capability.FSFCloseFile, uint64(wh))

	if n := g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSAppend)); n != 3 {
		t.Errorf("append length = %d", n)
	}
	ah := g.u32(0x200)
	g.call(capability.FSWrite, g.at(0x400), 2, uint64(ah))
	g.call(capability.FSFCloseFile, uint64(ah))

	data, _ := afero.ReadFile(g.fs, "demo.log")
	if string(data) != "abcab" {
		t.Errorf("file = %q", data)
	}
}

func TestFiles_LengthQuery(t *testing.T) {
	g := newGuest(t)
	afero.WriteFile(g.fs, "a.txt", []byte("12345"), 0o644)

	g.put(0x100, "a.txt")
	if n := g.call(capability.FSFOpenFile, g.at(0x100), 0, uint64(FSRead)); n != 5 {
		t.Errorf("length = %d", n)
	}
	if g.host.OpenFiles() != 0 {
		t.Error("length query opened a handle")
	}
	g.put(0x100, "missing.txt")
	if n := int32(uint32(g.call(capability.FSFOpenFile, g.at(0x100), 0, uint64(FSRead)))); n != -1 {
		t.Errorf("missing file length = %d", n)
	}
}

func TestFiles_Refused(t *testing.T) {
	g := newGuest(t)
	for _, p := range []string{"../etc/passwd", "/etc/passwd", "c:\\boot.ini", ""} {
		g.put(0x100, p)
		g.mem.Write(0x200, []byte{9, 9, 9, 9})
		n := int32(uint32(g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSRead))))
		if n != -1 {
			t.Errorf("%q: FOpenFile = %d", p, n)
		}
	}

	g.put(0x100, "nope.cfg")
	n := int32(uint32(g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSRead))))
	if n != -1 || g.u32(0x200) != 0 {
		t.Errorf("missing file: ret %d handle %d", n, g.u32(0x200))
	}
}

func TestFiles_HandleLimit(t *testing.T) {
	g := newGuest(t)
	g.put(0x100, "f")
	for i := 0; i < MaxFileHandles; i++ {
		g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSWrite))
	}
	n := int32(uint32(g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSWrite))))
	if n != -1 || g.u32(0x200) != 0 {
		t.Errorf("over limit: ret %d handle %d", n, g.u32(0x200))
	}
	if err := g.host.Close(); err != nil {
		t.Fatal(err)
	}
	if g.host.OpenFiles() != 0 {
		t.Errorf("OpenFiles after Close = %d", g.host.OpenFiles())
	}
}

func TestFiles_BadHandle(t *testing.T) {
	g := newGuest(t)
	g.call(capability.FSRead, g.at(0x300), 4, 17)
	g.call(capability.FSFCloseFile, 0)
	if n := int32(uint32(g.call(capability.FSSeek, 17, 0, uint64(FSSeekSet)))); n != -1 {
		t.Errorf("Seek on bad handle = %d", n)
	}
}

func TestFiles_UnknownMode(t *testing.T) {
	g := newGuest(t)
	g.put(0x100, "f")
	if n := int32(uint32(g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), 9))); n != -1 {
		t.Errorf("open with mode 9 = %d, want -1", n)
	}
	if g.host.OpenFiles() != 0 {
		t.Errorf("OpenFiles = %d", g.host.OpenFiles())
	}
}

// allocated returns the bytes the heap handed out while fn ran.
func allocated(fn func()) uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	fn()
	runtime.ReadMemStats(&after)
	return after.TotalAlloc - before.TotalAlloc
}

func TestOversizedLengthsFailBeforeAllocating(t *testing.T) {
	const huge = 0x40000000
	g := newGuest(t)
	afero.WriteFile(g.fs, "big.dat", []byte("data"), 0o644)
	g.put(0x100, "big.dat")
	g.call(capability.FSFOpenFile, g.at(0x100), g.at(0x200), uint64(FSRead))
	handle := uint64(g.u32(0x200))
	g.put(0x300, "src")

	tests := []struct {
		name string
		id   capability.ID
		args []uint64
	}{
		{"fs read", capability.FSRead, []uint64{g.at(0x400), huge, handle}},
		{"strncpy", capability.StrNCpy, []uint64{g.at(0x400), g.at(0x300), huge}},
		{"memset", capability.MemSet, []uint64{g.at(0x400), 0xff, huge}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n := allocated(func() { g.call(tt.id, tt.args...) }); n > 1<<20 {
				t.Errorf("allocated %d bytes for a %d byte guest", n, len(g.mem))
			}
			if g.mem[0x400] != 0 {
				t.Error("guest memory written")
			}
		})
	}
}
