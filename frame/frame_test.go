package frame

import (
	"testing"

	"github.com/wippyai/vmcall/addr"
	"github.com/wippyai/vmcall/capability"
)

func TestSize_CoversTable(t *testing.T) {
	if capability.MaxArity() > Size {
		t.Fatalf("frame size %d smaller than max arity %d", Size, capability.MaxArity())
	}
}

func TestDecode(t *testing.T) {
	f := Frame{ID: capability.FSWrite}
	f.Args[0] = 0x20
	f.Args[1] = 99
	f.Args[2] = -1
	f.Args[9] = 7

	got := Decode(capability.FSWrite, f.Encode())
	if got != f {
		t.Errorf("Decode(Encode) = %+v, want %+v", got, f)
	}
}

func TestDecode_Short(t *testing.T) {
	buf := []byte{0x20, 0, 0, 0, 99, 0, 0, 0, 1, 2}
	f := Decode(capability.Print, buf)
	if f.Args[0] != 0x20 || f.Args[1] != 99 {
		t.Errorf("Args = %v", f.Args)
	}
	for i := 2; i < Size; i++ {
		if f.Args[i] != 0 {
			t.Errorf("slot %d = %d, want 0", i, f.Args[i])
		}
	}
}

func TestView(t *testing.T) {
	region := addr.Region{Base: 0x10000, Size: 0x1000}
	v := NewView([]int32{0x20, 99, 0}, region)

	if v.Len() != 3 {
		t.Errorf("Len = %d", v.Len())
	}
	if v.Scalar(1) != 99 {
		t.Errorf("Scalar(1) = %d", v.Scalar(1))
	}
	if v.Pointer(0) != 0x10020 {
		t.Errorf("Pointer(0) = %v", v.Pointer(0))
	}
	if v.Pointer(2) != addr.Null {
		t.Errorf("Pointer(2) = %v, want Null", v.Pointer(2))
	}
	if v.Displacement(0) != 0x20 {
		t.Errorf("Displacement(0) = %d", v.Displacement(0))
	}
	if v.Region() != region {
		t.Errorf("Region = %v", v.Region())
	}
}

func TestView_OutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	v := NewView([]int32{1}, addr.Region{})
	v.Scalar(1)
}
