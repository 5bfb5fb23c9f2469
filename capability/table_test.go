package capability

import (
	"strings"
	"testing"
)

func TestTable_Exhaustive(t *testing.T) {
	for _, blk := range declared {
		for id := blk[0]; id <= blk[1]; id++ {
			_, ok := Lookup(id)
			if ok == Retired(id) {
				t.Errorf("%v: served=%v retired=%v", id, ok, Retired(id))
			}
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	for _, id := range []ID{-1, 90, 99, 112, 9999, CMLoadModel, TestPrintInt, TestPrintFloat} {
		if _, ok := Lookup(id); ok {
			t.Errorf("Lookup(%v) should report false", id)
		}
	}
}

func TestLookup_Conventions(t *testing.T) {
	tests := []struct {
		params []Kind
		id     ID
		result Result
	}{
		{[]Kind{Pointer}, Print, None},
		{nil, Milliseconds, Value},
		{[]Kind{Pointer}, AddCommand, None},
		{[]Kind{Pointer}, RemoveCommand, None},
		{[]Kind{Pointer, Scalar, Scalar}, FSRead, None},
		{[]Kind{Pointer, Scalar, Scalar}, FSWrite, None},
		{[]Kind{Pointer, Pointer, Scalar}, FSFOpenFile, Value},
		{[]Kind{Scalar, Pointer, Scalar}, Argv, None},
		{[]Kind{Pointer}, RRenderScene, None},
		{[]Kind{Pointer, Scalar, Pointer}, RRegisterFont, None},
		{[]Kind{Scalar, Scalar, Scalar, Scalar, Scalar, Scalar, Scalar, Scalar, Scalar}, RDrawStretchPic, None},
		{[]Kind{Pointer, Pointer, Pointer, Pointer, Pointer, Scalar, Scalar, Pointer, Pointer}, CMTransformedBoxTrace, None},
		{[]Kind{Scalar, Pointer, Pointer, Scalar, Pointer, Scalar, Pointer}, CMMarkFragments, Value},
		{[]Kind{Pointer, Pointer, Scalar}, StrNCpy, GuestPointer},
		{[]Kind{Scalar, Scalar}, Atan2, Value},
		{[]Kind{Scalar, Scalar, Scalar}, FSSeek, Value},
	}

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			c, ok := Lookup(tt.id)
			if !ok {
				t.Fatalf("Lookup(%v) missing", tt.id)
			}
			if c.ID != tt.id {
				t.Errorf("ID = %v", c.ID)
			}
			if c.Result != tt.result {
				t.Errorf("Result = %v, want %v", c.Result, tt.result)
			}
			if c.Arity() != len(tt.params) {
				t.Fatalf("Arity = %d, want %d", c.Arity(), len(tt.params))
			}
			for i, k := range tt.params {
				if c.Params[i] != k {
					t.Errorf("slot %d = %v, want %v", i, c.Params[i], k)
				}
			}
		})
	}
}

func TestMaxArity(t *testing.T) {
	if MaxArity() != 9 {
		t.Errorf("MaxArity = %d, want 9", MaxArity())
	}
}

func TestAll_Ordered(t *testing.T) {
	all := All()
	if len(all) != len(conventions) {
		t.Fatalf("All returned %d entries, want %d", len(all), len(conventions))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("not ordered at %d: %v >= %v", i, all[i-1].ID, all[i].ID)
		}
	}
	all[0].ID = 12345
	if All()[0].ID == 12345 {
		t.Error("All should return a copy")
	}
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name string
		want string
		list []Convention
	}{
		{
			name: "duplicate",
			list: append(append([]Convention{}, conventions...), def(Print, None, p)),
			want: "declared twice",
		},
		{
			name: "missing",
			list: conventions[1:],
			want: "no convention for CG_PRINT",
		},
		{
			name: "retired",
			list: append(append([]Convention{}, conventions...), def(CMLoadModel, Value, p)),
			want: "retired",
		},
		{
			name: "undeclared",
			list: append(append([]Convention{}, conventions...), def(ID(95), None)),
			want: "not a declared identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(tt.list)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestNames(t *testing.T) {
	if RRenderScene.String() != "CG_R_RENDERSCENE" {
		t.Errorf("String = %q", RRenderScene.String())
	}
	if ID(9999).String() != "capability(9999)" {
		t.Errorf("String = %q", ID(9999).String())
	}
	for _, c := range All() {
		id, ok := Parse(c.ID.String())
		if !ok || id != c.ID {
			t.Errorf("Parse(%q) = %v, %v", c.ID.String(), id, ok)
		}
	}
	if id, ok := Parse("44"); !ok || id != RRenderScene {
		t.Errorf("Parse(44) = %v, %v", id, ok)
	}
	if _, ok := Parse("CG_NOPE"); ok {
		t.Error("Parse should reject unknown names")
	}
}

func TestSignature(t *testing.T) {
	c, _ := Lookup(FSRead)
	if got := c.Signature(); got != "CG_FS_READ(ptr, int, int) void" {
		t.Errorf("Signature = %q", got)
	}
	c, _ = Lookup(Milliseconds)
	if got := c.Signature(); got != "CG_MILLISECONDS() value" {
		t.Errorf("Signature = %q", got)
	}
	c, _ = Lookup(CMTempBoxModel)
	if got := c.Pointers(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Pointers = %v", got)
	}
}

func TestExportNames(t *testing.T) {
	if DrawActiveFrame.String() != "CG_DRAW_ACTIVE_FRAME" {
		t.Errorf("String = %q", DrawActiveFrame.String())
	}
	if Export(42).String() != "export(42)" {
		t.Errorf("String = %q", Export(42).String())
	}
}
