package main

import (
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/vmcall/capability"
)

// slotType maps a slot kind to the WIT primitive of its raw word: scalars are
// signed words, pointers unsigned displacements.
func slotType(k capability.Kind) wit.Type {
	if k == capability.Pointer {
		return wit.U32{}
	}
	return wit.S32{}
}

// witFunction describes a convention as a freestanding WIT function. A None
// result has no WIT result.
func witFunction(c capability.Convention) *wit.Function {
	f := &wit.Function{
		Name:   witName(c.ID),
		Kind:   &wit.Freestanding{},
		Params: make([]wit.Param, len(c.Params)),
	}
	for i, k := range c.Params {
		f.Params[i] = wit.Param{Name: "arg" + strconv.Itoa(i), Type: slotType(k)}
	}
	switch c.Result {
	case capability.Value:
		f.Results = []wit.Param{{Type: wit.S32{}}}
	case capability.GuestPointer:
		f.Results = []wit.Param{{Type: wit.U32{}}}
	}
	return f
}

// witSignature renders "cg-fs-read: func(arg0: u32, arg1: s32, arg2: s32);".
func witSignature(c capability.Convention) string {
	f := witFunction(c)
	return f.WIT(nil, f.Name)
}

var witNamer = strings.NewReplacer("_", "-", "(", "-", ")", "")

// witName turns an ABI name into a WIT identifier. Undeclared identifiers
// become "capability-N".
func witName(id capability.ID) string {
	return witNamer.Replace(strings.ToLower(id.String()))
}
