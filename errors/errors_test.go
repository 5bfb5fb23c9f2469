package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:      PhaseDispatch,
				Kind:       KindOutOfBounds,
				Capability: "CG_FS_READ",
				Detail:     "pointer slot 0",
			},
			contains: []string{"[dispatch]", "out_of_bounds", "in CG_FS_READ", "pointer slot 0"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseTranslate,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[translate]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindInstantiation,
				Detail: "instantiate module",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[load]", "instantiation", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseHost,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should follow the cause chain")
	}
}

func TestError_Is(t *testing.T) {
	err := OutOfBounds(PhaseTranslate, 0x10020, 4)

	if !err.Is(&Error{Phase: PhaseTranslate, Kind: KindOutOfBounds}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseHost, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseTranslate, Kind: KindNilPointer}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Phase: PhaseTranslate, Kind: KindOutOfBounds}) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDispatch, KindOutOfBounds).
		Capability("CG_R_RENDERSCENE").
		Value(uint64(0xdead)).
		Cause(cause).
		Detail("slot %d outside region", 0).
		Build()

	if err.Phase != PhaseDispatch {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDispatch)
	}
	if err.Kind != KindOutOfBounds {
		t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
	}
	if err.Capability != "CG_R_RENDERSCENE" {
		t.Errorf("Capability = %q", err.Capability)
	}
	if err.Value != uint64(0xdead) {
		t.Errorf("Value = %v, want 0xdead", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "slot 0 outside region" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		name  string
		phase Phase
		kind  Kind
	}{
		{OutOfBounds(PhaseHost, 0x20000, 16), "OutOfBounds", PhaseHost, KindOutOfBounds},
		{NilPointer(PhaseHost, "CG_PRINT"), "NilPointer", PhaseHost, KindNilPointer},
		{Unsupported(PhaseHost, "renderer"), "Unsupported", PhaseHost, KindUnsupported},
		{NotFound(PhaseRuntime, "instance", "cgame"), "NotFound", PhaseRuntime, KindNotFound},
		{InvalidInput(PhaseConfig, "bad"), "InvalidInput", PhaseConfig, KindInvalidInput},
		{NotInitialized(PhaseRuntime, "memory"), "NotInitialized", PhaseRuntime, KindNotInitialized},
		{MissingExport("cgame", "vmMain"), "MissingExport", PhaseLoad, KindMissingExport},
		{Instantiation("cgame", errors.New("x")), "Instantiation", PhaseLoad, KindInstantiation},
		{Load("compile", errors.New("x")), "Load", PhaseLoad, KindInvalidData},
		{Config("parse", errors.New("x")), "Config", PhaseConfig, KindInvalidData},
		{Wrap(PhaseHost, KindInvalidData, errors.New("x"), "read"), "Wrap", PhaseHost, KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}

	t.Run("OutOfBounds detail", func(t *testing.T) {
		err := OutOfBounds(PhaseTranslate, 0x10020, 99)
		if !strings.Contains(err.Detail, "0x10020") || !strings.Contains(err.Detail, "+99") {
			t.Errorf("Detail = %q", err.Detail)
		}
		if err.Value != uint64(0x10020) {
			t.Errorf("Value = %v", err.Value)
		}
	})
}
