package toth

import (
	"errors"
	"testing"

	"github.com/tothlab/toth/internal/dynload"
	"github.com/tothlab/toth/internal/host"
)

func TestCallEntriesTerminated(t *testing.T) {
	if err := dynload.ValidateTable(callEntries); err != nil {
		t.Fatalf("ValidateTable: %v", err)
	}
	last := callEntries[len(callEntries)-1]
	if last.Name != "" || last.Fn != nil || last.NumArgs != 0 {
		t.Errorf("last entry is not the sentinel: %+v", last)
	}
}

func TestInitRegistersNothing(t *testing.T) {
	lib := dynload.NewLibrary("toth")

	Init(lib)

	if got := lib.RoutineCount(); got != 0 {
		t.Errorf("RoutineCount = %d, want 0", got)
	}
	for _, kind := range []dynload.RoutineKind{dynload.CKind, dynload.CallKind, dynload.ExternalKind} {
		if syms := lib.Routines(kind); len(syms) != 0 {
			t.Errorf("%s routines = %d, want 0", kind, len(syms))
		}
	}
}

func TestInitDisablesDynamicLookup(t *testing.T) {
	lib := dynload.NewLibrary("toth")
	if !lib.DynamicLookup() {
		t.Fatal("fresh handle should allow dynamic lookup")
	}

	Init(lib)

	if lib.DynamicLookup() {
		t.Error("dynamic lookup still enabled after Init")
	}
	for _, name := range []string{"toth", "Init", "anything_at_all", ""} {
		if _, err := lib.FindSymbol(name); !errors.Is(err, dynload.ErrSymbolNotFound) {
			t.Errorf("FindSymbol(%q) = %v, want ErrSymbolNotFound", name, err)
		}
	}
}

func TestLoadEndToEnd(t *testing.T) {
	ld := dynload.NewLoader()

	lib, err := ld.Load("toth")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Name() != "toth" {
		t.Errorf("Name = %q, want toth", lib.Name())
	}
	if lib.RoutineCount() != 0 {
		t.Errorf("RoutineCount = %d, want 0", lib.RoutineCount())
	}
	if lib.DynamicLookup() {
		t.Error("dynamic lookup enabled after load")
	}
	if _, err := ld.FindSymbol("anything", "toth"); !errors.Is(err, dynload.ErrSymbolNotFound) {
		t.Errorf("FindSymbol = %v, want ErrSymbolNotFound", err)
	}

	// Loading again must not run the hook a second time.
	again, err := ld.Load("toth")
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again != lib {
		t.Error("second Load returned a different handle")
	}
}

func TestScriptSeesNoRoutines(t *testing.T) {
	ld := dynload.NewLoader()
	if _, err := ld.Load("toth"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	h := host.New(ld)

	v, err := h.RunScript("test", `native.libs()`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if libs, ok := v.Export().([]string); !ok || len(libs) != 1 || libs[0] != "toth" {
		t.Errorf("libs() = %#v, want [toth]", v.Export())
	}

	v, err = h.RunScript("test", `native.isLoaded("anything")`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if v.Export() != false {
		t.Error("isLoaded reported a callable routine for an empty table")
	}

	if _, err := h.RunScript("test", `native.call("anything")`); err == nil {
		t.Error("expected symbol not found calling into an empty table")
	}
}
