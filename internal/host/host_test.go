package host

import (
	"errors"
	"strings"
	"testing"

	"github.com/tothlab/toth/internal/dynload"
)

func num(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func init() {
	callTable := []dynload.RoutineDef{
		{
			Name: "add",
			Fn: func(args ...any) (any, error) {
				return num(args[0]) + num(args[1]), nil
			},
			NumArgs: 2,
		},
		{
			Name: "join",
			Fn: func(args ...any) (any, error) {
				parts := make([]string, 0, len(args))
				for _, a := range args {
					parts = append(parts, a.(string))
				}
				return strings.Join(parts, "-"), nil
			},
			NumArgs: dynload.NumArgsAny,
		},
		{},
	}
	cTable := []dynload.RoutineDef{
		{
			Name:    "fill",
			Fn:      func(args ...any) (any, error) { return nil, nil },
			NumArgs: 2,
		},
		{},
	}
	extTable := []dynload.RoutineDef{
		{
			Name: "pack",
			Fn: func(args ...any) (any, error) {
				list := args[0].([]any)
				return int64(len(list)), nil
			},
			NumArgs: dynload.NumArgsAny,
		},
		{},
	}

	dynload.RegisterExtension(dynload.Extension{
		Name: "hosttest",
		Init: func(lib *dynload.Library) {
			if err := dynload.RegisterRoutines(lib, cTable, callTable, extTable); err != nil {
				panic(err)
			}
		},
		Exports: map[string]dynload.NativeFunc{
			"hidden": func(args ...any) (any, error) { return "found me", nil },
		},
	})

	failTable := []dynload.RoutineDef{
		{
			Name: "fail",
			Fn: func(args ...any) (any, error) {
				return nil, errors.New("native failure")
			},
			NumArgs: 0,
		},
		{},
	}
	dynload.RegisterExtension(dynload.Extension{
		Name: "hosttest-err",
		Init: func(lib *dynload.Library) {
			if err := dynload.RegisterRoutines(lib, nil, failTable, nil); err != nil {
				panic(err)
			}
		},
	})
}

func newTestHost(t *testing.T, opts ...dynload.LoaderOption) *Host {
	t.Helper()
	ld := dynload.NewLoader(opts...)
	if _, err := ld.Load("hosttest"); err != nil {
		t.Fatalf("Load(hosttest): %v", err)
	}
	return New(ld)
}

func TestNativeCall(t *testing.T) {
	h := newTestHost(t)

	v, err := h.RunScript("test", `native.call("add", 1, 2)`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if got := num(v.Export()); got != 3 {
		t.Errorf("add(1, 2) = %v, want 3", v.Export())
	}
}

func TestNativeCallVariadic(t *testing.T) {
	h := newTestHost(t)

	v, err := h.RunScript("test", `native.call("join", "a", "b", "c")`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if got := v.Export(); got != "a-b-c" {
		t.Errorf("join = %v, want a-b-c", got)
	}
}

func TestNativeCallArity(t *testing.T) {
	h := newTestHost(t)

	_, err := h.RunScript("test", `native.call("add", 1)`)
	if err == nil || !strings.Contains(err.Error(), "expects 2 arguments") {
		t.Errorf("arity error = %v, want arity complaint", err)
	}
}

func TestNativeCallUnknown(t *testing.T) {
	h := newTestHost(t)

	_, err := h.RunScript("test", `native.call("no_such_routine")`)
	if err == nil || !strings.Contains(err.Error(), "symbol not found") {
		t.Errorf("unknown routine error = %v, want symbol not found", err)
	}
}

func TestNativeCallConventions(t *testing.T) {
	h := newTestHost(t)

	// CKind calls return the argument list.
	v, err := h.RunScript("test", `native.call("fill", 1, 2)`)
	if err != nil {
		t.Fatalf("RunScript(fill): %v", err)
	}
	list, ok := v.Export().([]any)
	if !ok || len(list) != 2 {
		t.Errorf("fill result = %#v, want 2-element argument list", v.Export())
	}

	// ExternalKind routines see the whole argument list as one value.
	v, err = h.RunScript("test", `native.call("pack", "x", "y", "z")`)
	if err != nil {
		t.Fatalf("RunScript(pack): %v", err)
	}
	if got := num(v.Export()); got != 3 {
		t.Errorf("pack = %v, want 3", v.Export())
	}
}

func TestNativeFind(t *testing.T) {
	h := newTestHost(t)

	v, err := h.RunScript("test", `native.find("add")`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	info, ok := v.Export().(map[string]any)
	if !ok {
		t.Fatalf("find result = %#v, want object", v.Export())
	}
	if info["name"] != "add" || info["kind"] != "call" || num(info["numArgs"]) != 2 || info["library"] != "hosttest" {
		t.Errorf("find(add) = %#v", info)
	}

	if _, err := h.RunScript("test", `native.find("nope")`); err == nil {
		t.Error("expected error for unknown symbol")
	}
}

func TestNativeIsLoadedDynamicLookup(t *testing.T) {
	h := newTestHost(t)

	// Exported symbols resolve while dynamic lookup is enabled (the default).
	v, err := h.RunScript("test", `native.isLoaded("hidden")`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if v.Export() != true {
		t.Error("isLoaded(hidden) = false with dynamic lookup enabled")
	}

	// With the loader policy disabled, only registered routines resolve.
	h = newTestHost(t, dynload.WithDynamicLookup(false))
	v, err = h.RunScript("test", `native.isLoaded("hidden")`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if v.Export() != false {
		t.Error("isLoaded(hidden) = true with dynamic lookup disabled")
	}
	v, err = h.RunScript("test", `native.isLoaded("add")`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if v.Export() != true {
		t.Error("isLoaded(add) = false for a registered routine")
	}
}

func TestNativeLoadAndLibs(t *testing.T) {
	ld := dynload.NewLoader()
	h := New(ld)

	v, err := h.RunScript("test", `native.load("hosttest").name`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if v.Export() != "hosttest" {
		t.Errorf("load().name = %v, want hosttest", v.Export())
	}

	v, err = h.RunScript("test", `native.libs()`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	libs, ok := v.Export().([]string)
	if !ok || len(libs) != 1 || libs[0] != "hosttest" {
		t.Errorf("libs() = %#v, want [hosttest]", v.Export())
	}

	if _, err := h.RunScript("test", `native.load("missing")`); err == nil ||
		!strings.Contains(err.Error(), "unknown extension") {
		t.Errorf("load(missing) = %v, want unknown extension", err)
	}
}

func TestNativeUnload(t *testing.T) {
	h := newTestHost(t)

	if _, err := h.RunScript("test", `native.unload("hosttest")`); err != nil {
		t.Fatalf("unload: %v", err)
	}
	v, err := h.RunScript("test", `native.isLoaded("add")`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if v.Export() != false {
		t.Error("isLoaded(add) = true after unload")
	}
	if _, err := h.RunScript("test", `native.unload("hosttest")`); err == nil {
		t.Error("expected error unloading twice")
	}
}

func TestRoutineErrorPropagates(t *testing.T) {
	ld := dynload.NewLoader()
	if _, err := ld.Load("hosttest-err"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	h := New(ld)

	if _, err := h.RunScript("test", `native.call("fail")`); err == nil {
		t.Error("expected routine error to surface as a script error")
	}
}

func TestRunFile(t *testing.T) {
	h := newTestHost(t)
	if _, err := h.RunFile(t.TempDir() + "/missing.js"); err == nil {
		t.Error("expected error for missing script file")
	}
}
