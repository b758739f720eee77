// Package host runs scripts against the dynamic-loading subsystem. It embeds
// a goja runtime and exposes loaded native routines to script code through a
// single `native` object; resolution goes through each library's registration
// table and lookup policy, never through reflection on Go values.
package host

import (
	"fmt"
	"os"
	"strings"

	"github.com/dop251/goja"

	"github.com/tothlab/toth/internal/dynload"
	glog "github.com/tothlab/toth/internal/log"
)

// Host is a script runtime bound to one loader.
type Host struct {
	vm     *goja.Runtime
	loader *dynload.Loader
	log    *glog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithLogger overrides the host logger.
func WithLogger(l *glog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// New creates a host bound to the given loader and installs the script API.
func New(loader *dynload.Loader, opts ...Option) *Host {
	h := &Host{
		vm:     goja.New(),
		loader: loader,
		log:    glog.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.bind()
	return h
}

// RunScript evaluates script source under the given name.
func (h *Host) RunScript(name, src string) (goja.Value, error) {
	v, err := h.vm.RunScript(name, src)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return v, nil
}

// RunFile evaluates a script file.
func (h *Host) RunFile(path string) (goja.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return h.RunScript(path, string(src))
}

func (h *Host) bind() {
	native := h.vm.NewObject()
	_ = native.Set("load", h.nativeLoad)
	_ = native.Set("unload", h.nativeUnload)
	_ = native.Set("call", h.nativeCall)
	_ = native.Set("find", h.nativeFind)
	_ = native.Set("isLoaded", h.nativeIsLoaded)
	_ = native.Set("libs", h.nativeLibs)
	_ = h.vm.Set("native", native)
	_ = h.vm.Set("print", h.scriptPrint)
}

// nativeLoad loads an extension and returns its handle info.
func (h *Host) nativeLoad(call goja.FunctionCall) goja.Value {
	name := h.stringArg(call, 0, "native.load")
	lib, err := h.loader.Load(name)
	if err != nil {
		panic(h.vm.NewGoError(err))
	}
	return h.vm.ToValue(map[string]any{
		"name": lib.Name(),
		"id":   lib.ID().String(),
	})
}

func (h *Host) nativeUnload(call goja.FunctionCall) goja.Value {
	name := h.stringArg(call, 0, "native.unload")
	if err := h.loader.Unload(name); err != nil {
		panic(h.vm.NewGoError(err))
	}
	return goja.Undefined()
}

// nativeCall resolves a routine by name across loaded libraries and invokes
// it under its registered calling convention.
func (h *Host) nativeCall(call goja.FunctionCall) goja.Value {
	name := h.stringArg(call, 0, "native.call")
	sym, err := h.loader.FindSymbol(name, "")
	if err != nil {
		panic(h.vm.NewGoError(err))
	}

	args := make([]any, 0, len(call.Arguments)-1)
	for _, v := range call.Arguments[1:] {
		args = append(args, v.Export())
	}

	h.log.Debug("call", glog.Fn(name), glog.Lib(sym.Library.Name()))
	res, err := sym.Call(args...)
	if err != nil {
		panic(h.vm.NewGoError(err))
	}
	return h.vm.ToValue(res)
}

// nativeFind resolves a routine by name, optionally within one library, and
// returns its descriptor fields.
func (h *Host) nativeFind(call goja.FunctionCall) goja.Value {
	name := h.stringArg(call, 0, "native.find")
	libName := ""
	if len(call.Arguments) > 1 {
		libName = call.Arguments[1].String()
	}
	sym, err := h.loader.FindSymbol(name, libName)
	if err != nil {
		panic(h.vm.NewGoError(err))
	}
	return h.vm.ToValue(map[string]any{
		"name":    sym.Name,
		"kind":    sym.Kind.String(),
		"numArgs": sym.NumArgs,
		"library": sym.Library.Name(),
	})
}

func (h *Host) nativeIsLoaded(call goja.FunctionCall) goja.Value {
	name := h.stringArg(call, 0, "native.isLoaded")
	_, err := h.loader.FindSymbol(name, "")
	return h.vm.ToValue(err == nil)
}

func (h *Host) nativeLibs(goja.FunctionCall) goja.Value {
	libs := h.loader.Libraries()
	names := make([]string, 0, len(libs))
	for _, lib := range libs {
		names = append(names, lib.Name())
	}
	return h.vm.ToValue(names)
}

func (h *Host) scriptPrint(call goja.FunctionCall) goja.Value {
	parts := make([]string, 0, len(call.Arguments))
	for _, v := range call.Arguments {
		parts = append(parts, v.String())
	}
	fmt.Println(strings.Join(parts, " "))
	return goja.Undefined()
}

func (h *Host) stringArg(call goja.FunctionCall, i int, fn string) string {
	if len(call.Arguments) <= i || goja.IsUndefined(call.Arguments[i]) {
		panic(h.vm.NewTypeError("%s: name required", fn))
	}
	return call.Arguments[i].String()
}
