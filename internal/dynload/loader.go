package dynload

import (
	"fmt"
	"sort"
	"sync"

	glog "github.com/tothlab/toth/internal/log"
)

// Extension describes a loadable native library: its name, the load hook the
// loader invokes once per load, and the exported-symbol table that backs
// dynamic lookup. The hook signature is fixed by the extension ABI: it takes
// the library handle and returns nothing.
type Extension struct {
	Name    string
	Init    func(*Library)
	Exports map[string]NativeFunc
}

var (
	extMu      sync.RWMutex
	extensions = make(map[string]Extension)
)

// RegisterExtension records an extension for later loading. It is meant to be
// called from an extension package's init function; registering a nil hook or
// a duplicate name panics, as with driver registries.
func RegisterExtension(ext Extension) {
	if ext.Name == "" {
		panic("dynload: RegisterExtension with empty name")
	}
	if ext.Init == nil {
		panic("dynload: RegisterExtension " + ext.Name + " with nil init hook")
	}
	extMu.Lock()
	defer extMu.Unlock()
	if _, dup := extensions[ext.Name]; dup {
		panic("dynload: RegisterExtension called twice for " + ext.Name)
	}
	extensions[ext.Name] = ext
}

// Extensions returns the names of all registered extensions, sorted.
func Extensions() []string {
	extMu.RLock()
	defer extMu.RUnlock()
	names := make([]string, 0, len(extensions))
	for name := range extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMaxLibraries caps the number of concurrently loaded libraries.
const DefaultMaxLibraries = 100

// Loader owns the set of loaded libraries and drives load hooks.
type Loader struct {
	mu            sync.Mutex
	libs          map[string]*Library
	order         []*Library
	max           int
	dynamicLookup bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxLibraries overrides the loaded-library cap.
func WithMaxLibraries(n int) LoaderOption {
	return func(ld *Loader) { ld.max = n }
}

// WithDynamicLookup sets the default lookup policy for new handles. Load
// hooks can still override it per library.
func WithDynamicLookup(allow bool) LoaderOption {
	return func(ld *Loader) { ld.dynamicLookup = allow }
}

// NewLoader creates a loader with no libraries loaded.
func NewLoader(opts ...LoaderOption) *Loader {
	ld := &Loader{
		libs:          make(map[string]*Library),
		max:           DefaultMaxLibraries,
		dynamicLookup: true,
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load creates a handle for the named extension and invokes its load hook.
// The hook runs exactly once per load: loading an already-loaded extension
// returns the existing handle untouched. A hook panic aborts the load and is
// returned as an error.
func (ld *Loader) Load(name string) (*Library, error) {
	ld.mu.Lock()
	defer ld.mu.Unlock()

	if lib, ok := ld.libs[name]; ok {
		return lib, nil
	}

	extMu.RLock()
	ext, ok := extensions[name]
	extMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownExtension)
	}

	if len(ld.libs) >= ld.max {
		return nil, fmt.Errorf("limit %d reached loading %q: %w", ld.max, name, ErrTooManyLibraries)
	}

	lib := NewLibrary(name)
	lib.exports = ext.Exports
	lib.dynamicLookup = ld.dynamicLookup

	if err := runHook(ext.Init, lib); err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}

	ld.libs[name] = lib
	ld.order = append(ld.order, lib)
	if glog.L != nil {
		glog.L.LibraryLoad(name, lib.id.String())
	}
	return lib, nil
}

// runHook invokes the load hook, converting a panic into an error. The ABI
// gives hooks no error return, so a hook that cannot register aborts the load
// by panicking.
func runHook(hook func(*Library), lib *Library) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("init hook: %w", e)
			} else {
				err = fmt.Errorf("init hook: %v", r)
			}
		}
	}()
	hook(lib)
	return nil
}

// Unload removes a loaded library and everything it registered.
func (ld *Loader) Unload(name string) error {
	ld.mu.Lock()
	defer ld.mu.Unlock()

	if _, ok := ld.libs[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotLoaded)
	}
	delete(ld.libs, name)
	for i, lib := range ld.order {
		if lib.name == name {
			ld.order = append(ld.order[:i], ld.order[i+1:]...)
			break
		}
	}
	if glog.L != nil {
		glog.L.LibraryUnload(name)
	}
	return nil
}

// Library returns the handle for a loaded library.
func (ld *Loader) Library(name string) (*Library, bool) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	lib, ok := ld.libs[name]
	return lib, ok
}

// Libraries returns the loaded libraries in load order.
func (ld *Loader) Libraries() []*Library {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	out := make([]*Library, len(ld.order))
	copy(out, ld.order)
	return out
}

// FindSymbol resolves a name against one library, or against all loaded
// libraries in load order when libName is empty.
func (ld *Loader) FindSymbol(name, libName string) (*Symbol, error) {
	if libName != "" {
		lib, ok := ld.Library(libName)
		if !ok {
			return nil, fmt.Errorf("%q: %w", libName, ErrNotLoaded)
		}
		return lib.FindSymbol(name)
	}
	for _, lib := range ld.Libraries() {
		if sym, err := lib.FindSymbol(name); err == nil {
			return sym, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrSymbolNotFound)
}
