// Package dynload implements the host's dynamic-loading subsystem: library
// handles, routine registration tables, and symbol-resolution policy.
//
// Extensions are linked into the binary and self-register via init(). Loading
// an extension creates a Library handle and invokes the extension's load hook
// exactly once. The hook registers a sentinel-terminated routine table and can
// restrict name resolution to exactly the registered set.
package dynload

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	glog "github.com/tothlab/toth/internal/log"
)

// NativeFunc is the untyped native callable advertised to the host.
// The host marshals script values to and from these arguments.
type NativeFunc func(args ...any) (any, error)

// RoutineKind selects the calling convention a routine is registered under.
type RoutineKind int

const (
	// CKind routines mutate their arguments; a call returns the argument list.
	CKind RoutineKind = iota
	// CallKind routines take values and return a value.
	CallKind
	// ExternalKind routines receive the whole argument list as a single value.
	ExternalKind
)

func (k RoutineKind) String() string {
	switch k {
	case CKind:
		return "c"
	case CallKind:
		return "call"
	case ExternalKind:
		return "external"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kinds in lookup priority order.
var kinds = []RoutineKind{CallKind, CKind, ExternalKind}

// NumArgsAny marks a routine as variadic: any argument count is accepted.
const NumArgsAny = -1

// RoutineDef is one entry in a registration table: an exported name, the
// native callable, and the declared parameter count. The zero value is the
// sentinel that terminates a table.
type RoutineDef struct {
	Name    string
	Fn      NativeFunc
	NumArgs int
}

func (d RoutineDef) isSentinel() bool {
	return d.Name == "" && d.Fn == nil && d.NumArgs == 0
}

// Symbol is a resolved routine: what FindSymbol hands back to callers.
type Symbol struct {
	Name    string
	Kind    RoutineKind
	NumArgs int
	Fn      NativeFunc
	Library *Library
}

// Call invokes the routine under its kind's calling convention, enforcing the
// declared arity first.
func (s *Symbol) Call(args ...any) (any, error) {
	if s.NumArgs != NumArgsAny && len(args) != s.NumArgs {
		return nil, fmt.Errorf("%q expects %d arguments, got %d", s.Name, s.NumArgs, len(args))
	}
	switch s.Kind {
	case CKind:
		if _, err := s.Fn(args...); err != nil {
			return nil, err
		}
		return args, nil
	case ExternalKind:
		return s.Fn(args)
	default:
		return s.Fn(args...)
	}
}

var (
	// ErrSymbolNotFound is returned when a name resolves to no routine under
	// the library's current lookup policy.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrUnknownExtension is returned by Load for names with no registered
	// extension.
	ErrUnknownExtension = errors.New("unknown extension")
	// ErrTooManyLibraries is returned when the loader's library cap is hit.
	ErrTooManyLibraries = errors.New("too many loaded libraries")
	// ErrNotLoaded is returned for operations on a library that is not loaded.
	ErrNotLoaded = errors.New("library not loaded")
)

// Library is the handle the loader passes to an extension's load hook. The
// hook borrows it for the duration of the call; the loader owns it for the
// lifetime of the load.
type Library struct {
	id   uuid.UUID
	name string

	mu            sync.RWMutex
	routines      map[RoutineKind]map[string]*Symbol
	order         map[RoutineKind][]*Symbol
	dynamicLookup bool
	forceSymbols  bool
	exports       map[string]NativeFunc
}

// NewLibrary creates a handle for the named library. Dynamic lookup starts
// enabled, matching the host default; extensions opt out via
// UseDynamicSymbols.
func NewLibrary(name string) *Library {
	return &Library{
		id:            uuid.New(),
		name:          name,
		routines:      make(map[RoutineKind]map[string]*Symbol),
		order:         make(map[RoutineKind][]*Symbol),
		dynamicLookup: true,
	}
}

// ID returns the handle's unique identifier.
func (l *Library) ID() uuid.UUID { return l.id }

// Name returns the library name.
func (l *Library) Name() string { return l.name }

// DynamicLookup reports whether unregistered names may resolve against the
// library's exported-symbol table.
func (l *Library) DynamicLookup() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dynamicLookup
}

// SymbolsForced reports whether name-based lookup is refused outright.
func (l *Library) SymbolsForced() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.forceSymbols
}

// Routines returns the registered routines of one kind, in registration order.
func (l *Library) Routines(kind RoutineKind) []*Symbol {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Symbol, len(l.order[kind]))
	copy(out, l.order[kind])
	return out
}

// RoutineCount returns the total number of registered routines across kinds.
func (l *Library) RoutineCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, m := range l.routines {
		n += len(m)
	}
	return n
}

// FindSymbol resolves a name against the library: registered routines first,
// then the exported-symbol table when dynamic lookup is allowed. Exported
// symbols resolve as variadic ExternalKind routines.
func (l *Library) FindSymbol(name string) (*Symbol, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.forceSymbols {
		return nil, fmt.Errorf("%q in %s: name lookup disabled: %w", name, l.name, ErrSymbolNotFound)
	}

	for _, kind := range kinds {
		if sym, ok := l.routines[kind][name]; ok {
			if glog.L != nil {
				glog.L.SymbolLookup(l.name, name, "registered")
			}
			return sym, nil
		}
	}

	if l.dynamicLookup {
		if fn, ok := l.exports[name]; ok {
			if glog.L != nil {
				glog.L.SymbolLookup(l.name, name, "dynamic")
			}
			return &Symbol{
				Name:    name,
				Kind:    ExternalKind,
				NumArgs: NumArgsAny,
				Fn:      fn,
				Library: l,
			}, nil
		}
	}

	return nil, fmt.Errorf("%q in %s: %w", name, l.name, ErrSymbolNotFound)
}

// ValidateTable checks that a routine table is well formed: terminated by
// exactly one sentinel (the zero descriptor), with every preceding entry
// complete. A nil table means "no routines" and is valid.
func ValidateTable(table []RoutineDef) error {
	if table == nil {
		return nil
	}
	if len(table) == 0 {
		return errors.New("missing sentinel")
	}
	last := len(table) - 1
	if !table[last].isSentinel() {
		return errors.New("not sentinel-terminated")
	}
	seen := make(map[string]bool, last)
	for i, def := range table[:last] {
		switch {
		case def.isSentinel():
			return fmt.Errorf("sentinel at index %d before end of table", i)
		case def.Name == "":
			return fmt.Errorf("entry %d has empty name", i)
		case def.Fn == nil:
			return fmt.Errorf("routine %q has nil function", def.Name)
		case def.NumArgs < NumArgsAny:
			return fmt.Errorf("routine %q has invalid arg count %d", def.Name, def.NumArgs)
		case seen[def.Name]:
			return fmt.Errorf("routine %q appears twice", def.Name)
		}
		seen[def.Name] = true
	}
	return nil
}

// RegisterRoutines installs routine tables on a library handle, one table per
// calling convention; unused tables are nil. Each table must be terminated by
// the zero descriptor, which marks the end and is not itself registered. The
// whole call is rejected, installing nothing, if any table is malformed or
// collides with an already-registered name.
func RegisterRoutines(lib *Library, cRoutines, callRoutines, externalRoutines []RoutineDef) error {
	if lib == nil {
		return errors.New("nil library handle")
	}

	tables := []struct {
		kind RoutineKind
		defs []RoutineDef
	}{
		{CKind, cRoutines},
		{CallKind, callRoutines},
		{ExternalKind, externalRoutines},
	}

	for _, t := range tables {
		if err := ValidateTable(t.defs); err != nil {
			return fmt.Errorf("%s table: %w", t.kind, err)
		}
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	for _, t := range tables {
		if t.defs == nil {
			continue
		}
		for _, def := range t.defs[:len(t.defs)-1] {
			if _, dup := lib.routines[t.kind][def.Name]; dup {
				return fmt.Errorf("%s routine %q already registered in %s", t.kind, def.Name, lib.name)
			}
		}
	}

	for _, t := range tables {
		if t.defs == nil {
			continue
		}
		if lib.routines[t.kind] == nil {
			lib.routines[t.kind] = make(map[string]*Symbol)
		}
		for _, def := range t.defs[:len(t.defs)-1] {
			sym := &Symbol{
				Name:    def.Name,
				Kind:    t.kind,
				NumArgs: def.NumArgs,
				Fn:      def.Fn,
				Library: lib,
			}
			lib.routines[t.kind][def.Name] = sym
			lib.order[t.kind] = append(lib.order[t.kind], sym)
			if glog.L != nil {
				glog.L.RoutineRegister(lib.name, t.kind.String(), def.Name, def.NumArgs)
			}
		}
	}

	return nil
}

// UseDynamicSymbols sets whether unregistered names may resolve against the
// library's exported-symbol table. Extensions call this with false from their
// load hook to make exactly the registered routines callable.
func UseDynamicSymbols(lib *Library, allow bool) {
	lib.mu.Lock()
	lib.dynamicLookup = allow
	lib.mu.Unlock()
	if glog.L != nil {
		glog.L.Policy(lib.name, "dynamic_lookup", allow)
	}
}

// ForceSymbols, when set, refuses name-based lookup entirely; callers must
// hold Symbol values obtained beforehand.
func ForceSymbols(lib *Library, force bool) {
	lib.mu.Lock()
	lib.forceSymbols = force
	lib.mu.Unlock()
	if glog.L != nil {
		glog.L.Policy(lib.name, "force_symbols", force)
	}
}
