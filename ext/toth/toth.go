// Package toth registers the toth native extension with the host's
// dynamic-loading subsystem. The routine table is currently empty: the
// extension exposes no callable routines, and its load hook disables dynamic
// symbol lookup so nothing else resolves by name either.
package toth

import (
	"github.com/tothlab/toth/internal/dynload"
)

// callEntries lists the routines callable from the host. The zero descriptor
// terminates the table.
var callEntries = []dynload.RoutineDef{
	{},
}

// Init is the load hook the loader invokes once when the library is loaded.
// It hands the routine table to the host and restricts name resolution to
// exactly the registered set.
func Init(lib *dynload.Library) {
	if err := dynload.RegisterRoutines(lib, nil, callEntries, nil); err != nil {
		panic(err)
	}
	dynload.UseDynamicSymbols(lib, false)
}

func init() {
	dynload.RegisterExtension(dynload.Extension{
		Name: "toth",
		Init: Init,
	})
}
