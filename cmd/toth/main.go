package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/tothlab/toth/ext/toth"
	"github.com/tothlab/toth/internal/config"
	"github.com/tothlab/toth/internal/dynload"
	"github.com/tothlab/toth/internal/host"
	glog "github.com/tothlab/toth/internal/log"
	"github.com/tothlab/toth/internal/ui/colorize"
)

var (
	verbose    bool
	configPath string
	preload    []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "toth [script.js]",
		Short: "Run scripts against registered native extensions",
		Long: `Toth embeds a script runtime over a dynamic-loading subsystem for native
extensions. Extensions linked into the binary register routine tables through
a load hook; scripts reach registered routines through the native object.

Examples:
  toth script.js                 # Run a script with configured extensions
  toth script.js -e toth         # Preload the toth extension
  toth info                      # Show extensions and registered routines`,
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE:                  runScript,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.Flags().StringArrayVarP(&preload, "ext", "e", nil, "extension to load before the script (repeatable)")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show registered extensions and their routines",
		Args:  cobra.NoArgs,
		RunE:  showInfo,
	}
	rootCmd.AddCommand(infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLoader() (*dynload.Loader, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	glog.Init(verbose || cfg.Verbose)

	ld := dynload.NewLoader(cfg.LoaderOptions()...)
	for _, name := range append(cfg.Preload, preload...) {
		if _, err := ld.Load(name); err != nil {
			return nil, err
		}
	}
	return ld, nil
}

func runScript(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	ld, err := newLoader()
	if err != nil {
		return err
	}
	h := host.New(ld, host.WithLogger(glog.L))
	if _, err := h.RunFile(args[0]); err != nil {
		return err
	}
	return nil
}

func showInfo(cmd *cobra.Command, args []string) error {
	glog.Init(verbose)

	names := dynload.Extensions()
	if len(names) == 0 {
		fmt.Println("No extensions registered")
		return nil
	}

	// Load each extension into a scratch loader so its hook has run and the
	// tables reflect what scripts would actually see.
	ld := dynload.NewLoader()

	fmt.Printf("%s toth ─ native extension registry\n", colorize.Header("▶"))
	for _, name := range names {
		lib, err := ld.Load(name)
		if err != nil {
			fmt.Printf("  %s  %s\n", colorize.Name(name), colorize.Error(err.Error()))
			continue
		}

		policy := "dynamic lookup"
		if !lib.DynamicLookup() {
			policy = "registered only"
		}
		fmt.Printf("  %s  %s %s  %s %s\n",
			colorize.Name(name),
			colorize.Detail("routines:"), colorize.Value(fmt.Sprintf("%d", lib.RoutineCount())),
			colorize.Detail("resolution:"), colorize.Value(policy))

		for _, kind := range []dynload.RoutineKind{dynload.CKind, dynload.CallKind, dynload.ExternalKind} {
			for _, sym := range lib.Routines(kind) {
				arity := fmt.Sprintf("%d", sym.NumArgs)
				if sym.NumArgs == dynload.NumArgsAny {
					arity = "variadic"
				}
				fmt.Printf("    %s %s %s\n",
					colorize.Border("·"),
					colorize.Name(sym.Name),
					colorize.Detail(fmt.Sprintf("(%s, %s args)", kind, arity)))
			}
		}
	}
	return nil
}
