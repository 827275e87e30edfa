// Command symresolve is a thin demonstration front end over the
// resolver library: it loads a single Breakpad symbol file into a
// store.Store and resolves addresses given on the command line or read
// from stdin, one hex address per line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mu-L/breakpad/internal/config"
	"github.com/Mu-L/breakpad/internal/symlog"
)

// cfg is the effective configuration for this invocation: internal/config's
// Default(), overridden by --config's YAML document if given, overridden in
// turn by any explicit command-line flag.
var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "symresolve",
	Short: "Resolve addresses against Breakpad symbol files",
	Long:  `symresolve loads .sym files and resolves instruction addresses to function, file, line, and inline chains.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if cmd.Flags().Changed("verbosity") {
			v, _ := cmd.Flags().GetInt("verbosity")
			cfg.Verbosity = v
		}
		if cmd.Flags().Changed("color") {
			c, _ := cmd.Flags().GetString("color")
			cfg.Color = c
		}
		symlog.SetVerbosity(cfg.Verbosity)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "path to a symresolve YAML config file")
	rootCmd.PersistentFlags().IntP("verbosity", "v", 0, "resolver log verbosity")
	rootCmd.PersistentFlags().String("color", "auto", `ANSI color mode: "auto", "on", or "off"`)
	rootCmd.AddCommand(resolveCmd)

	// Remember recent warnings/errors so a failed load or resolve can show
	// the diagnostics that led up to it, not just the final error.
	symlog.EnableRecentLog(16)

	if err := rootCmd.Execute(); err != nil {
		symlog.Errorf("%v", err)
		if recent := symlog.RecentLog(); recent != "" {
			fmt.Fprint(os.Stderr, recent)
		}
		os.Exit(1)
	}
}
