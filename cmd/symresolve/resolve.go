package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Mu-L/breakpad/internal/symlog"
	"github.com/Mu-L/breakpad/module"
	"github.com/Mu-L/breakpad/store"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <sym-file> [address ...]",
	Short: "Resolve addresses against a single symbol file",
	Long:  `Resolve loads <sym-file> and resolves each hex address given as an argument, or read one per line from stdin if none are given.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().Bool("json", false, "print one JSON object per resolved address")
}

func runResolve(cmd *cobra.Command, args []string) error {
	applyColorMode(cfg.Color)

	symPath, err := resolveSymPath(args[0])
	if err != nil {
		return fmt.Errorf("symresolve: %w", err)
	}
	addrs := args[1:]

	st := store.New()
	if err := st.Load(symPath, symPath); err != nil {
		return fmt.Errorf("symresolve: %w", err)
	}
	mod, _ := st.Find(symPath)
	if mod.IsCorrupt() {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: %s loaded with diagnostics\n", symPath)
		if recent := symlog.RecentLog(); recent != "" {
			fmt.Fprint(cmd.ErrOrStderr(), recent)
		}
	}

	asJSON := cfg.Format == "json"
	if cmd.Flags().Changed("json") {
		asJSON, _ = cmd.Flags().GetBool("json")
	}
	out := cmd.OutOrStdout()

	if len(addrs) == 0 {
		return resolveStream(mod, cmd.InOrStdin(), out, asJSON)
	}
	for _, a := range addrs {
		ip, err := parseAddr(a)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "symresolve: skipping %q: %v\n", a, err)
			continue
		}
		printResolved(mod, ip, out, asJSON)
	}
	return nil
}

// resolveSymPath returns name unchanged if it names a file directly;
// otherwise it is treated as a bare module id and searched for under each
// of cfg.SymbolDirs as "<dir>/<id>.sym", in order.
func resolveSymPath(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	for _, dir := range cfg.SymbolDirs {
		candidate := filepath.Join(dir, name+".sym")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if len(cfg.SymbolDirs) == 0 {
		return "", fmt.Errorf("open %s: no such file", name)
	}
	return "", fmt.Errorf("%s: not found directly or as <id>.sym under any of %v", name, cfg.SymbolDirs)
}

func resolveStream(mod *module.Module, in io.Reader, out io.Writer, asJSON bool) error {
	s := bufio.NewScanner(in)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		ip, err := parseAddr(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "symresolve: skipping %q: %v\n", line, err)
			continue
		}
		printResolved(mod, ip, out, asJSON)
	}
	return s.Err()
}

// applyColorMode forces fatih/color's output decision when the config or
// --color flag says so; "auto" leaves color's own isatty detection in
// place.
func applyColorMode(mode string) {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	}
}

func parseAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

func printResolved(mod *module.Module, ip uint64, out io.Writer, asJSON bool) {
	frame, inlines := mod.FillSourceLineInfo(ip)

	if asJSON {
		printResolvedJSON(ip, frame, inlines, out)
		return
	}

	fn := color.New(color.FgGreen, color.Bold)
	loc := color.New(color.FgCyan)

	if !frame.HasFunction {
		fmt.Fprintf(out, "0x%x  ?? \n", ip)
		return
	}
	fmt.Fprintf(out, "0x%x  %s", ip, fn.Sprint(frame.Function))
	if frame.HasLine {
		fmt.Fprintf(out, " at %s", loc.Sprintf("%s:%d", frame.File, frame.Line))
	}
	fmt.Fprintln(out)

	for _, inl := range inlines {
		fmt.Fprintf(out, "    [inline] %s at %s\n", fn.Sprint(inl.Function), loc.Sprintf("%s:%d", inl.File, inl.Line))
	}
}

func printResolvedJSON(ip uint64, frame module.Frame, inlines []module.InlineFrame, out io.Writer) {
	fmt.Fprintf(out, `{"address":"0x%x","function":%q,"file":%q,"line":%d,"trust":%q`, ip, frame.Function, frame.File, frame.Line, trustOf(frame))
	if len(inlines) > 0 {
		fmt.Fprint(out, `,"inlines":[`)
		for i, inl := range inlines {
			if i > 0 {
				fmt.Fprint(out, ",")
			}
			fmt.Fprintf(out, `{"function":%q,"file":%q,"line":%d,"trust":%q}`, inl.Function, inl.File, inl.Line, inl.Trust)
		}
		fmt.Fprint(out, `]`)
	}
	fmt.Fprintln(out, "}")
}

func trustOf(frame module.Frame) string {
	if frame.HasLine {
		return "symbol"
	}
	if frame.HasFunction {
		return "public"
	}
	return "none"
}
