// Command clibparse extracts type, constant, function and macro
// definitions from C header files and prints them as YAML.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clibparse/clibparse/pkg/cache"
	"github.com/clibparse/clibparse/pkg/cparse"
)

var version = "0.1.0"

// CLI flags
var (
	defineFlags  []string
	replaceFlags []string
	cachePath    string
	findPattern  string
	findText     string
	dumpPP       bool
	showResidue  bool
	verbose      bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clibparse: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clibparse [headers...]",
		Short: "Extract definitions from C header files",
		Long: `clibparse parses C header files without a compiler and collects the
typedefs, structs, unions, enums, functions, variables and macros they
define. Results are printed as YAML, one section per source unit, and
can be cached so unchanged headers are never parsed twice.`,
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cparse.Options{
				CachePath: cachePath,
				Macros:    parseDefines(defineFlags),
			}
			repl, err := parseReplaceFlags(replaceFlags)
			if err != nil {
				return err
			}
			opts.Replace = repl
			if verbose {
				opts.Logger = log.New(errOut, "clibparse: ", 0)
			}

			p, err := cparse.New(opts)
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := p.LoadFile(path); err != nil {
					return err
				}
			}
			if err := p.ProcessAll(); err != nil {
				return err
			}

			if findPattern != "" {
				return doFind(p, out)
			}
			if findText != "" {
				return doFindText(p, out)
			}
			if dumpPP {
				return doDumpPP(p, args, out)
			}
			if showResidue {
				return doResidue(p, args, out)
			}
			return dumpDefs(p, out)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVar(&replaceFlags, "replace", nil, "Rewrite source text before parsing (PATTERN=REPL, regexp)")
	rootCmd.Flags().StringVar(&cachePath, "cache", "", "Cache parse results in this file")
	rootCmd.Flags().StringVar(&findPattern, "find", "", "Print definitions whose name matches the pattern")
	rootCmd.Flags().StringVar(&findText, "find-text", "", "Print preprocessed source lines containing the text")
	rootCmd.Flags().BoolVarP(&dumpPP, "preprocess", "E", false, "Print preprocessed source instead of definitions")
	rootCmd.Flags().BoolVar(&showResidue, "residue", false, "Print statements the parser had to skip")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log parse diagnostics to stderr")

	return rootCmd
}

// parseDefines splits -D flags into macro seeds (NAME or NAME=VALUE).
func parseDefines(flags []string) map[string]string {
	if len(flags) == 0 {
		return nil
	}
	m := make(map[string]string, len(flags))
	for _, d := range flags {
		if idx := strings.Index(d, "="); idx >= 0 {
			m[d[:idx]] = d[idx+1:]
		} else {
			m[d] = ""
		}
	}
	return m
}

func parseReplaceFlags(flags []string) ([]cache.ReplaceRule, error) {
	var rules []cache.ReplaceRule
	for _, r := range flags {
		idx := strings.Index(r, "=")
		if idx < 0 {
			return nil, fmt.Errorf("bad --replace %q: want PATTERN=REPL", r)
		}
		rules = append(rules, cache.ReplaceRule{Pattern: r[:idx], Repl: r[idx+1:]})
	}
	return rules, nil
}

func doFind(p *cparse.Parser, out io.Writer) error {
	matches, err := p.Find(findPattern)
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Fprintf(out, "%s\t%s\t%s\n", m.Unit, m.Category, m.Name)
	}
	return nil
}

func doFindText(p *cparse.Parser, out io.Writer) error {
	for _, m := range p.FindText(findText) {
		fmt.Fprintf(out, "%s:%d: %s\n", m.Unit, m.Line, m.Text)
	}
	return nil
}

func doDumpPP(p *cparse.Parser, paths []string, out io.Writer) error {
	if p.FromCache() {
		return fmt.Errorf("results were served from cache; no preprocessed text available")
	}
	for _, path := range paths {
		unit := unitName(path)
		text, ok := p.PreprocessedText(unit)
		if !ok {
			continue
		}
		if len(paths) > 1 {
			fmt.Fprintf(out, "==> %s <==\n", unit)
		}
		fmt.Fprintln(out, text)
	}
	return nil
}

func doResidue(p *cparse.Parser, paths []string, out io.Writer) error {
	for _, path := range paths {
		unit := unitName(path)
		for _, r := range p.Residue(unit) {
			fmt.Fprintf(out, "%s: %s\n", unit, r)
		}
	}
	return nil
}

// dumpDefs prints every per-unit definition set as one YAML document.
func dumpDefs(p *cparse.Parser, out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(p.Registry().Units)
}

func unitName(path string) string {
	return filepath.Base(path)
}
