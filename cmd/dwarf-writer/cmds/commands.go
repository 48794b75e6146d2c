// Package cmds implements the dwarf-writer command line.
package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/immunant/dwarf-writer/pkg/config"
	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
	"github.com/immunant/dwarf-writer/pkg/elffile"
	"github.com/immunant/dwarf-writer/pkg/facts"
	"github.com/immunant/dwarf-writer/pkg/facts/anvill"
	"github.com/immunant/dwarf-writer/pkg/facts/ghidra"
	"github.com/immunant/dwarf-writer/pkg/facts/strbsi"
	"github.com/immunant/dwarf-writer/pkg/logflags"
	"github.com/immunant/dwarf-writer/pkg/merge"
	"github.com/immunant/dwarf-writer/pkg/splice"
	"github.com/immunant/dwarf-writer/pkg/version"
)

var (
	// anvillPaths, bsiPaths and ghidraPaths are the fact sources, each
	// flag repeatable.
	anvillPaths []string
	bsiPaths    []string
	ghidraPaths []string

	// sectionDir, when set, selects section-file output instead of
	// modifying a binary.
	sectionDir string

	// spliceTool is the objcopy-compatible binary used for in-place
	// output.
	spliceTool string

	// acceptLowConfidence admits STR BSI records below full
	// confidence.
	acceptLowConfidence bool

	omitFunctions bool
	omitVariables bool
	omitSymbols   bool

	logOutput string
	logDest   string
	verbose   bool

	conf *config.Config
)

// New returns the root command.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "dwarf-writer <input> [output]",
		Short: "dwarf-writer merges disassembly facts into a binary's DWARF debug sections.",
		Long: `dwarf-writer reads function and variable facts produced by external
disassembly analyses (Anvill, STR BSI, Ghidra) and merges them into the
.debug_* sections and the symbol table of an ELF binary. Output is
written in place, to a second path, or as bare section files.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCmd(args)
		},
	}

	configureFlags(rootCommand.Flags())

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dwarf-writer %s\n", version.DwarfWriterVersion)
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func configureFlags(fs *pflag.FlagSet) {
	fs.SortFlags = false
	fs.StringArrayVarP(&anvillPaths, "anvill", "a", nil, "Anvill JSON input path.")
	fs.StringArrayVarP(&bsiPaths, "bsi", "b", nil, "STR BSI JSON input path.")
	fs.StringArrayVarP(&ghidraPaths, "ghidra", "g", nil, "Ghidra CSV input path.")
	fs.StringVarP(&sectionDir, "section-dir", "s", "", "Write updated sections to this directory instead of a binary.")
	fs.StringVarP(&spliceTool, "objcopy", "x", "", "Path to the objcopy-compatible splice tool.")
	fs.BoolVarP(&acceptLowConfidence, "unsound", "u", false, "Accept STR BSI records below full confidence.")
	fs.BoolVar(&omitFunctions, "omit-functions", false, "Do not create new subprogram entries.")
	fs.BoolVar(&omitVariables, "omit-variables", false, "Do not create new variable entries.")
	fs.BoolVar(&omitSymbols, "omit-symbols", false, "Do not touch the symbol table.")
	fs.StringVarP(&logOutput, "log-output", "l", "", "Comma-separated list of components to log (merge,dwarf,decoder,elf,splice).")
	fs.StringVar(&logDest, "log-dest", "", "Write logs to this file instead of stderr.")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Log everything.")
}

func writeCmd(args []string) error {
	var err error
	conf, err = config.LoadConfig()
	if err != nil {
		return err
	}
	if logOutput == "" {
		logOutput = conf.LogOutput
	}
	if err := logflags.Setup(verbose, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()
	if conf.AcceptLowConfidence {
		acceptLowConfidence = true
	}
	if spliceTool == "" {
		spliceTool = conf.SpliceTool
	}

	input := args[0]
	output := input
	if len(args) == 2 {
		output = args[1]
	}

	f, err := elffile.Open(input)
	if err != nil {
		return err
	}

	factSets, err := decodeSources()
	if err != nil {
		return err
	}

	sections, symdirty, symtab, strtab, err := mergeInto(f, factSets)
	if err != nil {
		return err
	}

	if sectionDir != "" {
		return splice.WriteDir(sectionDir, sections)
	}

	if output != input {
		if err := copyFile(input, output); err != nil {
			return err
		}
	}
	if symdirty {
		sections = append(sections,
			splice.Section{Name: ".symtab", Exists: true, Data: symtab},
			splice.Section{Name: ".strtab", Exists: true, Data: strtab},
		)
	}
	oc, err := splice.NewObjcopy(spliceTool, output)
	if err != nil {
		return err
	}
	return splice.Apply(oc, sections)
}

// decodeSources reads every fact source. Application order fixes
// merge precedence: Anvill first, then Ghidra, then STR BSI.
func decodeSources() ([]*facts.FactSet, error) {
	var sets []*facts.FactSet
	decode := func(paths []string, dec func([]byte) (*facts.FactSet, error)) error {
		for _, p := range paths {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			fs, err := dec(data)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			sets = append(sets, fs)
		}
		return nil
	}
	if err := decode(anvillPaths, anvill.Decode); err != nil {
		return nil, err
	}
	if err := decode(ghidraPaths, ghidra.Decode); err != nil {
		return nil, err
	}
	if err := decode(bsiPaths, func(data []byte) (*facts.FactSet, error) {
		return strbsi.Decode(data, acceptLowConfidence)
	}); err != nil {
		return nil, err
	}
	return sets, nil
}

func mergeInto(f *elffile.File, factSets []*facts.FactSet) (sections []splice.Section, symdirty bool, symtab, strtab []byte, err error) {
	ds, err := f.DebugSections()
	if err != nil {
		return nil, false, nil, nil, err
	}

	var forest *die.Forest
	if len(ds.Info) > 0 {
		forest, err = die.NewParser(f.ByteOrder()).Parse(ds.Info, ds.Abbrev, ds.Str)
		if err != nil {
			return nil, false, nil, nil, err
		}
	} else {
		forest = die.NewForest(f.ByteOrder())
	}

	sess, err := merge.NewSession(forest, merge.Options{
		OmitFunctions: omitFunctions,
		OmitVariables: omitVariables,
		Producer:      version.Producer(),
		AddrSize:      f.AddrSize(),
		Is64:          f.Is64(),
	})
	if err != nil {
		return nil, false, nil, nil, err
	}
	for _, fs := range factSets {
		if err := sess.Apply(fs); err != nil {
			return nil, false, nil, nil, err
		}
	}

	out, err := sess.Forest().Serialize()
	if err != nil {
		return nil, false, nil, nil, err
	}

	sections = []splice.Section{
		{Name: ".debug_info", Exists: f.HasSection(".debug_info"), Data: out.Info},
		{Name: ".debug_abbrev", Exists: f.HasSection(".debug_abbrev"), Data: out.Abbrev},
		{Name: ".debug_str", Exists: f.HasSection(".debug_str"), Data: out.Str},
	}
	if len(ds.Line) > 0 {
		sections = append(sections, splice.Section{Name: ".debug_line", Exists: true, Data: ds.Line})
	}

	if !omitSymbols {
		st, err := f.Symtab()
		if err != nil {
			return nil, false, nil, nil, err
		}
		for _, fs := range factSets {
			st.Apply(fs, !omitVariables)
		}
		if st.Dirty() {
			symtab, strtab = st.Serialize()
			symdirty = true
		}
	}
	return sections, symdirty, symtab, strtab, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
