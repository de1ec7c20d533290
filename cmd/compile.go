package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/config"
	"github.com/autobrr/propfilter/pkg/expression"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/paths"
	"github.com/autobrr/propfilter/pkg/property"
)

var (
	flagShowProgram = false
	flagIgnore      []string
)

var compileCmd = &cobra.Command{
	Use:   "compile [FILE|DIR]...",
	Short: "Compile property filters into expression trees",
	Long:  `Compile property filters from json files, directories of json files or a named config filter.`,

	Run: func(cmd *cobra.Command, args []string) {
		// init core
		if !initialized {
			initCore(true)
		}

		log := logger.GetLogger("compile")

		if flagFilterName == "" && len(args) == 0 {
			log.Fatal("Provide a spec file, a directory or --filter")
		}

		if err := runCompile(cmd.Context(), cmd.OutOrStdout(), config.Config, flagFilterName, args); err != nil {
			log.WithError(err).Fatal("Failed compiling filters")
		}
	},
}

type namedSpec struct {
	name string
	spec property.Spec
}

func collectSpecs(cfg *config.Configuration, filterName string, args []string) ([]namedSpec, error) {
	log := logger.GetLogger("compile")

	var specs []namedSpec

	if filterName != "" {
		if cfg == nil {
			return nil, errors.Errorf("no config loaded for filter: %q", filterName)
		}
		spec, err := cfg.Filter(filterName)
		if err != nil {
			return nil, errors.Wrapf(err, "failed loading filter: %q", filterName)
		}
		specs = append(specs, namedSpec{name: filterName, spec: spec})
	}

	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed stat: %q", arg)
		}

		files := []string{arg}
		if fi.IsDir() {
			found, size := paths.SpecFiles(arg, flagIgnore)
			log.Infof("Found %d spec file(s) in %q totalling %s", len(found), arg, humanize.IBytes(size))

			files = files[:0]
			for _, p := range found {
				files = append(files, p.Path)
			}
		}

		for _, file := range files {
			spec, err := loadSpec(file)
			if err != nil {
				return nil, err
			}
			specs = append(specs, namedSpec{name: file, spec: spec})
		}
	}

	return specs, nil
}

func runCompile(ctx context.Context, out io.Writer, cfg *config.Configuration, filterName string, args []string) error {
	log := logger.GetLogger("compile")

	compiler, _, _, err := buildCompiler(cfg)
	if err != nil {
		return err
	}

	specs, err := collectSpecs(cfg, filterName, args)
	if err != nil {
		return err
	}

	for _, s := range specs {
		e, err := compiler.Compile(ctx, s.spec)
		if err != nil {
			return errors.Wrapf(err, "failed compiling: %q", s.name)
		}

		data, err := ast.MarshalIndent(e)
		if err != nil {
			return errors.Wrapf(err, "failed encoding: %q", s.name)
		}

		log.Debugf("Compiled %s", s.name)
		fmt.Fprintln(out, string(data))

		if flagShowProgram {
			compiled, err := expression.Compile(e)
			if err != nil {
				return errors.Wrapf(err, "failed building program: %q", s.name)
			}
			fmt.Fprintln(out, compiled.Text)
		}
	}

	log.Infof("Compiled %s filter(s)", humanize.Comma(int64(len(specs))))
	return nil
}

func init() {
	compileCmd.Flags().StringVarP(&flagFilterName, "filter", "f", "", "Compile a filter from the config")
	compileCmd.Flags().BoolVar(&flagShowProgram, "program", false, "Also print the event matcher program")
	compileCmd.Flags().StringSliceVar(&flagIgnore, "ignore", nil, "Skip paths starting with these prefixes")

	rootCmd.AddCommand(compileCmd)
}
