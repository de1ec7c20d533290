package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/propfilter/pkg/config"
	"github.com/autobrr/propfilter/pkg/expression"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/property"
)

var matchCmd = &cobra.Command{
	Use:   "match [SPEC] [EVENTS]",
	Short: "Print the events matching a property filter",
	Long: `Compile a property filter and print the events from a json array that satisfy it.
With --filter the spec argument is omitted and the named config filter is used.`,
	Args: cobra.RangeArgs(1, 2),

	Run: func(cmd *cobra.Command, args []string) {
		// init core
		if !initialized {
			initCore(true)
		}

		log := logger.GetLogger("match")

		var specFile, eventsFile string
		switch {
		case flagFilterName != "" && len(args) == 1:
			eventsFile = args[0]
		case flagFilterName == "" && len(args) == 2:
			specFile, eventsFile = args[0], args[1]
		default:
			log.Fatal("Provide a spec file and an events file, or --filter and an events file")
		}

		if err := runMatch(cmd.Context(), cmd.OutOrStdout(), config.Config, flagFilterName, specFile, eventsFile); err != nil {
			log.WithError(err).Fatal("Failed matching events")
		}
	},
}

func runMatch(ctx context.Context, out io.Writer, cfg *config.Configuration, filterName, specFile, eventsFile string) error {
	log := logger.GetLogger("match")

	var (
		spec property.Spec
		err  error
	)
	if filterName != "" {
		if cfg == nil {
			return errors.Errorf("no config loaded for filter: %q", filterName)
		}
		spec, err = cfg.Filter(filterName)
	} else {
		spec, err = loadSpec(specFile)
	}
	if err != nil {
		return err
	}

	compiler, _, membership, err := buildCompiler(cfg)
	if err != nil {
		return err
	}

	e, err := compiler.Compile(ctx, spec)
	if err != nil {
		return errors.Wrap(err, "failed compiling filter")
	}

	compiled, err := expression.Compile(e)
	if err != nil {
		return errors.Wrap(err, "failed building program")
	}
	log.Debugf("Program: %s", compiled.Text)

	events, err := loadEvents(eventsFile)
	if err != nil {
		return err
	}

	matched, err := expression.FilterEvents(ctx, events, membership, compiled)
	if err != nil {
		return errors.Wrap(err, "failed evaluating events")
	}

	enc := json.NewEncoder(out)
	for _, ev := range matched {
		if err := enc.Encode(ev); err != nil {
			return errors.Wrap(err, "failed encoding event")
		}
	}

	log.Infof("Matched %s of %s event(s)", humanize.Comma(int64(len(matched))), humanize.Comma(int64(len(events))))
	return nil
}

func init() {
	matchCmd.Flags().StringVarP(&flagFilterName, "filter", "f", "", "Use a filter from the config")

	rootCmd.AddCommand(matchCmd)
}
