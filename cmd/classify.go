package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/propfilter/pkg/config"
	"github.com/autobrr/propfilter/pkg/evaluate"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/property"
)

var flagOnlyFilters []string

var classifyCmd = &cobra.Command{
	Use:   "classify [EVENTS]",
	Short: "Report which config filters each event matches",
	Long:  `Evaluate every event in a json array against the filters declared in the config.`,
	Args:  cobra.ExactArgs(1),

	Run: func(cmd *cobra.Command, args []string) {
		// init core
		if !initialized {
			initCore(true)
		}

		log := logger.GetLogger("classify")

		if err := runClassify(cmd.Context(), cmd.OutOrStdout(), config.Config, flagOnlyFilters, args[0]); err != nil {
			log.WithError(err).Fatal("Failed classifying events")
		}
	},
}

type classification struct {
	Index   int      `json:"index"`
	UUID    string   `json:"uuid,omitempty"`
	Filters []string `json:"filters"`
}

func runClassify(ctx context.Context, out io.Writer, cfg *config.Configuration, only []string, eventsFile string) error {
	log := logger.GetLogger("classify")

	if cfg == nil || len(cfg.Filters) == 0 {
		return errors.New("no filters declared in config")
	}

	specs := make(map[string]property.Spec)
	for _, name := range cfg.FilterNames() {
		if len(only) > 0 && !evaluate.StringSliceContains(only, name, true) {
			log.Tracef("Skipping filter: %s", name)
			continue
		}

		spec, err := cfg.Filter(name)
		if err != nil {
			return err
		}
		specs[name] = spec
	}

	compiler, _, membership, err := buildCompiler(cfg)
	if err != nil {
		return err
	}

	evaluator, err := evaluate.New(ctx, compiler, specs, membership)
	if err != nil {
		return errors.Wrap(err, "failed compiling filters")
	}

	events, err := loadEvents(eventsFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	counts := make(map[string]int, len(specs))

	for i, ev := range events {
		names, err := evaluator.Evaluate(ctx, ev)
		if err != nil {
			return errors.Wrapf(err, "failed evaluating event %d", i)
		}
		for _, name := range names {
			counts[name]++
		}

		if names == nil {
			names = []string{}
		}
		if err := enc.Encode(classification{Index: i, UUID: ev.UUID, Filters: names}); err != nil {
			return errors.Wrap(err, "failed encoding classification")
		}
	}

	for _, name := range evaluator.Names() {
		log.Infof("Filter %s matched %s of %s event(s)", name,
			humanize.Comma(int64(counts[name])), humanize.Comma(int64(len(events))))
	}

	return nil
}

func init() {
	classifyCmd.Flags().StringSliceVar(&flagOnlyFilters, "only", nil, "Only evaluate these config filters (case-insensitive)")

	rootCmd.AddCommand(classifyCmd)
}
