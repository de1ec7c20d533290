package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/propfilter/pkg/ast"
	"github.com/autobrr/propfilter/pkg/config"
	"github.com/autobrr/propfilter/pkg/dates"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/property"
	"github.com/autobrr/propfilter/pkg/splice"
)

var (
	flagPropertiesFile = ""
	flagDateFrom       = ""
	flagDateTo         = ""
	flagNoFilters      = false
)

var spliceCmd = &cobra.Command{
	Use:   "splice [TEMPLATE]",
	Short: "Replace the filters placeholder in a query template",
	Long: `Replace every {filters} placeholder in a query template with the compiled
property filter and timestamp bounds. Templates ending in .json hold a serialized
tree, anything else is parsed as expression text.`,
	Args: cobra.ExactArgs(1),

	Run: func(cmd *cobra.Command, args []string) {
		// init core
		if !initialized {
			initCore(true)
		}

		log := logger.GetLogger("splice")

		opts := spliceOptions{
			filterName:     flagFilterName,
			propertiesFile: flagPropertiesFile,
			dateFrom:       flagDateFrom,
			dateTo:         flagDateTo,
			noFilters:      flagNoFilters,
		}

		if err := runSplice(cmd.Context(), cmd.OutOrStdout(), config.Config, args[0], opts); err != nil {
			log.WithError(err).Fatal("Failed splicing filters")
		}
	},
}

type spliceOptions struct {
	filterName     string
	propertiesFile string
	dateFrom       string
	dateTo         string
	noFilters      bool
}

func (o spliceOptions) filters(cfg *config.Configuration) (*splice.Filters, error) {
	if o.noFilters {
		return nil, nil
	}

	var (
		spec property.Spec
		err  error
	)

	switch {
	case o.propertiesFile != "" && o.filterName != "":
		return nil, errors.New("--properties and --filter are mutually exclusive")
	case o.propertiesFile != "":
		spec, err = loadSpec(o.propertiesFile)
	case o.filterName != "":
		if cfg == nil {
			return nil, errors.Errorf("no config loaded for filter: %q", o.filterName)
		}
		spec, err = cfg.Filter(o.filterName)
	}
	if err != nil {
		return nil, err
	}

	return &splice.Filters{
		Properties: spec,
		DateFrom:   o.dateFrom,
		DateTo:     o.dateTo,
	}, nil
}

func runSplice(ctx context.Context, out io.Writer, cfg *config.Configuration, templatePath string, opts spliceOptions, spliceOpts ...splice.Option) error {
	log := logger.GetLogger("splice")

	tmpl, err := loadTemplate(templatePath)
	if err != nil {
		return err
	}

	compiler, team, _, err := buildCompiler(cfg)
	if err != nil {
		return err
	}

	filters, err := opts.filters(cfg)
	if err != nil {
		return err
	}

	if filters == nil {
		log.Debug("No filters supplied, placeholders collapse to true")
	} else {
		log.Debugf("Splicing filters with date range %q to %q", filters.DateFrom, filters.DateTo)
	}

	result, err := splice.ReplaceFilters(ctx, tmpl, filters, compiler, dates.NewParser(), team, spliceOpts...)
	if err != nil {
		return errors.Wrapf(err, "failed replacing filters in: %q", templatePath)
	}

	data, err := ast.MarshalIndent(result)
	if err != nil {
		return errors.Wrap(err, "failed encoding result")
	}

	fmt.Fprintln(out, string(data))
	return nil
}

func init() {
	spliceCmd.Flags().StringVarP(&flagFilterName, "filter", "f", "", "Use a filter from the config as the property filter")
	spliceCmd.Flags().StringVarP(&flagPropertiesFile, "properties", "p", "", "Property filter json file")
	spliceCmd.Flags().StringVar(&flagDateFrom, "date-from", "", "Lower timestamp bound (default -7d, 'all' for none)")
	spliceCmd.Flags().StringVar(&flagDateTo, "date-to", "", "Upper timestamp bound (default now)")
	spliceCmd.Flags().BoolVar(&flagNoFilters, "no-filters", false, "Collapse placeholders to true")

	rootCmd.AddCommand(spliceCmd)
}
