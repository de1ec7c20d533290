package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/autobrr/propfilter/pkg/config"
	"github.com/autobrr/propfilter/pkg/logger"
	"github.com/autobrr/propfilter/pkg/runtime"
)

var (
	// Global flags
	flagLogLevel   = 0
	flagConfigFile = ""
	flagLogFile    = ""

	// Global command flags
	flagFilterName = ""

	initialized = false
)

var rootCmd = &cobra.Command{
	Use:   "propfilter",
	Short: "Compile property filters into query expressions",
	Long: `A CLI tool for compiling analytics property filters into query expression trees,
splicing them into query templates and matching them against captured events.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "Config file (yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagLogFile, "log", "l", "", "Log file")
	rootCmd.PersistentFlags().CountVarP(&flagLogLevel, "verbose", "v", "Verbose level")
}

func initCore(showAppInfo bool) {
	if initialized {
		return
	}

	configFile := flagConfigFile
	if configFile == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configFile = "config.yaml"
		}
	}
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
	}

	// Init Logging
	if err := logger.Init(flagLogLevel, flagLogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger("app")

	// Init Config
	if err := config.Init(configFile); err != nil {
		log.WithError(err).Fatal("Failed to initialize config")
	}

	if showAppInfo {
		log.Infof("Using %-10s = %s", "VERSION", runtime.Version)
		logger.ShowUsing()
		config.ShowUsing()
		log.Info("------------------")
	}

	initialized = true
}
