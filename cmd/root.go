package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string // Log verbosity level

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ner-adapt",
	Short: "Iteration-based domain-adaptive NER training",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	for _, c := range []*cobra.Command{trainCmd, validateCmd, extractCmd} {
		registerRunFlags(c.Flags())
		rootCmd.AddCommand(c)
	}
	validateCmd.Flags().Bool("append-log", false, "Append the result to the run's accuracy log")
	extractCmd.Flags().String("out-dir", "", "Directory for embedding dumps (default: log dir)")
}
