// Package cli wires the gradekey commands: the HTTP server, schema
// migrations and the operator tools for key history, impact and export.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"gradekey/internal/config"
)

// version is set by the linker at release time.
var version = "dev"

var rootCtx = context.Background()

// vp holds defaults, the config file, GRADEKEY_* variables and bound flags.
var vp = config.NewViper()

// cfg is the validated configuration, populated by loadConfig.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:                "gradekey",
	Short:              "Resolve grades against versioned grading keys.",
	Long:               `Gradekey turns exam points into grades, keeps an audit trail of every grading key change and regrades stored corrections when a key is modified.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig points viper at an explicit --config file when one is given.
func initConfig() {
	if configFile := vp.GetString("config"); configFile != "" {
		vp.SetConfigFile(configFile)
	}
}

// loadConfig validates the merged configuration before a command runs.
func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load(vp)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
