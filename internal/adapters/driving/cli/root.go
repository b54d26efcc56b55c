// Package cli implements the command-line driving adapter. Each command
// lives in its own file and registers itself on the root command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/undltools/oaisync/internal/core/ports/driven"
	"github.com/undltools/oaisync/internal/logger"
)

// version is the CLI version, overridable at build time via ldflags.
var version = "0.1.0"

// configStore supplies defaults for flags left unset. Optional; set by
// the composition root in main.
var configStore driven.ConfigStore

// SetConfigStore injects the configuration store used for flag defaults.
func SetConfigStore(store driven.ConfigStore) {
	configStore = store
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "oaisync",
	Short: "Incremental OAI-PMH harvester",
	Long: `oaisync replicates bibliographic records from an OAI-PMH archive into a
local SQLite database. It harvests the flat Dublin Core schema and the
structured MARC schema, upserts records idempotently, and resumes
interrupted harvests from a per-schema checkpoint file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveString picks the flag value, then the config value, then the
// fallback.
func resolveString(flagValue, configKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if configStore != nil {
		if v := configStore.GetString(configKey); v != "" {
			return v
		}
	}
	return fallback
}

// resolveInt picks the flag value, then the config value, then zero.
func resolveInt(flagValue int, configKey string) int {
	if flagValue != 0 {
		return flagValue
	}
	if configStore != nil {
		return configStore.GetInt(configKey)
	}
	return 0
}

// resolveStringSlice picks the flag value, then the config value, then
// the fallback.
func resolveStringSlice(flagValue []string, configKey string, fallback []string) []string {
	if len(flagValue) > 0 {
		return flagValue
	}
	if configStore != nil {
		if v := configStore.GetStringSlice(configKey); len(v) > 0 {
			return v
		}
	}
	return fallback
}
