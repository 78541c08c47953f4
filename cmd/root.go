/*
	Copyright 2025 Markus Papenbrock
*/

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	checkCmd "github.com/mpapenbr/f1-race-predictor/pkg/cmd/check"
	serverCmd "github.com/mpapenbr/f1-race-predictor/pkg/cmd/server"
	showCmd "github.com/mpapenbr/f1-race-predictor/pkg/cmd/show"
	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/version"
)

const envPrefix = "F1P"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "f1p",
	Short:   "F1 race winner prediction service",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.f1p.yml)")

	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules to restrict log output (e.g. \"*:* -debug:api\")")
	rootCmd.PersistentFlags().StringVar(&config.DataFile,
		"data-file",
		"",
		"reference data file (default: embedded data)")
	rootCmd.PersistentFlags().StringVar(&config.DataFormat,
		"data-format",
		"",
		"format of the data file (yaml, json; default: by extension)")
	rootCmd.PersistentFlags().StringVar(&config.DataSelector,
		"data-selector",
		"$",
		"jsonpath selecting the reference data inside a json document")
	rootCmd.PersistentFlags().StringVar(&config.RaceID,
		"race",
		"",
		"race to predict (default: first race of the reference data)")
	rootCmd.PersistentFlags().StringVar(&config.Locale,
		"locale",
		"en-US",
		"locale for timestamps and percentages")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")

	// add commands here
	rootCmd.AddCommand(serverCmd.NewServerCmd())
	rootCmd.AddCommand(showCmd.NewShowCmd())
	rootCmd.AddCommand(checkCmd.NewCheckCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".f1p" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".f1p")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --log-level to F1P_LOG_LEVEL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, flagValue(val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}

// flagValue converts config file values to the flag syntax.
// Lists become comma separated values.
func flagValue(val any) string {
	if list, ok := val.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", val)
}
