// Package cmd provides the hakai command-line interface.
//
// Configuration System:
//
//	Values come from several sources, highest priority first:
//	1. Command-line flags (--port, --root, --log-level, ...)
//	2. Environment variables with the HAKAI_ prefix (HAKAI_SERVER_PORT, ...)
//	3. The configuration file: --config, else HAKAI_CONFIG_FILE, else hakai.yml
//	4. Built-in defaults
//
// A .env file in the working directory is loaded before any of these are
// read, so it can supply HAKAI_ variables.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootFlagBindings maps persistent flags to configuration keys.
var rootFlagBindings = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"root":       "project.root",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hakai",
	Short: "Compile and serve .kai single-file components",
	Long: `hakai compiles .kai single-file components (template, script and style
sections) into pages and serves them with live reload.

Quick Start:
  hakai serve                     Start the development server
  hakai routes                    List the routes the project serves
  hakai check                     Compile every route and report errors
  hakai build /docs/api           Print the compiled HTML for one route`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		SetViperBindings(cmd, rootFlagBindings)
		SetViperBindings(cmd, serverFlagBindings)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is hakai.yml, can also use HAKAI_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("root", ".", "project root directory")

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)
	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", ValidateLogFormat)
}

// initConfig selects the configuration file and enables HAKAI_ environment
// overrides.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. HAKAI_CONFIG_FILE environment variable
//  3. hakai.yml in the current directory
//
// A missing default file is not an error; an explicitly named file that
// cannot be read is reported on stderr and defaults are used.
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("HAKAI_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("hakai")
	}

	viper.SetEnvPrefix("HAKAI")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Config file not loaded:", err)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
}
