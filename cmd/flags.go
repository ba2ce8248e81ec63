package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port     int           `flag:"port,p" desc:"Port to serve on" default:"8000"`
	Host     string        `flag:"host" desc:"Host to bind to" default:"localhost"`
	Debounce time.Duration `flag:"debounce" desc:"Live reload debounce window" default:"100ms"`

	// Output flags
	OutputFormat string `flag:"output,o" desc:"Output format (table|json)" default:"table"`
}

// serverFlagBindings maps server flags to configuration keys.
var serverFlagBindings = map[string]string{
	"port":     "server.port",
	"host":     "server.host",
	"debounce": "hmr.debounce",
}

var outputFormats = []string{"table", "json"}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 8000, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	cmd.Flags().DurationVar(&flags.Debounce, "debounce", 100*time.Millisecond, "Live reload debounce window")
	AddFlagValidation(cmd.Flags(), "port", ValidatePort)
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json)")
	AddFlagValidation(cmd.Flags(), "output", ValidateOutputFormat)
}

// SetViperBindings binds flags to viper configuration keys. Only flags the
// command actually defines are bound.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := cmd.Flags().Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (any free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidateLogLevel accepts the levels the logger understands.
func ValidateLogLevel(level string) error {
	return oneOf("log level", strings.ToLower(level), []string{"debug", "info", "warn", "warning", "error"})
}

func ValidateLogFormat(format string) error {
	return oneOf("log format", format, []string{"text", "json"})
}

func ValidateOutputFormat(format string) error {
	return oneOf("output format", format, outputFormats)
}

func oneOf(what, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %s, must be one of: %s", what, value, strings.Join(valid, ", "))
}
