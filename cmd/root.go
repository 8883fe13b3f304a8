package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cdc-pump/internal/config"
	"cdc-pump/internal/errs"
	"cdc-pump/internal/validate"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	configReadErr error
)

var RootCmd = &cobra.Command{
	Use:   "cdc-pump",
	Short: "Provision and validate a MySQL to ClickHouse CDC pipeline",
	Long: `
   ____ ____   ____   ____  _   _ __  __ ____
  / ___|  _ \ / ___| |  _ \| | | |  \/  |  _ \
 | |   | | | | |     | |_) | | | | |\/| | |_) |
 | |___| |_| | |___  |  __/| |_| | |  | |  __/
  \____|____/ \____| |_|    \___/|_|  |_|_|

CDC PUMP - connectors, warehouse objects and health checks from one config
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		return
	}

	var exit *exitError
	switch {
	case errors.As(err, &exit):
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, exit.err)
		}
		os.Exit(exit.code)
	case errs.IsConfiguration(err):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(validate.ExitConfiguration)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./cdc-pump.yaml)")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().String("log-format", "console", "log encoding (console or json)")
	RootCmd.PersistentFlags().String("out", "./artifacts", "artifact output directory")

	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("out", RootCmd.PersistentFlags().Lookup("out"))

	config.SetDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("cdc-pump")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CDCPUMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// The connection list has no default, so AutomaticEnv alone never sees it.
	viper.BindEnv("connections")

	err := viper.ReadInConfig()
	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	case cfgFile != "":
		// An explicit --config must exist and parse.
		configReadErr = err
	default:
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configReadErr = err
		}
	}
}
