package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	cfg        Config
)

var rootCmd = &cobra.Command{
	Use:           "ecapnpdump",
	Short:         "Inspect Cap'n Proto messages and exercise the RPC loopback path",
	Long:          "ecapnpdump dumps a serialized Cap'n Proto message's structure, and can drive a small loopback RPC exchange against the library's own vat implementation.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return errors.Wrapf(err, "parse log level %q", logLevel)
		}
		logrus.SetLevel(level)

		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a TOML config file")
	flags.StringVar(&logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command, returning any error for main to
// report.
func Execute() error {
	return rootCmd.Execute()
}
