package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krishisahay/krishisahay-go/cmd/config"
	"github.com/krishisahay/krishisahay-go/cmd/labels"
	"github.com/krishisahay/krishisahay-go/cmd/serve"
	"github.com/krishisahay/krishisahay-go/internal/buildinfo"
	"github.com/krishisahay/krishisahay-go/internal/conf"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// RootCommand creates and returns the root command. Settings are loaded once
// before any subcommand runs and shared through the settings pointer.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:          "krishisahay",
		Short:        "KrishiSahay agricultural assistant backend",
		Version:      fmt.Sprintf("%s (built %s)", build.GetVersion(), build.GetBuildDate()),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/krishisahay, /etc/krishisahay)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		if debug {
			loaded.Debug = true
		}
		*settings = *loaded
		return initLogging(settings)
	}

	rootCmd.AddCommand(
		serve.Command(settings, build),
		labels.Command(settings),
		config.Command(settings),
	)

	return rootCmd
}

// initLogging installs the global logger described by settings.
func initLogging(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}
