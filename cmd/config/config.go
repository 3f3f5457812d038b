package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/krishisahay/krishisahay-go/internal/conf"
)

// Command creates the command that prints the effective configuration with
// secrets masked.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(settings.Masked())
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			if settings.ConfigFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", settings.ConfigFile)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
