package config

import (
	"nathanbeddoewebdev/vpsorder/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vpsorder configuration",
		Long: "View and modify persistent vpsorder settings.\n\n" +
			"Configuration is stored at ~/.config/vpsorder/config.json.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())

	return cmd
}
