package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"nathanbeddoewebdev/vpsorder/cmd/commands/audit"
	"nathanbeddoewebdev/vpsorder/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/vpsorder/cmd/commands/config"
	"nathanbeddoewebdev/vpsorder/cmd/commands/order"
	"nathanbeddoewebdev/vpsorder/internal/auditlog"
	"nathanbeddoewebdev/vpsorder/internal/logger"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "vpsorder",
		Short: "A CLI tool for ordering and paying for VPS instances",
		Long: `vpsorder orders virtual private server instances from the business
provisioning API. It validates configuration bundles, quotes their price,
submits orders and follows the payment transaction until it settles.

Quick start:
  vpsorder config set api-url https://api.example.com
  vpsorder auth login                              # Store your API token
  vpsorder order preview --file bundles.yaml       # Quote a bundle file
  vpsorder order submit --file bundles.yaml --watch
  vpsorder order new                               # Interactive order wizard`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			logger.Init(cmd.ErrOrStderr(), logger.Options{Level: level, Format: format})
		},
	}

	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (default warn)")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json")

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(order.NewCommand())
	cmd.AddCommand(audit.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	started := time.Now()
	var root = rootCmd()
	executed, err := root.ExecuteContextC(ctx)
	recordAudit(executed, started, err)
	if err != nil {
		cancel()
		os.Exit(1)
	}
}

// recordAudit writes a best-effort audit entry for the command that ran.
// Errors opening the repository or saving the entry are discarded so the
// audit trail never changes a command's outcome.
func recordAudit(executed *cobra.Command, started time.Time, err error) {
	if executed == nil || !executed.Runnable() || executed.Parent() == nil {
		return
	}
	switch executed.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return
	}

	repo, openErr := auditlog.Open()
	if openErr != nil {
		return
	}
	defer repo.Close()

	var meta auditlog.Metadata
	if ctx := executed.Context(); ctx != nil {
		meta = auditlog.MetadataFromContext(ctx)
	}
	entry := auditlog.NewEntry(executed.CommandPath(), os.Args[1:], meta, started, err)
	_ = repo.Save(entry)
}
