package order

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Price, submit and pay for instance orders",
		Long: `Build instance orders from configuration bundles, preview their price,
submit them, and follow the payment transaction until it settles.

Transactions that require payment are stored locally so an interrupted
payment can be picked up again with 'vpsorder order resume' or
'vpsorder order watch <transaction-id>'.`,
	}

	cmd.AddCommand(NewOrderCommand())
	cmd.AddCommand(PreviewCommand())
	cmd.AddCommand(SubmitCommand())
	cmd.AddCommand(WatchCommand())
	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ResumeCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}
