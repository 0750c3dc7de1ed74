package order

import (
	"errors"
	"fmt"

	ordertui "nathanbeddoewebdev/vpsorder/internal/order/tui"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"

	"github.com/spf13/cobra"
)

func NewOrderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Build, submit and pay for an order interactively",
		Long: `Walk through an order step by step: choose who the order is for,
define one or more configuration bundles, review the price, submit, and
pay. Requires a terminal.`,
		Args:         cobra.NoArgs,
		RunE:         runNew,
		SilenceUsage: true,
	}
	return cmd
}

func runNew(cmd *cobra.Command, args []string) error {
	if !isTerminal() {
		return errors.New("interactive mode requires a terminal (use 'vpsorder order submit --file')")
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	feed := newEventFeed()
	wf, err := sess.newWorkflow(cmd, workflow.Config{OnEvent: feed.send})
	if err != nil {
		return err
	}
	defer wf.Close()

	res, err := ordertui.OrderWizard(cmd.Context(), wf)
	if err != nil {
		if errors.Is(err, ordertui.ErrAborted) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Order cancelled.")
			return nil
		}
		return err
	}
	if res == nil {
		return nil
	}
	annotate(cmd, res)

	if !res.PaymentRequired() {
		printSubmission(cmd.OutOrStdout(), res)
		return nil
	}
	return followPayment(cmd, sess, wf, feed)
}
