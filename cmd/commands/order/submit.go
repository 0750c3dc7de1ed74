package order

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/auditlog"
	"nathanbeddoewebdev/vpsorder/internal/order/bundlefile"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	ordertui "nathanbeddoewebdev/vpsorder/internal/order/tui"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"

	"github.com/spf13/cobra"
)

func SubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an order",
		Long: `Submit the bundles of a bundle file as one order.

When the order needs payment, the transaction and its payment options are
printed and the transaction is stored locally. Pass --watch to follow the
payment straight away.

Without --file an interactive wizard collects the order (requires a
terminal).

Examples:
  vpsorder order submit --file bundles.yaml
  vpsorder order submit --file bundles.yaml --tenant 42 --tag team=web --watch
  vpsorder order submit --file bundles.yaml -o json`,
		Args:         cobra.NoArgs,
		RunE:         runSubmit,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("file", "f", "", "Bundle file (YAML)")
	cmd.Flags().Bool("fast-track", false, "Request fast-track provisioning")
	cmd.Flags().StringArray("tag", nil, "Order tag (can be specified multiple times)")
	cmd.Flags().String("tenant", "", "Assign the order to a tenant ID")
	cmd.Flags().String("user", "", "Assign the order to a user ID")
	cmd.Flags().Bool("watch", false, "Follow the payment after submitting")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")
	watch, _ := cmd.Flags().GetBool("watch")
	if err := checkOutput(output); err != nil {
		return err
	}
	assignment, err := assignmentFromFlags(cmd)
	if err != nil {
		return err
	}
	if path == "" && !isTerminal() {
		return errors.New("missing required flag --file (interactive mode requires a terminal)")
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

	var res *domain.SubmissionResult
	if path == "" {
		res, err = ordertui.OrderWizard(cmd.Context(), wf)
		if errors.Is(err, ordertui.ErrAborted) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Order cancelled.")
			return nil
		}
	} else {
		res, err = submitFile(cmd, wf, path, assignment)
	}
	if err != nil {
		if printValidation(cmd.ErrOrStderr(), err) {
			return errors.New("order refused: fix the fields above")
		}
		return err
	}
	if res == nil {
		return nil
	}

	annotate(cmd, res)

	if output == "json" {
		if err := printJSON(cmd, res); err != nil {
			return err
		}
	} else {
		printSubmission(cmd.OutOrStdout(), res)
	}

	if watch && res.PaymentRequired() {
		return followPayment(cmd, sess, wf, feed)
	}
	return nil
}

// submitFile loads path into wf, applies the flag overrides and submits.
func submitFile(cmd *cobra.Command, wf *workflow.Workflow, path string, assignment *domain.OrderAssignment) (*domain.SubmissionResult, error) {
	file, err := bundlefile.Load(path)
	if err != nil {
		return nil, err
	}
	if err := file.Apply(wf); err != nil {
		return nil, err
	}

	if assignment != nil {
		if err := wf.SetAssignment(*assignment); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("fast-track") {
		fastTrack, _ := cmd.Flags().GetBool("fast-track")
		if err := wf.SetFastTrack(fastTrack); err != nil {
			return nil, err
		}
	}
	if tags, _ := cmd.Flags().GetStringArray("tag"); len(tags) > 0 {
		wf.SetTags(mergeTags(file.Tags, tags))
	}

	// Assignment -> Configuration -> Review.
	for range 2 {
		if _, err := wf.Next(); err != nil {
			return nil, err
		}
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Submitting order...")
	return wf.Submit(cmd.Context())
}

// assignmentFromFlags returns nil when neither --tenant nor --user is set.
func assignmentFromFlags(cmd *cobra.Command) (*domain.OrderAssignment, error) {
	tenant, _ := cmd.Flags().GetString("tenant")
	user, _ := cmd.Flags().GetString("user")
	tenant = strings.TrimSpace(tenant)
	user = strings.TrimSpace(user)

	switch {
	case tenant != "" && user != "":
		return nil, errors.New("--tenant and --user cannot be combined")
	case tenant != "":
		return &domain.OrderAssignment{Kind: domain.AssignTenant, TenantID: tenant}, nil
	case user != "":
		return &domain.OrderAssignment{Kind: domain.AssignUser, UserID: user}, nil
	}
	return nil, nil
}

// mergeTags appends extra to base, dropping blanks and duplicates.
func mergeTags(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	var out []string
	for _, t := range append(append([]string(nil), base...), extra...) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// annotate attaches the submission to the audit entry of this command.
func annotate(cmd *cobra.Command, res *domain.SubmissionResult) {
	meta := auditlog.Metadata{
		IdempotencyKey: res.IdempotencyKey,
		Detail:         string(res.Outcome),
	}
	if tx := res.Transaction; tx != nil {
		meta.ResourceType = "transaction"
		meta.ResourceID = tx.ID
		meta.Amount = tx.Amount
		meta.Currency = tx.Currency
	} else if len(res.Instances) > 0 {
		meta.ResourceType = "instance"
		meta.ResourceID = res.Instances[0].ID
	}
	cmd.SetContext(auditlog.WithMetadata(cmd.Context(), meta))
}
