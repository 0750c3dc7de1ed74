package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	ordertui "nathanbeddoewebdev/vpsorder/internal/order/tui"
	"nathanbeddoewebdev/vpsorder/internal/txstore"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// printJSON encodes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// checkOutput rejects unknown -o values before any request is sent.
func checkOutput(output string) error {
	switch output {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table or json)", output)
	}
}

// printPreview prints one row per quoted bundle and the grand total.
func printPreview(w io.Writer, bundles []domain.ConfigurationBundle, p *domain.PricingPreview) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "BUNDLE\tCOUNT\tUNIT PRICE\tTOTAL")
	fmt.Fprintln(tw, "------\t-----\t----------\t-----")
	for _, bp := range p.Bundles {
		name := fmt.Sprintf("bundle %d", bp.Index)
		if bp.Index >= 0 && bp.Index < len(bundles) {
			name = bundles[bp.Index].Name
		}
		currency := bp.Currency
		if currency == "" {
			currency = p.Currency
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			name,
			bp.Count,
			ordertui.FormatMoney(bp.UnitPrice, currency),
			ordertui.FormatMoney(bp.TotalPrice, currency),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nGrand total: %s\n", ordertui.FormatMoney(p.GrandTotal, p.Currency))
}

// printSubmission summarizes a submission result.
func printSubmission(w io.Writer, res *domain.SubmissionResult) {
	if !res.PaymentRequired() {
		fmt.Fprintln(w, "Order accepted, provisioning started.")
		printInstances(w, res.Instances)
		return
	}
	printTransaction(w, *res.Transaction, -1)
	fmt.Fprintf(w, "\nWatch the payment with: vpsorder order watch %s\n", res.Transaction.ID)
}

func printInstances(w io.Writer, instances []domain.InstanceStub) {
	if len(instances) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS")
	fmt.Fprintln(tw, "--\t----\t------")
	for _, inst := range instances {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", inst.ID, inst.Name, inst.Status)
	}
	tw.Flush()
}

// printTransaction prints a transaction and its gateway options. selected
// marks the option the workflow picked, or -1 for none.
func printTransaction(w io.Writer, tx domain.Transaction, selected int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Transaction:\t%s\n", tx.ID)
	fmt.Fprintf(tw, "  Amount:\t%s\n", ordertui.FormatMoney(tx.Amount, tx.Currency))
	fmt.Fprintf(tw, "  Status:\t%s\n", tx.Status)
	if !tx.ExpiresAt.IsZero() {
		fmt.Fprintf(tw, "  Expires:\t%s\n", tx.ExpiresAt.UTC().Format(timeLayout))
	}
	tw.Flush()

	if len(tx.GatewayOptions) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "\tGATEWAY\tFEES\tTOTAL")
	fmt.Fprintln(tw, "\t-------\t----\t-----")
	for i, opt := range tx.GatewayOptions {
		marker := ""
		if i == selected {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			marker,
			ordertui.GatewayLabel(opt),
			ordertui.FormatMoney(opt.Charges.TotalFees, opt.Charges.Currency),
			ordertui.FormatMoney(opt.Charges.GrandTotal, opt.Charges.Currency),
		)
	}
	tw.Flush()

	for _, opt := range tx.GatewayOptions {
		if lines := ordertui.BankLines(opt); lines != nil {
			fmt.Fprintf(w, "\nTransfer to (%s):\n", ordertui.GatewayLabel(opt))
			printPairs(w, lines)
		}
	}
}

func printPairs(w io.Writer, pairs [][2]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range pairs {
		fmt.Fprintf(tw, "  %s:\t%s\n", p[0], p[1])
	}
	tw.Flush()
}

// printRecords prints stored transactions as a table.
func printRecords(w io.Writer, records []txstore.TransactionRecord, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION\tAMOUNT\tSTATUS\tGATEWAY\tEXPIRES\tUPDATED")
	fmt.Fprintln(tw, "-----------\t------\t------\t-------\t-------\t-------")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TransactionID,
			ordertui.FormatMoney(r.Amount, r.Currency),
			recordStatus(r, now),
			dash(r.Gateway),
			formatExpiry(r, now),
			r.UpdatedAt.UTC().Format(timeLayout),
		)
	}
	tw.Flush()
}

// recordStatus shows a pending record whose deadline passed as expired
// even before the backend confirmed it.
func recordStatus(r txstore.TransactionRecord, now time.Time) string {
	if !r.Status.IsTerminal() && r.Expired(now) {
		return string(r.Status) + " (expired)"
	}
	return string(r.Status)
}

func formatExpiry(r txstore.TransactionRecord, now time.Time) string {
	if r.ExpiresAt.IsZero() {
		return "-"
	}
	if r.Status.IsTerminal() || r.Expired(now) {
		return r.ExpiresAt.UTC().Format(timeLayout)
	}
	return "in " + ordertui.FormatRemaining(r.ExpiresAt.Sub(now))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printValidation writes field errors one per line and reports whether err
// carried any.
func printValidation(w io.Writer, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Fields.Empty() {
		return false
	}
	fmt.Fprintln(w, "Invalid order:")
	for _, p := range ve.Fields.Paths() {
		for _, msg := range ve.Fields[p] {
			fmt.Fprintf(w, "  %s: %s\n", p, msg)
		}
	}
	return true
}
