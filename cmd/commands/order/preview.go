package order

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/vpsorder/internal/order/bundlefile"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"

	"github.com/spf13/cobra"
)

func PreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Quote the price of the bundles in a bundle file",
		Long: `Validate the bundles defined in a YAML bundle file and ask the backend
for a price quote. Nothing is ordered.

Examples:
  vpsorder order preview --file bundles.yaml
  vpsorder order preview --file bundles.yaml --fast-track -o json`,
		Args:         cobra.NoArgs,
		RunE:         runPreview,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("file", "f", "", "Bundle file (YAML)")
	cmd.Flags().Bool("fast-track", false, "Quote with fast-track provisioning")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")
	if err := checkOutput(output); err != nil {
		return err
	}

	file, err := bundlefile.Load(path)
	if err != nil {
		return err
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	wf, err := sess.newWorkflow(cmd, workflow.Config{})
	if err != nil {
		return err
	}
	defer wf.Close()

	if err := file.Apply(wf); err != nil {
		return err
	}
	if cmd.Flags().Changed("fast-track") {
		fastTrack, _ := cmd.Flags().GetBool("fast-track")
		if err := wf.SetFastTrack(fastTrack); err != nil {
			return err
		}
	}

	preview, err := wf.Preview(cmd.Context())
	if err != nil {
		if printValidation(cmd.ErrOrStderr(), err) {
			return errors.New("pricing preview refused: fix the fields above")
		}
		return fmt.Errorf("pricing preview failed: %w", err)
	}

	if output == "json" {
		return printJSON(cmd, preview)
	}
	printPreview(cmd.OutOrStdout(), wf.Bundles(), preview)
	return nil
}
