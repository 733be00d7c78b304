package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one digest and exit",
	Long: `Run one digest: plan the fetch budget, fetch, deduplicate, evaluate and select
highlights. The analysis report is written under OUTPUT_DIR/<date>/.

Examples:
  newsdigest run
  newsdigest run --json        # Print the highlights as JSON`,
	RunE: runDigest,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("json", false, "print highlights as JSON")
}

func runDigest(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	d, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := runOnce(cmd.Context(), d)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Highlights)
	}
	fmt.Printf("%s: %s, %d highlights\n", res.RunID, res.Outcome, len(res.Highlights))
	for i, h := range res.Highlights {
		fmt.Printf("%2d. [%s %.0f] %s\n    %s\n", i+1, h.Worth, h.QualityScore, h.Title, h.URL)
	}
	if res.ReportPath != "" {
		fmt.Printf("report: %s\n", res.ReportPath)
	}
	return nil
}
