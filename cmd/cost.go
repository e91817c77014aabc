package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// costCmd shows the per-operation usage aggregates collected this process:
// calls, failures, tokens and cost.
var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Show AI usage and cost aggregates",
	Long:  `Displays per-operation call counts, failure counts, token totals and accumulated cost for the current process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		snapshot := appInstance.Recorder.Snapshot()
		if len(snapshot) == 0 {
			fmt.Println("No usage recorded.")
			return nil
		}

		operations := make([]string, 0, len(snapshot))
		for op := range snapshot {
			operations = append(operations, op)
		}
		sort.Strings(operations)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Operation", "Calls", "Failures", "In Tokens", "Out Tokens", "Cost ($)", "Duration (ms)"})
		table.SetBorder(true)

		total := decimal.Zero
		for _, op := range operations {
			c := snapshot[op]
			total = total.Add(c.Cost)
			table.Append([]string{
				op,
				strconv.FormatInt(c.Calls, 10),
				strconv.FormatInt(c.Failures, 10),
				strconv.FormatInt(c.InputTokens, 10),
				strconv.FormatInt(c.OutputTokens, 10),
				c.Cost.String(),
				strconv.FormatInt(c.DurationMS, 10),
			})
		}
		table.Render()

		fmt.Printf("\nTotal cost: $%s\n", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(costCmd)
}
