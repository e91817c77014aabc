package cmd

import (
	"github.com/spf13/cobra"
)

var csvQuestion string

// queryCmd answers a natural-language question against the configured
// database: the model plans a SQL query, the executor runs it, and a second
// completion turns the rows into an answer.
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a natural-language question over the configured database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, "query", args[0], nil)
	},
}

// csvCmd answers a question over a CSV file (or inline CSV text).
var csvCmd = &cobra.Command{
	Use:   "csv <file>",
	Short: "Ask a natural-language question over a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, "csv", args[0], map[string]string{"question": csvQuestion})
	},
}

func init() {
	queryCmd.Flags().StringVar(&invokeModel, "model", "", "Override the configured default model")
	queryCmd.Flags().DurationVar(&invokeTimeout, "timeout", 0, "Abort the operation after this duration")

	csvCmd.Flags().StringVarP(&csvQuestion, "question", "q", "", "Question to answer over the CSV data")
	csvCmd.MarkFlagRequired("question")
	csvCmd.Flags().StringVar(&invokeModel, "model", "", "Override the configured default model")
	csvCmd.Flags().DurationVar(&invokeTimeout, "timeout", 0, "Abort the operation after this duration")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(csvCmd)
}
