package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// classifyCmd reports how a reference would be interpreted (inline text,
// local path or object storage) without resolving it.
var classifyCmd = &cobra.Command{
	Use:   "classify <input>",
	Short: "Show how an input reference would be classified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		kind := appInstance.Resolver.Classify(args[0])
		fmt.Println(kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
