package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"skald/internal/wrapper"
)

var (
	invokePrompt  string
	invokeModel   string
	invokeTimeout time.Duration
)

// newOperationCommand builds a cobra command that runs one wrapped operation
// against the reference given as the first argument (inline text, a file
// path, or an s3:// URI).
func newOperationCommand(name, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <input>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, name, args[0], nil)
		},
	}
}

func runOperation(cmd *cobra.Command, name, reference string, params map[string]string) error {
	appInstance, err := GetAppFromContext(cmd.Context())
	if err != nil {
		return err
	}
	w, ok := appInstance.Wrapper(name)
	if !ok {
		return fmt.Errorf("unknown operation %q", name)
	}

	ctx := cmd.Context()
	if invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, invokeTimeout)
		defer cancel()
	}

	env := w.Call(ctx, reference, wrapper.Options{
		Prompt: invokePrompt,
		Model:  invokeModel,
		Params: params,
	})
	if !env.OK {
		return fmt.Errorf("%s failed: %s", name, env.Error)
	}

	fmt.Println(env.Text)
	color.New(color.Faint).Fprintf(cmd.ErrOrStderr(),
		"model=%s tokens=%d/%d cost=$%s duration=%dms\n",
		env.Model, env.InputTokens, env.OutputTokens, env.Cost, env.DurationMS)
	return nil
}

func init() {
	commands := []*cobra.Command{
		newOperationCommand("summarize", "Summarize text, a file or an S3 object",
			"Produces a concise summary. Long inputs are chunked and summarized map-reduce style."),
		newOperationCommand("extract", "Extract entities from text",
			"Pulls people, organizations, places, dates and amounts out of the input as JSON."),
		newOperationCommand("mask", "Mask PII in text",
			"Replaces names, addresses, phone numbers, emails and IDs with bracketed placeholders."),
		newOperationCommand("generate", "Generate marketing copy from a brief",
			"Writes a product description from the provided product details and keywords."),
		newOperationCommand("grammar", "Correct grammar and spelling",
			"Fixes grammar, spelling and punctuation while preserving meaning and tone."),
	}
	for _, c := range commands {
		c.Flags().StringVar(&invokePrompt, "prompt", "", "Override the operation's default instruction")
		c.Flags().StringVar(&invokeModel, "model", "", "Override the configured default model")
		c.Flags().DurationVar(&invokeTimeout, "timeout", 0, "Abort the operation after this duration")
		rootCmd.AddCommand(c)
	}
}
