package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"skald/internal/models"
	"skald/internal/tokenizer"
	"skald/internal/wrapper"
)

// csvTokenBudget bounds how much of a CSV file is placed in the prompt.
const csvTokenBudget = 6000

// QueryCSV answers a natural-language question over CSV content. The
// question arrives in opts.Prompt (or opts.Params["question"]); the resolved
// input is the CSV itself. Oversized files are cut down row-by-row to the
// token budget.
func (o *Operations) QueryCSV(counter tokenizer.Counter) wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		content, err := o.textOf(in)
		if err != nil {
			return nil, err
		}
		question := opts.Prompt
		if question == "" {
			question = opts.Params["question"]
		}
		if question == "" {
			return nil, fmt.Errorf("%w: a question is required for CSV querying", models.ErrValidation)
		}

		reader := csv.NewReader(strings.NewReader(content))
		reader.FieldsPerRecord = -1
		records, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("%w: input is not valid CSV: %v", models.ErrValidation, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: CSV input is empty", models.ErrValidation)
		}

		table := renderCSV(records)
		if counter != nil {
			for counter.Count(table) > csvTokenBudget && len(records) > 2 {
				records = records[:len(records)/2]
				table = renderCSV(records) + "\n... (rows truncated to fit context)"
			}
			if counter.Count(table) > csvTokenBudget {
				log.Warnf("CSV header alone exceeds the %d-token budget", csvTokenBudget)
			}
		}

		system := "You are a data analyst. Answer the question using only the CSV data provided. " +
			"If the data cannot answer it, say so."
		user := fmt.Sprintf("CSV data:\n%s\n\nQuestion: %s", table, question)

		comp, err := o.complete(ctx, system, user, o.model(opts))
		if err != nil {
			return nil, err
		}
		return resultOf(comp), nil
	}
}

func renderCSV(records [][]string) string {
	var b strings.Builder
	for _, row := range records {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
