// Package pricing turns token counts into money. Cost arithmetic is done
// with decimals so fractional-cent per-token prices never accumulate
// floating-point drift.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"skald/internal/config"
	"skald/internal/models"
)

// ModelPrice holds the per-token prices for one model.
type ModelPrice struct {
	InputPerToken  decimal.Decimal
	OutputPerToken decimal.Decimal
}

// PriceTable maps model identifiers to their per-token prices. Built once
// at startup, read-only thereafter.
type PriceTable map[string]ModelPrice

// NewPriceTable parses the configured price strings. Unparseable or negative
// prices fail loudly here instead of producing wrong costs later.
func NewPriceTable(cfg map[string]config.PricingInfo) (PriceTable, error) {
	table := make(PriceTable, len(cfg))
	for model, info := range cfg {
		in, err := decimal.NewFromString(info.InputPerToken)
		if err != nil {
			return nil, fmt.Errorf("pricing for model %q: bad input_per_token %q: %w", model, info.InputPerToken, err)
		}
		out, err := decimal.NewFromString(info.OutputPerToken)
		if err != nil {
			return nil, fmt.Errorf("pricing for model %q: bad output_per_token %q: %w", model, info.OutputPerToken, err)
		}
		if in.IsNegative() || out.IsNegative() {
			return nil, fmt.Errorf("pricing for model %q: prices must not be negative", model)
		}
		table[model] = ModelPrice{InputPerToken: in, OutputPerToken: out}
	}
	return table, nil
}

// Calculator computes invocation costs from a PriceTable. Pure, no I/O.
type Calculator struct {
	table PriceTable
}

func NewCalculator(table PriceTable) *Calculator {
	return &Calculator{table: table}
}

// Cost returns inputTokens*inputPrice + outputTokens*outputPrice for the
// given model. An unknown model is an explicit error: silently mispricing a
// call is worse than a visible failure.
func (c *Calculator) Cost(model string, inputTokens, outputTokens int) (decimal.Decimal, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative token count (in=%d, out=%d)", models.ErrValidation, inputTokens, outputTokens)
	}
	price, ok := c.table[model]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no pricing for model %q", models.ErrUnknownModel, model)
	}
	cost := price.InputPerToken.Mul(decimal.NewFromInt(int64(inputTokens))).
		Add(price.OutputPerToken.Mul(decimal.NewFromInt(int64(outputTokens))))
	return cost, nil
}
