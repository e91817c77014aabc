// Package tokenizer provides local token estimation for places where no
// provider-reported usage is available (history budgeting, CSV context
// sizing, Gemini fallbacks).
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	log "github.com/sirupsen/logrus"
)

// Counter estimates the token count of a text.
type Counter interface {
	Count(text string) int
}

// Estimator is a tiktoken-backed Counter.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator resolves the encoding for the given model, falling back to
// cl100k_base for models tiktoken does not know.
func NewEstimator(model string) (*Estimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		log.Debugf("No tiktoken encoding for model %q, falling back to cl100k_base", model)
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tokenizer encoding: %w", err)
		}
	}
	return &Estimator{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (e *Estimator) Count(text string) int {
	return len(e.enc.Encode(text, nil, nil))
}
