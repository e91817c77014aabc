package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skald/internal/models"
	"skald/internal/wrapper"
)

type fakeExecutor struct {
	schema   string
	rows     string
	executed []string
	execErr  error
}

func (f *fakeExecutor) Schema(context.Context) (string, error) {
	return f.schema, nil
}

func (f *fakeExecutor) Execute(_ context.Context, query string) (string, error) {
	f.executed = append(f.executed, query)
	if f.execErr != nil {
		return "", f.execErr
	}
	return f.rows, nil
}

func TestQueryDataRunsPlannedQuery(t *testing.T) {
	p := &fakeProvider{replies: []string{
		"Let me check. [SQL]SELECT COUNT(*) FROM orders[/SQL]",
		"There are 42 orders.",
	}}
	exec := &fakeExecutor{
		schema: "CREATE TABLE orders (id INTEGER PRIMARY KEY)",
		rows:   "COUNT(*)\n42\n",
	}
	op := newOps(p).QueryData(exec)

	res, err := op(context.Background(), inlineInput("how many orders are there?"), wrapper.Options{})
	require.NoError(t, err)
	assert.Equal(t, "There are 42 orders.", res.Text)
	require.Len(t, exec.executed, 1)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", exec.executed[0])

	payload, ok := res.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", payload["sql"])

	// Tokens from both completions are summed.
	assert.Equal(t, 14, res.InputTokens)
	assert.Equal(t, 6, res.OutputTokens)
}

func TestQueryDataDirectAnswerSkipsDatabase(t *testing.T) {
	p := &fakeProvider{replies: []string{"That question needs no query."}}
	exec := &fakeExecutor{schema: "CREATE TABLE t (x)"}
	op := newOps(p).QueryData(exec)

	res, err := op(context.Background(), inlineInput("what is SQL?"), wrapper.Options{})
	require.NoError(t, err)
	assert.Empty(t, exec.executed)
	assert.Equal(t, "That question needs no query.", res.Text)
	assert.Nil(t, res.Payload)
}

func TestQueryDataExecutionFailureIsInvocationFailure(t *testing.T) {
	p := &fakeProvider{replies: []string{"[SQL]SELECT broken[/SQL]"}}
	exec := &fakeExecutor{schema: "CREATE TABLE t (x)", execErr: errors.New("no such column")}
	op := newOps(p).QueryData(exec)

	_, err := op(context.Background(), inlineInput("q"), wrapper.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvocationFailure))
}

func TestQueryDataWithoutExecutorIsValidationError(t *testing.T) {
	op := newOps(&fakeProvider{}).QueryData(nil)

	_, err := op(context.Background(), inlineInput("q"), wrapper.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}
