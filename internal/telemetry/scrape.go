package telemetry

import (
	"fmt"
	"sort"
	"strings"
)

// Scrape renders the aggregate counters in the Prometheus text exposition
// format for pull-based collection. Output order is stable (operations
// sorted by name) and the render works off a snapshot, so it never blocks
// concurrent Record calls for longer than the copy.
func (r *Recorder) Scrape() string {
	snap := r.Snapshot()

	ops := make([]string, 0, len(snap))
	for op := range snap {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var b strings.Builder
	writeHeader := func(name, help, typ string) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
	}

	writeHeader("skald_requests_total", "Total number of wrapped invocations.", "counter")
	for _, op := range ops {
		fmt.Fprintf(&b, "skald_requests_total{operation=%q} %d\n", op, snap[op].Calls)
	}

	writeHeader("skald_failures_total", "Total number of failed invocations.", "counter")
	for _, op := range ops {
		fmt.Fprintf(&b, "skald_failures_total{operation=%q} %d\n", op, snap[op].Failures)
	}

	writeHeader("skald_input_tokens_total", "Total input tokens consumed.", "counter")
	for _, op := range ops {
		fmt.Fprintf(&b, "skald_input_tokens_total{operation=%q} %d\n", op, snap[op].InputTokens)
	}

	writeHeader("skald_output_tokens_total", "Total output tokens produced.", "counter")
	for _, op := range ops {
		fmt.Fprintf(&b, "skald_output_tokens_total{operation=%q} %d\n", op, snap[op].OutputTokens)
	}

	writeHeader("skald_cost_dollars_total", "Cumulative cost in dollars.", "counter")
	for _, op := range ops {
		fmt.Fprintf(&b, "skald_cost_dollars_total{operation=%q} %s\n", op, snap[op].Cost.String())
	}

	writeHeader("skald_response_time_milliseconds_sum", "Cumulative wall-clock duration.", "counter")
	for _, op := range ops {
		fmt.Fprintf(&b, "skald_response_time_milliseconds_sum{operation=%q} %d\n", op, snap[op].DurationMS)
	}

	return b.String()
}
