package pgnative

import (
	"context"
	"strings"
	"time"
)

// ExplainMode selects between EXPLAIN and EXPLAIN ANALYZE, adapted from
// explain.Mode — the plan-only/with-execution split is server-side
// behavior, not client query planning, so it's fair game under spec.md's
// Non-goals (recorded in SPEC_FULL.md).
type ExplainMode int

const (
	Explain ExplainMode = iota
	ExplainAnalyze
)

func (m ExplainMode) String() string {
	switch m {
	case ExplainAnalyze:
		return "EXPLAIN ANALYZE"
	default:
		return "EXPLAIN"
	}
}

func (m ExplainMode) prefix() string {
	return m.String() + " "
}

// ExplainResult holds the output of an EXPLAIN call.
type ExplainResult struct {
	Plan     string
	Duration time.Duration
}

// Explain runs EXPLAIN or EXPLAIN ANALYZE for sql through the Session's own
// extended-query engine (component E) rather than a side-channel
// connection: the plan comes back as ordinary DataRows of one text column.
func (s *Session) Explain(ctx context.Context, mode ExplainMode, sql string, params ...any) (*ExplainResult, error) {
	start := time.Now()
	res, err := s.Query(ctx, mode.prefix()+sql, params...)
	if err != nil {
		return nil, err
	}

	var lines []string
	if res.Rows != nil {
		for res.Rows.Next() {
			v, err := res.Rows.Row().Scan(0)
			if err != nil {
				return nil, err
			}
			line, _ := v.(string)
			lines = append(lines, line)
		}
	}

	return &ExplainResult{
		Plan:     strings.Join(lines, "\n"),
		Duration: time.Since(start),
	}, nil
}
