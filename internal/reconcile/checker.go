package reconcile

import (
	"context"
	"log/slog"
	"time"

	"charity-service/internal/ledger"
	"charity-service/internal/metrics"
)

// Report is the outcome of one reconciliation pass.
type Report struct {
	Summary     ledger.Summary `json:"summary"`
	Balanced    bool           `json:"balanced"`
	Unallocated int64          `json:"unallocated"`
	Problems    []string       `json:"problems,omitempty"`
	CheckedAt   time.Time      `json:"checked_at"`
}

// Checker compares both sides of the ledger. Money taken from donations must
// equal money received by projects, and every record must satisfy the fund
// rules.
type Checker struct {
	store   *ledger.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewChecker(store *ledger.Store, m *metrics.Metrics, logger *slog.Logger) *Checker {
	if m == nil {
		m = metrics.NewMock()
	}
	return &Checker{store: store, metrics: m, logger: logger}
}

func (c *Checker) Check(ctx context.Context) (*Report, error) {
	summary, err := c.store.Summarize(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Summary:     summary,
		Balanced:    summary.Balanced(),
		Unallocated: summary.Unallocated(),
		CheckedAt:   time.Now().UTC(),
	}

	if summary.Projects.Invested != summary.Donations.Invested {
		report.Problems = append(report.Problems, "invested totals differ")
		c.metrics.Ledger.RecordMismatch(ctx, "totals")
	}
	if n := summary.Projects.Inconsistent + summary.Donations.Inconsistent; n > 0 {
		report.Problems = append(report.Problems, "records violate fund rules")
		c.metrics.Ledger.RecordMismatch(ctx, "records")
	}

	if !report.Balanced {
		c.logger.ErrorContext(ctx, "ledger out of balance",
			"projects_invested", summary.Projects.Invested,
			"donations_invested", summary.Donations.Invested,
			"inconsistent_projects", summary.Projects.Inconsistent,
			"inconsistent_donations", summary.Donations.Inconsistent,
		)
	} else {
		c.logger.DebugContext(ctx, "ledger balanced",
			"invested", summary.Projects.Invested,
			"unallocated", report.Unallocated,
		)
	}
	return report, nil
}
