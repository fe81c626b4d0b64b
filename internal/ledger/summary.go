package ledger

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// inconsistentWhere matches rows that break the per-record fund rules.
const inconsistentWhere = "invested_amount < 0 OR invested_amount > full_amount" +
	" OR fully_invested <> (invested_amount = full_amount)" +
	" OR fully_invested <> (close_date IS NOT NULL)"

// SideSummary aggregates one side of the ledger.
type SideSummary struct {
	Count        int   `json:"count"`
	Open         int   `json:"open"`
	FullAmount   int64 `json:"full_amount"`
	Invested     int64 `json:"invested"`
	Inconsistent int   `json:"inconsistent"`
}

// Summary is a point-in-time view of both sides of the ledger.
type Summary struct {
	Projects  SideSummary `json:"projects"`
	Donations SideSummary `json:"donations"`
}

// Balanced reports whether every unit taken from donations landed in a
// project and no record breaks the fund rules.
func (s Summary) Balanced() bool {
	return s.Projects.Invested == s.Donations.Invested &&
		s.Projects.Inconsistent == 0 &&
		s.Donations.Inconsistent == 0
}

// Unallocated is donated money still waiting for a project.
func (s Summary) Unallocated() int64 {
	return s.Donations.FullAmount - s.Donations.Invested
}

// Summarize reads both sides inside one transaction so the totals agree
// with each other.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var summary Summary
	err := s.RunInTx(ctx, "summarize", func(ctx context.Context, tx *Store) error {
		var err error
		if summary.Projects, err = tx.summarizeSide(ctx, (*Project)(nil), projectsTable); err != nil {
			return err
		}
		summary.Donations, err = tx.summarizeSide(ctx, (*Donation)(nil), donationsTable)
		return err
	})
	return summary, err
}

func (s *Store) summarizeSide(ctx context.Context, model interface{}, table string) (side SideSummary, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "aggregate", table, start, err) }()

	err = s.idb.NewSelect().
		Model(model).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(full_amount), 0)").
		ColumnExpr("COALESCE(SUM(invested_amount), 0)").
		Scan(ctx, &side.Count, &side.FullAmount, &side.Invested)
	if err != nil {
		return side, err
	}

	if side.Open, err = s.count(ctx, model, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("fully_invested = ?", false)
	}); err != nil {
		return side, err
	}

	side.Inconsistent, err = s.count(ctx, model, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(inconsistentWhere)
	})
	return side, err
}

func (s *Store) count(ctx context.Context, model interface{}, filter func(*bun.SelectQuery) *bun.SelectQuery) (int, error) {
	return filter(s.idb.NewSelect().Model(model)).Count(ctx)
}
