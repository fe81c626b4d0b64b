package ledger

import (
	"context"
	"time"

	"charity-service/internal/investment"

	"github.com/uptrace/bun/dialect"
)

// allocationLockKey is the advisory lock that serializes allocation runs on
// PostgreSQL. Row locks alone cannot stop a new project and a new donation
// from missing each other, since neither row exists yet.
const allocationLockKey = 0x63686172

// Transfer is money that moved from the new source into one existing record.
type Transfer struct {
	To     Ref   `json:"to"`
	Amount int64 `json:"amount"`
	Closed bool  `json:"closed"`
}

// Allocation describes what one creation did to the ledger.
type Allocation struct {
	Source    Ref        `json:"source"`
	Invested  int64      `json:"invested"`
	Closed    bool       `json:"closed"`
	Transfers []Transfer `json:"transfers"`
}

// ClosedCount counts every record the run closed, the source included.
func (a *Allocation) ClosedCount() int {
	n := 0
	if a.Closed {
		n++
	}
	for _, t := range a.Transfers {
		if t.Closed {
			n++
		}
	}
	return n
}

// CreateProject inserts project and lets it absorb pending donations in the
// same transaction.
func (s *Store) CreateProject(ctx context.Context, project *Project, now time.Time) (*Allocation, error) {
	var alloc *Allocation
	err := s.RunInTx(ctx, "create_project", func(ctx context.Context, tx *Store) error {
		if err := tx.lockAllocations(ctx); err != nil {
			return err
		}
		donations, err := tx.OpenDonations(ctx)
		if err != nil {
			return err
		}
		alloc, err = invest(ctx, tx, project, donations, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

// CreateDonation inserts donation and pours it into open projects in the
// same transaction.
func (s *Store) CreateDonation(ctx context.Context, donation *Donation, now time.Time) (*Allocation, error) {
	var alloc *Allocation
	err := s.RunInTx(ctx, "create_donation", func(ctx context.Context, tx *Store) error {
		if err := tx.lockAllocations(ctx); err != nil {
			return err
		}
		projects, err := tx.OpenProjects(ctx)
		if err != nil {
			return err
		}
		alloc, err = invest(ctx, tx, donation, projects, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

func invest[S Record](ctx context.Context, tx *Store, source Record, sinks []S, now time.Time) (*Allocation, error) {
	fund := source.Funds()
	fund.CreateDate = now
	fund.InvestedAmount = 0
	fund.FullyInvested = false
	fund.CloseDate = nil

	moves := investment.Allocate(source, sinks, now)

	if err := tx.insert(ctx, source); err != nil {
		return nil, err
	}

	alloc := &Allocation{
		Source:    source.Ref(),
		Invested:  fund.InvestedAmount,
		Closed:    fund.FullyInvested,
		Transfers: make([]Transfer, 0, len(moves)),
	}
	for _, move := range moves {
		if err := tx.saveFunds(ctx, move.Sink); err != nil {
			return nil, err
		}
		alloc.Transfers = append(alloc.Transfers, Transfer{
			To:     move.Sink.Ref(),
			Amount: move.Amount,
			Closed: move.Closed,
		})
	}
	return alloc, nil
}

// lockAllocations blocks until no other allocation transaction is running.
// The lock is released at commit or rollback.
func (s *Store) lockAllocations(ctx context.Context) error {
	if s.idb.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := s.idb.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", allocationLockKey)
	return err
}

func (s *Store) insert(ctx context.Context, record Record) error {
	start := time.Now()
	_, err := s.idb.NewInsert().Model(record).Exec(ctx)
	s.observe(ctx, "insert", tableOf(record.Ref()), start, err)
	if err != nil && record.Ref().Kind == KindProject && uniqueViolation(err) {
		return ErrDuplicateName
	}
	return err
}

// saveFunds writes back the money columns of a record touched by allocation.
func (s *Store) saveFunds(ctx context.Context, record Record) error {
	start := time.Now()
	result, err := s.idb.NewUpdate().
		Model(record).
		Column("invested_amount", "fully_invested", "close_date").
		WherePK().
		Exec(ctx)
	s.observe(ctx, "update", tableOf(record.Ref()), start, err)

	if err != nil {
		return err
	}
	return expectRow(result)
}
