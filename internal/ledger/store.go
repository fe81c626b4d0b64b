package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"charity-service/internal/metrics"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	projectsTable  = "charity_projects"
	donationsTable = "donations"
)

// Store is the data access layer for both sides of the ledger. A Store
// obtained inside RunInTx issues every query on that transaction.
type Store struct {
	db      *bun.DB
	idb     bun.IDB
	metrics *metrics.Metrics
}

func NewStore(db *bun.DB, m *metrics.Metrics) *Store {
	if m == nil {
		m = metrics.NewMock()
	}
	return &Store{db: db, idb: db, metrics: m}
}

// RunInTx runs fn in a single database transaction. Everything fn writes is
// committed together or rolled back together. Calls made on a Store that is
// already transactional join the running transaction.
func (s *Store) RunInTx(ctx context.Context, name string, fn func(ctx context.Context, tx *Store) error) error {
	if s.inTx() {
		return fn(ctx, s)
	}

	start := time.Now()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: s.db, idb: tx, metrics: s.metrics})
	})
	s.metrics.Database.RecordTransaction(ctx, name, time.Since(start), err)
	return err
}

func (s *Store) inTx() bool {
	_, ok := s.idb.(bun.Tx)
	return ok
}

// forUpdate locks selected rows until commit where the database supports it.
func (s *Store) forUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if s.inTx() && s.idb.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}

func (s *Store) observe(ctx context.Context, operation, table string, start time.Time, err error) {
	s.metrics.Database.RecordQuery(ctx, operation, table, time.Since(start), err)
}

func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	start := time.Now()
	projects := []Project{}
	err := s.idb.NewSelect().
		Model(&projects).
		Order("create_date ASC", "id ASC").
		Scan(ctx)
	s.observe(ctx, "select", projectsTable, start, err)
	return projects, err
}

func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	start := time.Now()
	project := new(Project)
	err := s.forUpdate(s.idb.NewSelect().Model(project).Where("cp.id = ?", id)).Scan(ctx)
	s.observe(ctx, "select", projectsTable, start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

// ProjectNameTaken reports whether a project other than exceptID already
// uses name. The match is exact and case sensitive.
func (s *Store) ProjectNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	start := time.Now()
	exists, err := s.idb.NewSelect().
		Model((*Project)(nil)).
		Where("name = ?", name).
		Where("id <> ?", exceptID).
		Exists(ctx)
	s.observe(ctx, "select", projectsTable, start, err)
	return exists, err
}

// OpenProjects returns projects that still accept money, oldest first.
func (s *Store) OpenProjects(ctx context.Context) ([]*Project, error) {
	start := time.Now()
	var projects []*Project
	err := s.forUpdate(s.idb.NewSelect().
		Model(&projects).
		Where("fully_invested = ?", false).
		Order("create_date ASC", "id ASC")).
		Scan(ctx)
	s.observe(ctx, "select", projectsTable, start, err)
	return projects, err
}

func (s *Store) UpdateProject(ctx context.Context, project *Project, columns ...string) error {
	start := time.Now()
	result, err := s.idb.NewUpdate().
		Model(project).
		Column(columns...).
		WherePK().
		Exec(ctx)
	s.observe(ctx, "update", projectsTable, start, err)

	if err != nil {
		if uniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return expectRow(result)
}

func (s *Store) DeleteProject(ctx context.Context, project *Project) error {
	start := time.Now()
	result, err := s.idb.NewDelete().Model(project).WherePK().Exec(ctx)
	s.observe(ctx, "delete", projectsTable, start, err)

	if err != nil {
		return err
	}
	return expectRow(result)
}

func (s *Store) ListDonations(ctx context.Context) ([]Donation, error) {
	start := time.Now()
	donations := []Donation{}
	err := s.idb.NewSelect().
		Model(&donations).
		Order("create_date ASC", "id ASC").
		Scan(ctx)
	s.observe(ctx, "select", donationsTable, start, err)
	return donations, err
}

func (s *Store) ListDonationsByUser(ctx context.Context, userID int64) ([]Donation, error) {
	start := time.Now()
	donations := []Donation{}
	err := s.idb.NewSelect().
		Model(&donations).
		Where("user_id = ?", userID).
		Order("create_date ASC", "id ASC").
		Scan(ctx)
	s.observe(ctx, "select", donationsTable, start, err)
	return donations, err
}

func (s *Store) GetDonation(ctx context.Context, id int64) (*Donation, error) {
	start := time.Now()
	donation := new(Donation)
	err := s.idb.NewSelect().Model(donation).Where("d.id = ?", id).Scan(ctx)
	s.observe(ctx, "select", donationsTable, start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return donation, nil
}

// OpenDonations returns donations with money not yet invested, oldest first.
func (s *Store) OpenDonations(ctx context.Context) ([]*Donation, error) {
	start := time.Now()
	var donations []*Donation
	err := s.forUpdate(s.idb.NewSelect().
		Model(&donations).
		Where("fully_invested = ?", false).
		Order("create_date ASC", "id ASC")).
		Scan(ctx)
	s.observe(ctx, "select", donationsTable, start, err)
	return donations, err
}

// EnsureIndexes creates the indexes backing the open-entity scans.
func EnsureIndexes(ctx context.Context, db bun.IDB) error {
	indexes := []*bun.CreateIndexQuery{
		db.NewCreateIndex().Model((*Project)(nil)).Index("charity_projects_open_idx").
			Column("fully_invested", "create_date"),
		db.NewCreateIndex().Model((*Donation)(nil)).Index("donations_open_idx").
			Column("fully_invested", "create_date"),
		db.NewCreateIndex().Model((*Donation)(nil)).Index("donations_user_idx").
			Column("user_id"),
	}
	for _, q := range indexes {
		if _, err := q.IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func tableOf(ref Ref) string {
	if ref.Kind == KindProject {
		return projectsTable
	}
	return donationsTable
}

// uniqueViolation reports whether err comes from a unique constraint. The
// only unique ledger column is the project name.
func uniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
