package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"charity-service/internal/metrics"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	if m == nil {
		m = metrics.NewMock()
	}
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	r.metrics.Database.RecordQuery(ctx, "insert", "users", time.Since(start), err)
	if err != nil && uniqueViolation(err) {
		return ErrEmailExists
	}
	return err
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "u.email = ?", email)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getBy(ctx, "u.id = ?", id)
}

func (r *repository) getBy(ctx context.Context, where string, arg interface{}) (*User, error) {
	start := time.Now()
	user := new(User)
	err := r.db.NewSelect().Model(user).Where(where, arg).Scan(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)
	return exists, err
}

// uniqueViolation reports whether err comes from a unique constraint. The
// only unique user column is the email.
func uniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
