package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"charity-service/internal/events"
	"charity-service/internal/investment"
	"charity-service/internal/ledger"

	"github.com/go-playground/validator/v10"
)

var errEmptyUpdate = errors.New("at least one of name, description, full_amount must be set")

type Service interface {
	ListProjects(ctx context.Context) ([]ledger.Project, error)
	GetProject(ctx context.Context, id int64) (*ledger.Project, error)
	CreateProject(ctx context.Context, req CreateRequest) (*ledger.Project, error)
	UpdateProject(ctx context.Context, id int64, req UpdateRequest) (*ledger.Project, error)
	DeleteProject(ctx context.Context, id int64) (*ledger.Project, error)
}

type service struct {
	store    *ledger.Store
	notifier *events.Notifier
	clock    investment.Clock
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(store *ledger.Store, notifier *events.Notifier, clock investment.Clock, logger *slog.Logger) Service {
	if clock == nil {
		clock = investment.SystemClock
	}
	return &service{
		store:    store,
		notifier: notifier,
		clock:    clock,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *service) ListProjects(ctx context.Context) ([]ledger.Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *service) GetProject(ctx context.Context, id int64) (*ledger.Project, error) {
	return s.store.GetProject(ctx, id)
}

func (s *service) CreateProject(ctx context.Context, req CreateRequest) (*ledger.Project, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}

	project := &ledger.Project{Name: req.Name, Description: req.Description}
	project.FullAmount = req.FullAmount
	now := s.clock.Now()

	var alloc *ledger.Allocation
	err := s.store.RunInTx(ctx, "create_project", func(ctx context.Context, tx *ledger.Store) error {
		if err := ensureNameFree(ctx, tx, project.Name, 0); err != nil {
			return err
		}
		var err error
		alloc, err = tx.CreateProject(ctx, project, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Created(ctx, alloc, project.FullAmount, now)
	return project, nil
}

// UpdateProject applies a partial edit. Checks run in a fixed order: the
// project must exist, be open, keep a unique name and not drop its target
// below what it already holds.
func (s *service) UpdateProject(ctx context.Context, id int64, req UpdateRequest) (*ledger.Project, error) {
	if req.empty() {
		return nil, fmt.Errorf("%w: %v", ledger.ErrValidation, errEmptyUpdate)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}

	var (
		project      *ledger.Project
		closedByEdit bool
	)
	err := s.store.RunInTx(ctx, "update_project", func(ctx context.Context, tx *ledger.Store) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p.FullyInvested {
			return ledger.ErrEntityClosed
		}

		var columns []string
		if req.Name != nil && *req.Name != p.Name {
			if err := ensureNameFree(ctx, tx, *req.Name, p.ID); err != nil {
				return err
			}
			p.Name = *req.Name
			columns = append(columns, "name")
		}
		if req.Description != nil {
			p.Description = *req.Description
			columns = append(columns, "description")
		}
		if req.FullAmount != nil {
			if err := investment.Retarget(&p.Fund, *req.FullAmount, s.clock.Now()); err != nil {
				return err
			}
			closedByEdit = p.FullyInvested
			columns = append(columns, "full_amount", "fully_invested", "close_date")
		}

		project = p
		if len(columns) == 0 {
			return nil
		}
		return tx.UpdateProject(ctx, p, columns...)
	})
	if err != nil {
		return nil, err
	}

	if closedByEdit {
		s.notifier.Closed(ctx, project.Ref())
	}
	return project, nil
}

func (s *service) DeleteProject(ctx context.Context, id int64) (*ledger.Project, error) {
	var project *ledger.Project
	err := s.store.RunInTx(ctx, "delete_project", func(ctx context.Context, tx *ledger.Store) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p.InvestedAmount > 0 {
			return ledger.ErrEntityHasFunds
		}
		project = p
		return tx.DeleteProject(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "project deleted", "project_id", project.ID)
	return project, nil
}

func ensureNameFree(ctx context.Context, tx *ledger.Store, name string, exceptID int64) error {
	taken, err := tx.ProjectNameTaken(ctx, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return ledger.ErrDuplicateName
	}
	return nil
}
