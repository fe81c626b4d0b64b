package donation

import (
	"context"
	"fmt"
	"log/slog"

	"charity-service/internal/auth"
	"charity-service/internal/events"
	"charity-service/internal/investment"
	"charity-service/internal/ledger"

	"github.com/go-playground/validator/v10"
)

type Service interface {
	CreateDonation(ctx context.Context, donor auth.Identity, req CreateRequest) (*ledger.Donation, error)
	ListDonations(ctx context.Context) ([]ledger.Donation, error)
	ListUserDonations(ctx context.Context, donor auth.Identity) ([]ledger.Donation, error)
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

// CreateDonation records a donation owned by donor and immediately invests it
// into open projects, oldest first.
func (s *service) CreateDonation(ctx context.Context, donor auth.Identity, req CreateRequest) (*ledger.Donation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}

	userID := donor.UserID
	donation := &ledger.Donation{UserID: &userID}
	donation.FullAmount = req.FullAmount
	if req.Comment != nil {
		donation.Comment = *req.Comment
	}
	now := s.clock.Now()

	alloc, err := s.store.CreateDonation(ctx, donation, now)
	if err != nil {
		return nil, err
	}

	s.notifier.Created(ctx, alloc, donation.FullAmount, now)
	return donation, nil
}

func (s *service) ListDonations(ctx context.Context) ([]ledger.Donation, error) {
	return s.store.ListDonations(ctx)
}

func (s *service) ListUserDonations(ctx context.Context, donor auth.Identity) ([]ledger.Donation, error) {
	return s.store.ListDonationsByUser(ctx, donor.UserID)
}
