package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Me(ctx context.Context, id Identity) (*User, error)
	// EnsureSuperuser creates a superuser with the given credentials unless a
	// user with that email already exists. It reports whether one was created.
	EnsureSuperuser(ctx context.Context, email, password string) (bool, error)
}

type service struct {
	repo   Repository
	tokens *TokenIssuer
	logger *slog.Logger
}

func NewService(repo Repository, tokens *TokenIssuer, logger *slog.Logger) Service {
	return &service{
		repo:   repo,
		tokens: tokens,
		logger: logger,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	user, err := s.createUser(ctx, req.Email, req.Password, false)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.respond(user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	return s.respond(user)
}

func (s *service) Me(ctx context.Context, id Identity) (*User, error) {
	return s.repo.GetByID(ctx, id.UserID)
}

func (s *service) EnsureSuperuser(ctx context.Context, email, password string) (bool, error) {
	_, err := s.createUser(ctx, email, password, true)
	if errors.Is(err, ErrEmailExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "superuser created", "email", normalizeEmail(email))
	return true, nil
}

func (s *service) createUser(ctx context.Context, email, password string, superuser bool) (*User, error) {
	email = normalizeEmail(email)

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:          email,
		HashedPassword: string(hashedPassword),
		IsActive:       true,
		IsSuperuser:    superuser,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) respond(user *User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: token, TokenType: "bearer", User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
