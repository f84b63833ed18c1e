package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/spa-parameshwar003/bookstore-api/internal/domain"
	"github.com/spa-parameshwar003/bookstore-api/internal/identity"
)

var (
	ErrMissingParameter    = errors.New("missing parameter")
	ErrInvalidQuantity     = errors.New("quantity must be greater than zero")
	ErrForbidden           = errors.New("admin privileges required")
	ErrUserNotFound        = errors.New("user not found")
	ErrBookNotFound        = errors.New("book not found")
	ErrInsufficientStock   = errors.New("not enough stock available")
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
)

// UpstreamAuthError carries the provider's response when it refused a code.
type UpstreamAuthError struct {
	StatusCode int
	Details    any
}

func (e *UpstreamAuthError) Error() string {
	return fmt.Sprintf("failed to exchange token (provider status %d)", e.StatusCode)
}

type Repository interface {
	CreateUser(ctx context.Context, email, name string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	SetUserAdmin(ctx context.Context, email string, isAdmin bool) (bool, error)

	ListBooks(ctx context.Context, semester *int) ([]domain.Book, error)
	CreateBook(ctx context.Context, b *domain.Book) (int64, error)
	GetBookByID(ctx context.Context, id int64) (*domain.Book, error)
	DeleteBook(ctx context.Context, id int64) (bool, error)
	DecrementStock(ctx context.Context, id int64, qty int) (*domain.Purchase, error)
}

type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*identity.Token, error)
}

type TokenIssuer interface {
	Issue(email string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

type Service struct {
	repo   Repository
	idp    IdentityProvider
	tokens TokenIssuer
	events Publisher
}

// NewService wires the use cases. events may be nil.
func NewService(r Repository, idp IdentityProvider, tokens TokenIssuer, events Publisher) *Service {
	return &Service{repo: r, idp: idp, tokens: tokens, events: events}
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", key).Msg("publish event failed")
	}
}

// Authorize fails with ErrUserNotFound or ErrForbidden unless email belongs
// to an admin.
func (s *Service) Authorize(ctx context.Context, email string) error {
	_, err := s.requireAdmin(ctx, email)
	return err
}

func (s *Service) requireAdmin(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsAdmin {
		return nil, ErrForbidden
	}
	return user, nil
}
