package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/spa-parameshwar003/bookstore-api/internal/events"
	"github.com/spa-parameshwar003/bookstore-api/internal/identity"
)

// GoogleAuth exchanges a server auth code with the identity provider, makes
// sure a local user exists for email and returns a session token for it.
// An existing user is never modified.
func (s *Service) GoogleAuth(ctx context.Context, code, username, email string) (string, error) {
	if code == "" {
		return "", ErrMissingParameter
	}

	if _, err := s.idp.ExchangeCode(ctx, code); err != nil {
		var exErr *identity.ExchangeError
		if errors.As(err, &exErr) {
			return "", &UpstreamAuthError{StatusCode: exErr.StatusCode, Details: exErr.Details()}
		}
		if errors.Is(err, identity.ErrUnavailable) {
			return "", errors.Join(ErrIdentityUnavailable, err)
		}
		return "", err
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		created, err := s.repo.CreateUser(ctx, email, username)
		if err != nil {
			return "", err
		}
		if created {
			user, err = s.repo.GetUserByEmail(ctx, email)
			if err != nil {
				return "", err
			}
			if user != nil {
				zerolog.Ctx(ctx).Info().Int64("user_id", user.ID).Str("email", email).Msg("user created")
				s.publish(ctx, events.UserCreated, events.UserCreatedPayload{
					UserID: user.ID, Email: user.Email, Name: user.Name,
				})
			}
		}
	}

	return s.tokens.Issue(email)
}

// SetAdmin flips the admin flag for an existing user.
func (s *Service) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	found, err := s.repo.SetUserAdmin(ctx, email, isAdmin)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	return nil
}
