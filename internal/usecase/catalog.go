package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/spa-parameshwar003/bookstore-api/internal/domain"
	"github.com/spa-parameshwar003/bookstore-api/internal/events"
)

// ListBooks returns every book, or only those of one semester when semester is
// non-nil. The result is never nil.
func (s *Service) ListBooks(ctx context.Context, semester *int) ([]domain.Book, error) {
	return s.repo.ListBooks(ctx, semester)
}

func (s *Service) AddBook(ctx context.Context, email string, b domain.Book) (*domain.Book, error) {
	if _, err := s.requireAdmin(ctx, email); err != nil {
		return nil, err
	}

	id, err := s.repo.CreateBook(ctx, &b)
	if err != nil {
		return nil, err
	}
	b.ID = id

	zerolog.Ctx(ctx).Info().Int64("book_id", id).Str("by", email).Msg("book added")
	s.publish(ctx, events.BookCreated, events.BookPayload{
		BookID:         b.ID,
		Title:          b.Title,
		Author:         b.Author,
		Price:          b.Price,
		Semester:       b.Semester,
		AvailableStock: b.AvailableStock,
		By:             email,
	})
	return &b, nil
}

func (s *Service) DeleteBook(ctx context.Context, email string, id int64) error {
	if _, err := s.requireAdmin(ctx, email); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrBookNotFound
	}

	zerolog.Ctx(ctx).Info().Int64("book_id", id).Str("by", email).Msg("book deleted")
	s.publish(ctx, events.BookDeleted, events.BookPayload{BookID: id, By: email})
	return nil
}
