package usecase

import (
	"context"

	"github.com/spa-parameshwar003/bookstore-api/internal/domain"
	"github.com/spa-parameshwar003/bookstore-api/internal/events"
)

// Buy takes qty copies of a book out of stock in a single conditional update.
func (s *Service) Buy(ctx context.Context, email string, bookID int64, qty int) (*domain.Purchase, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.repo.DecrementStock(ctx, bookID, qty)
	if err != nil {
		return nil, err
	}
	if p == nil {
		b, err := s.repo.GetBookByID(ctx, bookID)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, ErrBookNotFound
		}
		return nil, ErrInsufficientStock
	}

	s.publish(ctx, events.PurchaseCompleted, events.PurchasePayload{
		BookID:         p.BookID,
		Title:          p.Title,
		Quantity:       p.Quantity,
		RemainingStock: p.RemainingStock,
		Buyer:          email,
	})
	return p, nil
}
