package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	UserCreated       = "user.created"
	BookCreated       = "catalog.book.created"
	BookDeleted       = "catalog.book.deleted"
	PurchaseCompleted = "purchase.completed"
)

type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type UserCreatedPayload struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

type BookPayload struct {
	BookID         int64   `json:"book_id"`
	Title          string  `json:"title,omitempty"`
	Author         string  `json:"author,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Semester       int     `json:"semester,omitempty"`
	AvailableStock int     `json:"available_stock,omitempty"`
	By             string  `json:"by"`
}

type PurchasePayload struct {
	BookID         int64  `json:"book_id"`
	Title          string `json:"title"`
	Quantity       int    `json:"quantity"`
	RemainingStock int    `json:"remaining_stock"`
	Buyer          string `json:"buyer"`
}

// Rabbit publishes domain events to a topic exchange. A nil *Rabbit is a
// valid publisher that drops everything.
type Rabbit struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	now      func() time.Time
}

// NewRabbit returns nil, nil when url is empty.
func NewRabbit(url, exchange string) (*Rabbit, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "events: dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "events: channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "events: declare exchange")
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange, now: time.Now}, nil
}

func (r *Rabbit) Publish(ctx context.Context, key string, payload any) error {
	if r == nil || r.ch == nil {
		return nil
	}
	body, err := r.encode(key, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    r.now(),
		Body:         body,
	})
}

func (r *Rabbit) encode(key string, payload any) ([]byte, error) {
	body, err := json.Marshal(Envelope{Type: key, Timestamp: r.now().UTC(), Payload: payload})
	return body, errors.Wrap(err, "events: encode")
}

func (r *Rabbit) Close() error {
	if r == nil {
		return nil
	}
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
