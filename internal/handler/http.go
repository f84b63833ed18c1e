package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"

	"github.com/spa-parameshwar003/bookstore-api/internal/domain"
	"github.com/spa-parameshwar003/bookstore-api/internal/handler/mw"
	"github.com/spa-parameshwar003/bookstore-api/internal/usecase"
)

const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON body")

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	service  *usecase.Service
	tokens   *mw.TokenManager
	db       Pinger
	validate *validator.Validate
}

func NewHandler(service *usecase.Service, tokens *mw.TokenManager, db Pinger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{service: service, tokens: tokens, db: db, validate: v}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.health)

	r.Post("/google-auth", h.googleAuth)
	r.Get("/books", h.listBooks)

	r.Group(func(r chi.Router) {
		r.Use(h.tokens.Middleware)
		r.With(h.requireAdmin("Only admins can add books")).Post("/admin/book", h.addBook)
		r.With(h.requireAdmin("Only admins can delete books")).Delete("/admin/book/{id}", h.deleteBook)
		r.Post("/buy", h.buy)
	})
}

// requireAdmin answers 403 with forbiddenMsg before the body or path is read.
func (h *Handler) requireAdmin(forbiddenMsg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := h.service.Authorize(r.Context(), mw.MustGetEmail(r.Context()))
			if err != nil {
				if errors.Is(err, usecase.ErrForbidden) {
					writeMsg(w, http.StatusForbidden, forbiddenMsg)
					return
				}
				h.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type googleAuthRequest struct {
	ServerAuthCode string `json:"serverAuthCode" validate:"required"`
	Username       string `json:"username"`
	Email          string `json:"email"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type authErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (h *Handler) googleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, authErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, authErrorResponse{Error: "Missing serverAuthCode"})
		return
	}

	token, err := h.service.GoogleAuth(r.Context(), req.ServerAuthCode, req.Username, req.Email)
	if err != nil {
		var upErr *usecase.UpstreamAuthError
		switch {
		case errors.Is(err, usecase.ErrMissingParameter):
			writeJSON(w, http.StatusBadRequest, authErrorResponse{Error: "Missing serverAuthCode"})
		case errors.As(err, &upErr):
			writeJSON(w, http.StatusBadRequest, authErrorResponse{Error: "Failed to exchange token", Details: upErr.Details})
		case errors.Is(err, usecase.ErrIdentityUnavailable):
			hlog.FromRequest(r).Warn().Err(err).Msg("identity provider unreachable")
			writeJSON(w, http.StatusBadGateway, authErrorResponse{Error: "Failed to reach identity provider"})
		default:
			hlog.FromRequest(r).Error().Err(err).Msg("google auth failed")
			writeJSON(w, http.StatusInternalServerError, authErrorResponse{Error: "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type bookResponse struct {
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Price          float64 `json:"price"`
	Semester       int     `json:"semester"`
	AvailableStock int     `json:"available_stock"`
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	var semester *int
	if raw := r.URL.Query().Get("semester"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeMsg(w, http.StatusBadRequest, "semester must be an integer")
			return
		}
		semester = &n
	}

	books, err := h.service.ListBooks(r.Context(), semester)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	res := make([]bookResponse, 0, len(books))
	for _, b := range books {
		res = append(res, bookResponse{
			Title:          b.Title,
			Author:         b.Author,
			Price:          b.Price,
			Semester:       b.Semester,
			AvailableStock: b.AvailableStock,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

type addBookRequest struct {
	Title          string   `json:"title" validate:"required"`
	Author         string   `json:"author" validate:"required"`
	Price          *float64 `json:"price" validate:"required"`
	Semester       *int     `json:"semester" validate:"required"`
	Description    string   `json:"description"`
	AvailableStock *int     `json:"available_stock" validate:"omitempty,min=0"`
}

func (h *Handler) addBook(w http.ResponseWriter, r *http.Request) {
	email := mw.MustGetEmail(r.Context())

	var req addBookRequest
	if !h.bind(w, r, &req) {
		return
	}

	b := domain.Book{
		Title:       req.Title,
		Author:      req.Author,
		Price:       *req.Price,
		Semester:    *req.Semester,
		Description: req.Description,
	}
	if req.AvailableStock != nil {
		b.AvailableStock = *req.AvailableStock
	}

	if _, err := h.service.AddBook(r.Context(), email, b); err != nil {
		if errors.Is(err, usecase.ErrForbidden) {
			writeMsg(w, http.StatusForbidden, "Only admins can add books")
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusCreated, "Book added successfully")
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	email := mw.MustGetEmail(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMsg(w, http.StatusBadRequest, "book id must be a positive integer")
		return
	}

	if err := h.service.DeleteBook(r.Context(), email, id); err != nil {
		if errors.Is(err, usecase.ErrForbidden) {
			writeMsg(w, http.StatusForbidden, "Only admins can delete books")
			return
		}
		h.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, "Book deleted successfully")
}

type buyRequest struct {
	BookID   int64 `json:"book_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) buy(w http.ResponseWriter, r *http.Request) {
	email := mw.MustGetEmail(r.Context())

	var req buyRequest
	if !h.bind(w, r, &req) {
		return
	}

	p, err := h.service.Buy(r.Context(), email, req.BookID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMsg(w, http.StatusOK, fmt.Sprintf("Purchased %d copies of %s", p.Quantity, p.Title))
}

// bind decodes and validates a JSON body, answering 400 itself on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeMsg(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeMsg(w, http.StatusBadRequest, "Missing or invalid parameter: "+verrs[0].Field())
			return false
		}
		writeMsg(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, usecase.ErrMissingParameter), errors.Is(err, usecase.ErrInvalidQuantity):
		writeMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, usecase.ErrForbidden):
		writeMsg(w, http.StatusForbidden, "Admin privileges required")
	case errors.Is(err, usecase.ErrBookNotFound):
		writeMsg(w, http.StatusNotFound, "Book not found")
	case errors.Is(err, usecase.ErrUserNotFound):
		writeMsg(w, http.StatusNotFound, "User not found")
	case errors.Is(err, usecase.ErrInsufficientStock):
		writeMsg(w, http.StatusBadRequest, "Not enough stock available")
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeMsg(w, http.StatusInternalServerError, "internal server error")
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
