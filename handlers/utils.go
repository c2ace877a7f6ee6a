package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/justbri/moviepicker/middleware"
	"github.com/justbri/moviepicker/models"
	"github.com/justbri/moviepicker/services"
	"github.com/justbri/moviepicker/viewmodel"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError logs err once and maps its kind to a status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.Info("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Kind:      errorKind(err),
		Retryable: services.Retryable(err),
	})
}

func errorStatus(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, services.ErrValidation), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUserExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, services.ErrValidation), errors.As(err, &verrs):
		return "validation"
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, services.ErrNetwork):
		return "network"
	case errors.Is(err, services.ErrStore):
		return "store"
	default:
		return ""
	}
}

// decodeBody reads a JSON body into v and validates its struct tags.
func (h *Handler) decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", services.ErrValidation, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", services.ErrValidation)
	}
	return h.validate.Struct(v)
}

func ownerID(r *http.Request) string {
	id, _ := middleware.IdentityFrom(r.Context())
	return id.ID
}

// parseFilters reads the view parameters shared by the view and pick endpoints.
func parseFilters(r *http.Request) (viewmodel.Filters, int) {
	q := r.URL.Query()
	f := viewmodel.Filters{
		Status:    models.ParseStatus(q.Get("status")),
		Search:    q.Get("q"),
		Genre:     q.Get("genre"),
		MinRating: q.Get("minRating"),
	}
	if f.Genre == "" {
		f.Genre = viewmodel.AllGenres
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	return f, page
}
