package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/justbri/moviepicker/models"
	"github.com/justbri/moviepicker/services"
	"github.com/justbri/moviepicker/store"
	"github.com/justbri/moviepicker/viewmodel"
)

type addMovieRequest struct {
	Title string `json:"title" validate:"required"`
	Year  string `json:"year" validate:"omitempty,len=4,numeric"`
}

type toggleRequest struct {
	CurrentStatus models.Status `json:"currentStatus" validate:"required,oneof=wishlist watched"`
}

// movieCard is a movie with its display strings filled in.
type movieCard struct {
	models.Movie
	PlotText    string `json:"plot_text"`
	ActorsText  string `json:"actors_text"`
	WebsiteText string `json:"website_text"`
	RatingText  string `json:"rating_text"`
}

func cardOf(m models.Movie) movieCard {
	return movieCard{
		Movie:       m,
		PlotText:    m.PlotText(),
		ActorsText:  m.ActorsText(),
		WebsiteText: m.WebsiteText(),
		RatingText:  m.RatingText(),
	}
}

// buildView renders the caller's collection once from a fresh snapshot.
func (h *Handler) buildView(r *http.Request) (viewmodel.ViewModel, error) {
	f, page := parseFilters(r)
	records, err := store.First(r.Context(), h.store, ownerID(r))
	if err != nil {
		return viewmodel.ViewModel{}, fmt.Errorf("load collection: %w: %v", services.ErrStore, err)
	}
	return viewmodel.Build(records, f, page, h.cfg.View.PageSize), nil
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	vm, err := h.buildView(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vm)
}

func (h *Handler) AddMovie(w http.ResponseWriter, r *http.Request) {
	var req addMovieRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.commands.AddMovie(r.Context(), ownerID(r), req.Title, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	m, err := h.commands.Details(r.Context(), ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardOf(m))
}

func (h *Handler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	if err := h.commands.DeleteMovie(r.Context(), ownerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.commands.ToggleStatus(r.Context(), ownerID(r), chi.URLParam(r, "id"), req.CurrentStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pick draws a random movie from the grouping the same filters would display.
func (h *Handler) Pick(w http.ResponseWriter, r *http.Request) {
	vm, err := h.buildView(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	m, ok := h.commands.PickRandom(vm.Groups)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"message": services.NoMoviesMessage})
		return
	}
	writeJSON(w, http.StatusOK, map[string]movieCard{"movie": cardOf(m)})
}

func (h *Handler) Trailer(w http.ResponseWriter, r *http.Request) {
	url, err := h.commands.Trailer(r.Context(), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
