package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justbri/moviepicker/config"
	"github.com/justbri/moviepicker/models"
	"github.com/justbri/moviepicker/services"
	"github.com/justbri/moviepicker/store"
	"github.com/justbri/moviepicker/viewmodel"
)

type fakeMetadata struct {
	details map[string]models.MovieDetails
}

// offlineTitle makes fakeMetadata fail the way an unreachable OMDb does.
const offlineTitle = "Offline"

func (f fakeMetadata) Lookup(_ context.Context, title, _ string) (models.MovieDetails, error) {
	if title == offlineTitle {
		return models.MovieDetails{}, fmt.Errorf("%w: omdb: connection refused", services.ErrNetwork)
	}
	d, ok := f.details[title]
	if !ok {
		return models.MovieDetails{}, fmt.Errorf("%w: Movie not found!", services.ErrNotFound)
	}
	return d, nil
}

type fakeTrailers struct{}

func (fakeTrailers) SearchTrailer(_ context.Context, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("%w: title is required", services.ErrValidation)
	}
	return "https://www.youtube.com/embed/abc123", nil
}

func strPtr(s string) *string { return &s }

func testMetadata() fakeMetadata {
	return fakeMetadata{details: map[string]models.MovieDetails{
		"Alien": {
			Name:       "Alien",
			Genres:     []models.Genre{models.GenreHorror, models.GenreSciFi},
			Plot:       strPtr("The crew of a commercial spacecraft encounters a deadly lifeform."),
			IMDbRating: strPtr("8.5"),
		},
		"Heat": {
			Name:   "Heat",
			Genres: []models.Genre{models.GenreAction},
		},
	}}
}

type testClient struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T) *testClient {
	t.Helper()

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "0", Environment: "test"},
		Session: config.SessionConfig{Secret: "test-secret-0123456789", MaxAge: time.Hour},
		View:    config.ViewConfig{PageSize: 5},
	}
	st := store.NewMemoryStore()
	cmds := services.NewCommands(testMetadata(), fakeTrailers{}, st)
	h := New(cfg, st, cmds, services.NewMemoryUsers(), services.NewSessionManager(cfg))

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, srv: srv, client: &http.Client{Jar: jar}}
}

func (c *testClient) do(method, path string, body any, out any) int {
	c.t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, r)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *testClient) register(username string) services.Identity {
	c.t.Helper()
	var id services.Identity
	status := c.do(http.MethodPost, "/api/register", map[string]string{
		"username":    username,
		"email":       username + "@example.test",
		"displayName": strings.ToUpper(username),
		"password":    "correct-horse",
	}, &id)
	require.Equal(c.t, http.StatusCreated, status)
	return id
}

func (c *testClient) addMovie(title string) string {
	c.t.Helper()
	var out map[string]string
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, "/api/movies", map[string]string{"title": title}, &out))
	return out["id"]
}

func TestPing(t *testing.T) {
	c := newTestServer(t)
	resp, err := c.client.Get(c.srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
}

func TestAuthFlow(t *testing.T) {
	c := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", nil, nil))

	id := c.register("ripley")
	assert.Equal(t, "RIPLEY", id.DisplayName)

	var me services.Identity
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/me", nil, &me))
	assert.Equal(t, id, me)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/api/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/me", nil, nil))

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/login",
		map[string]string{"username": "ripley", "password": "wrong-password"}, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/login",
		map[string]string{"username": "ripley", "password": "correct-horse"}, &me))
	assert.Equal(t, id, me)
}

func TestRegister_Validation(t *testing.T) {
	c := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/register",
		map[string]string{"username": "ab", "email": "not-an-email", "password": "short"}, nil))

	c.register("ripley")
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/api/register", map[string]string{
		"username": "ripley", "email": "other@example.test", "password": "correct-horse",
	}, nil))
}

func TestErrors_ReportKindAndRetryable(t *testing.T) {
	c := newTestServer(t)
	c.register("ripley")

	post := func(title string) (int, map[string]any) {
		data, err := json.Marshal(map[string]string{"title": title})
		require.NoError(t, err)
		resp, err := c.client.Post(c.srv.URL+"/api/movies", "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	status, body := post(offlineTitle)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "network", body["kind"])
	assert.Equal(t, true, body["retryable"])

	status, body = post("Nope")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["kind"])
	assert.NotContains(t, body, "retryable")
}

func TestMovies_RequireAuth(t *testing.T) {
	c := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/movies/view", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/movies", map[string]string{"title": "Alien"}, nil))
}

func TestMovieLifecycle(t *testing.T) {
	c := newTestServer(t)
	c.register("ripley")

	id := c.addMovie("Alien")
	require.NotEmpty(t, id)

	var vm viewmodel.ViewModel
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view", nil, &vm))
	assert.Equal(t, 1, vm.Total)
	require.Len(t, vm.Groups, 2)
	assert.Equal(t, models.GenreHorror, vm.Groups[0].Genre)
	assert.Equal(t, models.GenreSciFi, vm.Groups[1].Genre)

	var card movieCard
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/"+id, nil, &card))
	assert.Equal(t, "Alien", card.Name)
	assert.Equal(t, models.StatusWishlist, card.Status)
	assert.Equal(t, models.ActorsUnavailable, card.ActorsText)
	assert.Equal(t, "8.5", card.RatingText)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/api/movies/"+id+"/toggle",
		map[string]string{"currentStatus": "wishlist"}, nil))

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view", nil, &vm))
	assert.Empty(t, vm.Flat, "moved off the wishlist")
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view?status=watched", nil, &vm))
	require.Len(t, vm.Flat, 1)
	assert.Equal(t, id, vm.Flat[0].ID)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/api/movies/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/movies/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/api/movies/"+id, nil, nil))
}

func TestAddMovie_Errors(t *testing.T) {
	c := newTestServer(t)
	c.register("ripley")

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/movies", map[string]string{"title": ""}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/movies", map[string]string{"title": "   "}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/movies", map[string]string{"title": "Alien", "year": "79"}, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/movies", map[string]string{"title": "Nope"}, nil))

	var vm viewmodel.ViewModel
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view", nil, &vm))
	assert.Zero(t, vm.Total)
}

func TestView_FiltersAndPaging(t *testing.T) {
	c := newTestServer(t)
	c.register("ripley")
	c.addMovie("Alien")
	c.addMovie("Heat")

	var vm viewmodel.ViewModel
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view?genre=Action", nil, &vm))
	require.Len(t, vm.Flat, 1)
	assert.Equal(t, "Heat", vm.Flat[0].Name)

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view?q=ali&minRating=8", nil, &vm))
	require.Len(t, vm.Flat, 1)
	assert.Equal(t, "Alien", vm.Flat[0].Name)

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view?page=9", nil, &vm))
	assert.Equal(t, 1, vm.Page)
}

func TestPick(t *testing.T) {
	c := newTestServer(t)
	c.register("ripley")

	var out map[string]json.RawMessage
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/movies/pick", nil, &out))
	assert.JSONEq(t, `"No movies in list"`, string(out["message"]))

	id := c.addMovie("Heat")
	out = nil
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/movies/pick", nil, &out))
	var card movieCard
	require.NoError(t, json.Unmarshal(out["movie"], &card))
	assert.Equal(t, id, card.ID)
}

func TestTrailer(t *testing.T) {
	c := newTestServer(t)
	c.register("ripley")

	var out map[string]string
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/trailer?title=Alien", nil, &out))
	assert.Equal(t, "https://www.youtube.com/embed/abc123", out["url"])

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/trailer", nil, nil))
}

func TestOwnersAreIsolated(t *testing.T) {
	c := newTestServer(t)
	c.register("ripley")
	id := c.addMovie("Alien")
	require.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/api/logout", nil, nil))

	c.register("dallas")
	var vm viewmodel.ViewModel
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/movies/view", nil, &vm))
	assert.Zero(t, vm.Total)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/movies/"+id, nil, nil))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", services.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("x: %w", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", services.ErrNetwork), http.StatusBadGateway},
		{fmt.Errorf("x: %w", services.ErrStore), http.StatusInternalServerError},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrUserExists, http.StatusConflict},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestCORS_ConfiguredOrigin(t *testing.T) {
	cfg := &config.Config{
		Session:  config.SessionConfig{Secret: "test-secret-0123456789", MaxAge: time.Hour},
		View:     config.ViewConfig{PageSize: 5},
		Security: config.SecurityConfig{CORSOrigins: []string{"https://movies.example.test"}},
	}
	st := store.NewMemoryStore()
	h := New(cfg, st, services.NewCommands(testMetadata(), fakeTrailers{}, st), services.NewMemoryUsers(), services.NewSessionManager(cfg))

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "https://movies.example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, "https://movies.example.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRateLimit_MutatingRoutes(t *testing.T) {
	cfg := &config.Config{
		Session:  config.SessionConfig{Secret: "test-secret-0123456789", MaxAge: time.Hour},
		View:     config.ViewConfig{PageSize: 5},
		Security: config.SecurityConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute},
	}
	st := store.NewMemoryStore()
	h := New(cfg, st, services.NewCommands(testMetadata(), fakeTrailers{}, st), services.NewMemoryUsers(), services.NewSessionManager(cfg))
	routes := h.Routes()

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}
