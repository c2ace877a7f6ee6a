package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justbri/moviepicker/config"
	"github.com/justbri/moviepicker/httpclient"
	"github.com/justbri/moviepicker/metrics"
	"github.com/justbri/moviepicker/models"
)

// MetadataLookup resolves a title (and optional year) to normalised movie details.
type MetadataLookup interface {
	Lookup(ctx context.Context, title, year string) (models.MovieDetails, error)
}

// OMDbClient looks titles up against the OMDb API.
type OMDbClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[OMDbResponse]
}

func NewOMDbClient(cfg config.OMDbConfig, client *http.Client) *OMDbClient {
	if client == nil {
		client = httpclient.DefaultClient
	}
	return &OMDbClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
		cb:      newBreaker[OMDbResponse]("omdb", cfg.BreakerTimeout),
	}
}

// Lookup issues exactly one request to OMDb. Transport failures, non-200 responses
// and undecodable bodies are reported as ErrNetwork; a "Response":"False" body as ErrNotFound.
func (c *OMDbClient) Lookup(ctx context.Context, title, year string) (models.MovieDetails, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.MovieDetails{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if c.apiKey == "" {
		return models.MovieDetails{}, fmt.Errorf("%w: OMDB_API_KEY is not set", ErrNetwork)
	}

	searchURL, err := httpclient.BuildQueryURL(c.baseURL, map[string]string{
		"t":      title,
		"y":      strings.TrimSpace(year),
		"apikey": c.apiKey,
	})
	if err != nil {
		return models.MovieDetails{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	start := time.Now()
	raw, err := guard(c.cb, func() (OMDbResponse, error) {
		var out OMDbResponse
		if err := httpclient.GetJSON(ctx, searchURL, c.client, &out); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			return out, fmt.Errorf("%w: omdb: %v", ErrNetwork, err)
		}
		return out, nil
	})
	metrics.RecordUpstream("omdb", start, err)
	if err != nil {
		return models.MovieDetails{}, err
	}

	details, err := NormalizeMetadata(raw)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.MovieDetails{}, fmt.Errorf("no match on OMDb for %q: %w", title, err)
		}
		return models.MovieDetails{}, err
	}
	return details, nil
}
