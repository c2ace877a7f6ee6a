package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justbri/moviepicker/config"
	"github.com/justbri/moviepicker/httpclient"
	"github.com/justbri/moviepicker/metrics"
)

const (
	trailerQuerySuffix = " official trailer"
	embedURLPrefix     = "https://www.youtube.com/embed/"
)

// TrailerSearch finds a playable trailer URL for a title.
type TrailerSearch interface {
	SearchTrailer(ctx context.Context, title string) (string, error)
}

// YouTubeSearchResponse is the subset of the YouTube Data API search result we consume.
type YouTubeSearchResponse struct {
	Items []struct {
		ID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type YouTubeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[YouTubeSearchResponse]
}

func NewYouTubeClient(cfg config.YouTubeConfig, client *http.Client) *YouTubeClient {
	if client == nil {
		client = httpclient.DefaultClient
	}
	return &YouTubeClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
		cb:      newBreaker[YouTubeSearchResponse]("youtube", cfg.BreakerTimeout),
	}
}

// SearchTrailer searches "<title> official trailer" and returns the embed URL of the first hit.
func (c *YouTubeClient) SearchTrailer(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: YOUTUBE_API_KEY is not set", ErrNetwork)
	}

	searchURL, err := httpclient.BuildQueryURL(c.baseURL, map[string]string{
		"part":       "snippet",
		"q":          title + trailerQuerySuffix,
		"key":        c.apiKey,
		"maxResults": "1",
		"type":       "video",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	start := time.Now()
	res, err := guard(c.cb, func() (YouTubeSearchResponse, error) {
		var out YouTubeSearchResponse
		if err := httpclient.GetJSON(ctx, searchURL, c.client, &out); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			return out, fmt.Errorf("%w: youtube: %v", ErrNetwork, err)
		}
		return out, nil
	})
	metrics.RecordUpstream("youtube", start, err)
	if err != nil {
		return "", err
	}

	if len(res.Items) == 0 || res.Items[0].ID.VideoID == "" {
		return "", fmt.Errorf("no trailer found for %q: %w", title, ErrNotFound)
	}
	return embedURLPrefix + res.Items[0].ID.VideoID, nil
}
