package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/models"
)

// ErrProvider marks search-provider failures. Callers treat anything
// wrapping it as transient and retryable.
var ErrProvider = errors.New("search provider error")

// Provider is the external video search collaborator.
type Provider interface {
	Search(ctx context.Context, query string, safeSearch bool) ([]models.CandidateItem, error)
}

// Client talks to the search provider's JSON API.
type Client struct {
	baseURL string
	apiKey  string
	log     *zap.Logger
	client  *http.Client
}

func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     log,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type searchResponse struct {
	Items []models.CandidateItem `json:"items"`
}

func (c *Client) Search(ctx context.Context, query string, safeSearch bool) ([]models.CandidateItem, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "video")
	if safeSearch {
		params.Set("safe_search", "strict")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	c.log.Debug("search query completed",
		zap.String("query", query),
		zap.Int("results", len(parsed.Items)))

	return parsed.Items, nil
}
