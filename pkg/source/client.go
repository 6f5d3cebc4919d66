package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"cheeseagent/pkg/cheese"
	"cheeseagent/pkg/config"
	errs "cheeseagent/pkg/errors"
	"cheeseagent/pkg/logger"
	"cheeseagent/pkg/ratelimit"
	"cheeseagent/pkg/retry"
)

// searchResponse is the wire shape of the image-search endpoint.
type searchResponse struct {
	Results []searchResult `json:"results"`
}

// searchResult is one hit. The url field may be a regular http(s) URL
// or an inline data URI, depending on how the backend surfaced the
// image.
type searchResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Client is an image-search client backed by a JSON search endpoint.
type Client struct {
	http    *resty.Client
	limiter ratelimit.Limiter
	retrier *retry.Retrier
	logger  logger.Logger
}

// NewClient creates a search client from the source configuration.
func NewClient(cfg *config.SourceConfig) *Client {
	http := resty.New()
	http.SetBaseURL(cfg.Endpoint)
	http.SetTimeout(time.Duration(cfg.Timeout))
	http.SetHeader("User-Agent", cfg.UserAgent)
	http.SetHeader("Accept", "application/json, image/*")
	if cfg.APIKey != "" {
		http.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &Client{
		http:    http,
		limiter: ratelimit.NewTokenBucket(rpm, time.Minute),
		retrier: retry.New(cfg.MaxRetries),
		logger:  logger.GetLogger(),
	}
}

// Search queries the endpoint for up to limit photo candidates in the
// category. Results arrive in discovery order; inline data URIs are
// decoded eagerly so dedup can fingerprint the bytes.
func (c *Client) Search(ctx context.Context, category cheese.Category, limit int) ([]Candidate, error) {
	query := category.SearchQuery()

	var body searchResponse
	err := c.retrier.Do(ctx, func() error {
		c.limiter.Wait()

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"q":       query,
				"type":    "photo",
				"license": "creative-commons",
				"limit":   fmt.Sprintf("%d", limit),
			}).
			SetResult(&body).
			Get("/search")
		if err != nil {
			return errs.Wrap(errs.ErrorTypeNetwork, err, "search request failed: %v", err)
		}
		return statusError(resp.StatusCode(), "search")
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(body.Results))
	seen := make(map[string]bool, len(body.Results))
	for _, result := range body.Results {
		if result.URL == "" || seen[result.URL] {
			continue
		}
		seen[result.URL] = true

		cand := Candidate{
			URL:      result.URL,
			Category: category,
			Query:    query,
		}
		if strings.HasPrefix(result.URL, "data:image") {
			data, err := decodeDataURI(result.URL)
			if err != nil {
				c.logger.WarnWithFields("skipping undecodable data URI result", map[string]interface{}{
					"category": string(category),
					"error":    err.Error(),
				})
				continue
			}
			cand.Data = data
		}
		candidates = append(candidates, cand)
		if len(candidates) >= limit {
			break
		}
	}

	c.logger.DebugWithFields("search completed", map[string]interface{}{
		"category":   string(category),
		"query":      query,
		"candidates": len(candidates),
	})

	return candidates, nil
}

// Fetch resolves a candidate to image bytes.
func (c *Client) Fetch(ctx context.Context, cand Candidate) ([]byte, error) {
	if len(cand.Data) > 0 {
		return cand.Data, nil
	}
	if strings.HasPrefix(cand.URL, "data:image") {
		return decodeDataURI(cand.URL)
	}

	var data []byte
	err := c.retrier.Do(ctx, func() error {
		c.limiter.Wait()

		resp, err := c.http.R().
			SetContext(ctx).
			Get(cand.URL)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeNetwork, err, "image fetch failed: %v", err)
		}
		if err := statusError(resp.StatusCode(), "fetch"); err != nil {
			return err
		}
		data = resp.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// statusError maps an HTTP status to the error taxonomy. Any 2xx maps
// to nil.
func statusError(code int, op string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 429:
		return errs.New(errs.ErrorTypeRateLimit, "%s rate limited", op).WithCode(code)
	case code == 404:
		return errs.New(errs.ErrorTypeNotFound, "%s target not found", op).WithCode(code)
	case code >= 500:
		return errs.New(errs.ErrorTypeServerError, "%s failed upstream", op).WithCode(code)
	default:
		return errs.New(errs.ErrorTypeUnknown, "%s returned unexpected status", op).WithCode(code)
	}
}

// decodeDataURI extracts the payload of a data:image/...;base64 URI.
func decodeDataURI(uri string) ([]byte, error) {
	_, encoded, found := strings.Cut(uri, ",")
	if !found {
		return nil, errs.New(errs.ErrorTypeParsing, "malformed data URI")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "data URI payload is not valid base64")
	}
	return data, nil
}
