// Copyright 2024-2026 Aiku AI

package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// maxErrorBody caps how much of a failed response body is kept in a
// RequestError.
const maxErrorBody = 1024

// APIClient performs REST calls authenticated with the user's token and
// implements the operation table behind trigger files.
type APIClient struct {
	cfg     *Config
	token   string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewAPIClient creates a REST client. cfg must have been post-processed.
func NewAPIClient(cfg *Config, token string, log zerolog.Logger) *APIClient {
	return &APIClient{
		cfg:     cfg,
		token:   token,
		baseURL: strings.TrimSuffix(cfg.APIURL, "/"),
		http:    &http.Client{},
		log:     log.With().Str("component", "rest").Logger(),
	}
}

// Create sends a POST with a JSON body and decodes the JSON reply into out.
// A nil out discards the reply.
func (c *APIClient) Create(ctx context.Context, path string, body, out any) (int, error) {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Read sends a GET and decodes the JSON reply into out.
func (c *APIClient) Read(ctx context.Context, path string, out any) (int, error) {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, &RequestError{Method: method, Path: path, Err: fmt.Errorf("failed to encode body: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimPrefix(path, "/"), reqBody)
	if err != nil {
		return 0, &RequestError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("Sending request")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return resp.StatusCode, nil
}
