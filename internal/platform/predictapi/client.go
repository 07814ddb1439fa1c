// Package predictapi talks to the prediction backend: REST lookups, the
// prediction intake, and the push channels that carry challenge events.
package predictapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// Client is the REST client for stream lookup, stream status, and prediction
// intake.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client.
//
// baseURL is the API root, e.g. "https://prediction-live.vercel.app/api".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// LookupStream maps a human-readable channel name to the backend's stream id.
// GET /streams/lookup?id=<name>
func (c *Client) LookupStream(ctx context.Context, name string) (string, error) {
	params := url.Values{}
	params.Set("id", name)

	body, err := c.doGet(ctx, "/streams/lookup?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("predictapi: lookup %s: %w: %v", name, domain.ErrResolution, err)
	}

	var out lookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("predictapi: decode lookup: %w: %v", domain.ErrResolution, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("predictapi: lookup %s: %w: no id returned", name, domain.ErrResolution)
	}
	return out.ID, nil
}

// StreamStatus reports whether the stream currently accepts challenges.
// GET /streams/{id}/challenge
func (c *Client) StreamStatus(ctx context.Context, streamID string) (domain.StreamStatus, error) {
	path := fmt.Sprintf("/streams/%s/challenge", url.PathEscape(streamID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.StreamStatus{}, fmt.Errorf("predictapi: stream status %s: %w", streamID, err)
	}

	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.StreamStatus{}, fmt.Errorf("predictapi: decode stream status: %w", err)
	}
	return out.toDomain(streamID), nil
}

// SubmitPrediction posts a prediction to the intake endpoint.
// POST /predictions
//
// A rejected submission that still carries a JSON body is returned alongside
// the error so callers can surface the server's message.
func (c *Client) SubmitPrediction(ctx context.Context, sub domain.PredictionSubmission) (domain.PredictionResponse, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return domain.PredictionResponse{}, fmt.Errorf("predictapi: marshal prediction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(payload))
	if err != nil {
		return domain.PredictionResponse{}, fmt.Errorf("predictapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PredictionResponse{}, fmt.Errorf("predictapi: submit prediction: %w: %v", domain.ErrSubmission, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PredictionResponse{}, fmt.Errorf("predictapi: read prediction response: %w", err)
	}

	var out domain.PredictionResponse
	decodeErr := json.Unmarshal(body, &out)

	if statusErr := checkHTTPStatus(resp.StatusCode, body); statusErr != nil {
		out.Success = false
		return out, fmt.Errorf("predictapi: submit prediction: %w: %v", domain.ErrSubmission, statusErr)
	}
	if decodeErr != nil {
		return domain.PredictionResponse{}, fmt.Errorf("predictapi: decode prediction response: %w: %v", domain.ErrSubmission, decodeErr)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
