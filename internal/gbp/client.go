package gbp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Business Profile v4 API base URL.
	defaultBaseURL = "https://mybusiness.googleapis.com/v4"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second
)

// APIError carries the upstream status and message of a failed local posts
// API call. Creation is not idempotent upstream, so callers must not retry
// on their own.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("local posts API error (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the Google Business Profile local posts API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a local posts API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
	}
}

// googleErrorResponse is the standard Google API error envelope.
type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// CreateLocalPost performs the single creation call and returns the
// platform's canonical representation of the created post. Any non-2xx
// response or transport failure surfaces as an *APIError.
func (c *Client) CreateLocalPost(ctx context.Context, accountID, locationID string, payload *LocalPost, accessToken string) (*PublishResult, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/locations/%s/localPosts", c.baseURL, accountID, locationID)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("create local post: marshal payload: %w", err)
	}

	log.Debug().Str("accountId", accountID).Str("locationId", locationID).
		Str("postType", payload.PostType).Int("mediaItems", len(payload.Media)).
		Msg("Local post create request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create local post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("create local post: read response: %w", err)
	}

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", time.Since(startTime)).
		Msg("Local post create response")

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp googleErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, &APIError{StatusCode: httpResp.StatusCode, Message: errResp.Error.Message}
		}
		return nil, &APIError{StatusCode: httpResp.StatusCode, Message: truncate(string(respBody), 300)}
	}

	var result PublishResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("create local post: parse response: %w (body: %s)", err, truncate(string(respBody), 200))
	}
	if result.Name == "" {
		return nil, fmt.Errorf("create local post: no resource name in response (body: %s)", truncate(string(respBody), 200))
	}

	log.Info().Str("name", result.Name).Str("state", result.State).
		Int("mediaItems", len(result.Media)).Msg("Local post created")
	return &result, nil
}

// FetchMedia downloads the body of a platform-hosted media URL so it can be
// re-stored as a local blob. Returns the body and its content type,
// defaulting to application/octet-stream when the server sends none.
func (c *Client) FetchMedia(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media: build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch media: unexpected status %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media: read body: %w", err)
	}

	contentType := httpResp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return body, contentType, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
