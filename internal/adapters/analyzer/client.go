package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"feedback_ingest/internal/adapters/observability"
	"feedback_ingest/internal/domain"
)

const analyzePath = "/api/analyze-feedback"

// Client calls the AI analysis endpoint once per feedback text. Failures are
// returned as-is; retrying is the caller's decision.
type Client struct {
	origin string
	hc     *http.Client
	rl     *rate.Limiter
}

func New(origin string, rps int) (*Client, error) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return nil, fmt.Errorf("analyzer origin is required")
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		origin: origin,
		hc:     &http.Client{Timeout: 60 * time.Second},
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Error is a non-2xx answer from the analysis endpoint.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func (c *Client) Analyze(ctx context.Context, text, apiKey string) (domain.Classification, error) {
	if apiKey == "" {
		return domain.Classification{}, domain.ErrMissingAPIKey
	}
	if err := c.rl.Wait(ctx); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %w", domain.ErrNotAttempted, err)
	}

	body, err := json.Marshal(map[string]string{"texto": text})
	if err != nil {
		return domain.Classification{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+analyzePath, bytes.NewReader(body))
	if err != nil {
		return domain.Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("analyzer", "analyze-feedback", 0, time.Since(start))
		return domain.Classification{}, fmt.Errorf("analyze feedback: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("analyzer", "analyze-feedback", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Classification{}, &Error{Status: resp.StatusCode, Message: readErrorMessage(resp)}
	}

	var out domain.Classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Classification{}, fmt.Errorf("decode analysis: %w", err)
	}
	return out, nil
}

func readErrorMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if s := http.StatusText(resp.StatusCode); s != "" {
		return s
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
