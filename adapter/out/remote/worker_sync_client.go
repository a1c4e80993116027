// Package remote delivers classified messages to a remote ingestion endpoint.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"
	"jobtrack_worker/pkg/httputil"
	"jobtrack_worker/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// SecretHeader carries the shared secret on every request.
const SecretHeader = "X-Sync-Secret"

const (
	importPath      = "/api/email-sync/import"
	correctionsPath = "/api/email-sync/corrections"
	messagesPath    = "/api/email-sync/messages/"

	DefaultChunkSize = 100
)

var ErrUnauthorized = errors.New("sync endpoint rejected the shared secret")

// StatusError is a non-2xx answer from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sync endpoint returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type ClientConfig struct {
	BaseURL    string
	Secret     string
	ChunkSize  int
	HTTPClient *http.Client
}

// Client implements out.StagingSink over HTTP.
type Client struct {
	base   string
	secret string
	chunk  int
	http   *http.Client
	cb     *resilience.Breaker
	log    zerolog.Logger
}

var _ out.StagingSink = (*Client)(nil)

func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httputil.NewClient(httputil.SyncClientConfig())
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	logger := log.With().Str("component", "sync_client").Logger()
	cb := resilience.DefaultBreakerConfig("sync-endpoint")
	cb.ConsecutiveFailures = 3

	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		secret: cfg.Secret,
		chunk:  chunk,
		http:   hc,
		cb:     resilience.NewBreaker(cb, logger),
		log:    logger,
	}
}

// =============================================================================
// Wire shapes
// =============================================================================

type importRequest struct {
	Records []domain.ImportRecord `json:"records"`
}

type correctionsRequest struct {
	Corrections []domain.CorrectionRecord `json:"corrections"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

// =============================================================================
// out.StagingSink
// =============================================================================

// Submit posts records in chunks. A failed chunk stops delivery; counts from
// earlier chunks are returned with the error.
func (c *Client) Submit(ctx context.Context, records []domain.ImportRecord) (domain.ImportSummary, error) {
	var total domain.ImportSummary
	for start := 0; start < len(records); start += c.chunk {
		end := min(start+c.chunk, len(records))
		var sum domain.ImportSummary
		if err := c.do(ctx, http.MethodPost, importPath, importRequest{Records: records[start:end]}, &sum); err != nil {
			return total, err
		}
		total.Add(sum)
	}
	return total, nil
}

func (c *Client) Correct(ctx context.Context, corrections []domain.CorrectionRecord) (domain.CorrectionSummary, error) {
	var total domain.CorrectionSummary
	for start := 0; start < len(corrections); start += c.chunk {
		end := min(start+c.chunk, len(corrections))
		var sum domain.CorrectionSummary
		if err := c.do(ctx, http.MethodPost, correctionsPath, correctionsRequest{Corrections: corrections[start:end]}, &sum); err != nil {
			return total, err
		}
		total.Add(sum)
	}
	return total, nil
}

func (c *Client) Delete(ctx context.Context, messageID string) (bool, error) {
	var resp deleteResponse
	path := messagesPath + url.PathEscape(domain.NormalizeMessageID(messageID))
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// State reports the breaker state.
func (c *Client) State() string {
	return c.cb.State()
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	err := c.cb.Execute(func() error {
		err := c.roundTrip(ctx, method, path, body, result)
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return resilience.Permanent(err)
		}
		return err
	})
	var se *StatusError
	if errors.As(err, &se) && se.Code < 500 {
		return err
	}
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Str("state", c.cb.State()).Msg("sync request failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(SecretHeader, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httputil.DoWithContext(ctx, c.http, req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
