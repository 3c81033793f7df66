package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"scout-sync/internal/config"
	"scout-sync/internal/constants"
	"scout-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// PushRequest carries locally pending records to the server. Force makes the
// server accept every record unconditionally.
type PushRequest struct {
	Records []domain.MatchRecord `json:"records"`
	Force   bool                 `json:"force"`
}

// RecordError is a per-record validation failure; the rest of the batch is
// unaffected.
type RecordError struct {
	RecordID string `json:"record_id"`
	Error    string `json:"error"`
}

// PushResponse acknowledges a push and returns the server's full record list
// so the client can reconcile in the same round trip.
type PushResponse struct {
	Accepted   int                  `json:"accepted"`
	Errors     []RecordError        `json:"errors"`
	Records    []domain.MatchRecord `json:"records"`
	ServerTime time.Time            `json:"server_time"`
}

// PullResponse is the authoritative server state.
type PullResponse struct {
	Records    []domain.MatchRecord `json:"records"`
	TeamStats  []domain.TeamStats   `json:"team_stats"`
	ServerTime time.Time            `json:"server_time"`
}

// Client talks to the central scouting server's sync endpoints.
type Client struct {
	baseURL string
	client  *fasthttp.Client
	logger  zerolog.Logger
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.ServerURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.SyncTimeout,
			WriteTimeout:        constants.SyncTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger.With().Str("component", "sync_client").Logger(),
	}
}

// PullAll fetches the complete server record set and team aggregates.
func (c *Client) PullAll(ctx context.Context) (*PullResponse, error) {
	return doRequest[PullResponse](ctx, c, fasthttp.MethodGet, c.baseURL+"/api/sync/full", nil)
}

// Push submits records and returns the server's acknowledgment.
func (c *Client) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push request: %w", err)
	}
	return doRequest[PushResponse](ctx, c, fasthttp.MethodPost, c.baseURL+"/api/sync/push", body)
}

// permanentError marks a response the retry loop must not repeat.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func doRequest[T any](ctx context.Context, client *Client, method, url string, body []byte) (*T, error) {
	var result *T

	attempt := func() error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(method)
		if body != nil {
			req.Header.SetContentType("application/json")
			req.SetBody(body)
		}

		deadline, ok := ctx.Deadline()
		if ok {
			if err := client.client.DoDeadline(req, resp, deadline); err != nil {
				return err
			}
		} else {
			if err := client.client.Do(req, resp); err != nil {
				return err
			}
		}

		status := resp.StatusCode()
		if status >= 400 && status < 500 {
			return &permanentError{err: fmt.Errorf("sync API error: %d", status)}
		}
		if status != fasthttp.StatusOK {
			return fmt.Errorf("sync API error: %d", status)
		}

		var decoded T
		if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
			return &permanentError{err: fmt.Errorf("failed to decode sync response: %w", err)}
		}
		result = &decoded
		return nil
	}

	var lastErr error
	delay := constants.SyncRetryBaseDelay
	for i := 1; i <= constants.SyncRetryAttempts; i++ {
		lastErr = attempt()
		if lastErr == nil {
			return result, nil
		}
		if perm, ok := lastErr.(*permanentError); ok {
			return nil, perm.err
		}
		if i == constants.SyncRetryAttempts {
			break
		}
		client.logger.Debug().Err(lastErr).Dur("delay", delay).Int("attempt", i).Msg("sync request failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > constants.SyncRetryMaxDelay {
			delay = constants.SyncRetryMaxDelay
		}
	}
	return nil, fmt.Errorf("sync request failed after %d attempts: %w", constants.SyncRetryAttempts, lastErr)
}
