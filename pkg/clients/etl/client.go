// Package etl triggers connector syncs on the remote ETL service and waits for
// them to finish.
package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// ClientInterface defines the operations the vault needs from the ETL service
type ClientInterface interface {
	StartRun(ctx context.Context, req StartRunRequest) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	RunAndWait(ctx context.Context, req StartRunRequest) (SyncResult, error)
}

type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new ETL client with the given options
func NewClient(options ...ClientOption) *Client {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// StartRun asks the service to sync one connector. The service answers as soon
// as the run is accepted.
func (c *Client) StartRun(ctx context.Context, req StartRunRequest) (*Run, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/runs", req)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	var run Run
	if err := c.handleResponse(resp, &run); err != nil {
		return nil, fmt.Errorf("failed to process start run response: %w", err)
	}

	return &run, nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run Run
	if err := c.handleResponse(resp, &run); err != nil {
		return nil, fmt.Errorf("failed to process get run response: %w", err)
	}

	return &run, nil
}

// RunAndWait starts a run and polls it until it reaches a terminal status or
// the configured run timeout elapses.
func (c *Client) RunAndWait(ctx context.Context, req StartRunRequest) (SyncResult, error) {
	if req.ManualSyncID == "" {
		req.ManualSyncID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RunTimeout)
	defer cancel()

	run, err := c.StartRun(ctx, req)
	if err != nil {
		return SyncResult{}, err
	}

	log.Info().
		Str("run_id", run.ID).
		Str("connector_id", req.ConnectorID).
		Str("account_id", req.AccountID).
		Str("manual_sync_id", req.ManualSyncID).
		Msg("ETL run started")

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for !run.Status.IsTerminal() {
		if run.ID == "" {
			return SyncResult{}, fmt.Errorf("ETL service returned a pending run without an id")
		}

		select {
		case <-ctx.Done():
			return SyncResult{}, fmt.Errorf("timed out waiting for run %s: %w", run.ID, ctx.Err())
		case <-ticker.C:
		}

		next, err := c.GetRun(ctx, run.ID)
		if err != nil {
			if IsRetryableError(err) {
				log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to poll ETL run, retrying")
				continue
			}
			return SyncResult{}, err
		}
		run = next
	}

	if run.Status == RunStatusFailed {
		return SyncResult{}, &RunFailedError{RunID: run.ID, Details: run.Details}
	}

	return c.syncResult(req, run), nil
}

func (c *Client) syncResult(req StartRunRequest, run *Run) SyncResult {
	result := SyncResult{
		RunID:        run.ID,
		ConnectorID:  req.ConnectorID,
		AccountID:    req.AccountID,
		ManualSyncID: req.ManualSyncID,
		Status:       run.Status,
		SyncedAt:     c.now().UTC(),
		ErrorMessage: SummarizeErrors(run.Errors),
	}

	if run.CompletedAt != nil {
		result.SyncedAt = run.CompletedAt.UTC()
	}

	if run.RowCount != nil {
		result.RowCount = *run.RowCount
	}

	if result.ErrorMessage != "" {
		result.Status = RunStatusPartialSuccess
	}

	return result
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyBytes []byte

	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + path
	requestID := xid.New().String()

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		var requestBody io.Reader
		if bodyBytes != nil {
			requestBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, requestBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range c.config.DefaultHeaders {
			req.Header.Set(key, value)
		}

		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		req.Header.Set("X-Request-ID", requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			log.Error().
				Int("status_code", resp.StatusCode).
				Str("path", path).
				Str("request_id", requestID).
				Msg("ETL service error")

			resp.Body.Close()
			lastErr = &Error{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("server error: %d", resp.StatusCode),
				RequestID:  requestID,
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

func (c *Client) handleResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResponse struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}

		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.Unmarshal(body, &errorResponse) == nil {
			switch {
			case errorResponse.Error != "":
				message = errorResponse.Error
			case errorResponse.Message != "":
				message = errorResponse.Message
			}
		}

		return &Error{
			StatusCode: resp.StatusCode,
			Message:    message,
			Body:       string(body),
			RequestID:  resp.Request.Header.Get("X-Request-ID"),
		}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
