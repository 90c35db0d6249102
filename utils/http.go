package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// StatusError is returned for a non 2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// APIClient calls a JSON HTTP API. Transport errors, 429 and 5xx responses
// are retried with exponential backoff; other failures are returned at once.
type APIClient struct {
	BaseURL    string
	HTTP       *http.Client
	Header     http.Header
	MaxRetries uint

	// InitialInterval overrides the first backoff delay.
	InitialInterval time.Duration
}

func NewAPIClient(baseURL string, timeout time.Duration, maxRetries uint) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTP:       &http.Client{Timeout: timeout},
		Header:     make(http.Header),
		MaxRetries: maxRetries,
	}
}

// DoJSON sends in as the JSON body (when not nil) and decodes the response
// into out (when not nil).
func (c *APIClient) DoJSON(ctx context.Context, method, path string, in, out any) error {
	return c.doJSON(ctx, method, path, in, out, c.MaxRetries+1)
}

// DoJSONOnce is DoJSON without retries. Use it for calls the remote side
// does not deduplicate.
func (c *APIClient) DoJSONOnce(ctx context.Context, method, path string, in, out any) error {
	return c.doJSON(ctx, method, path, in, out, 1)
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, in, out any, tries uint) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	eb := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		eb.InitialInterval = c.InitialInterval
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.do(ctx, method, path, payload, out)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("method", method).Str("path", path).Int("attempt", attempt).Msg("api call failed")
		}
		return struct{}{}, err
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(tries))
	return err
}

func (c *APIClient) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	for k, v := range c.Header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		se := &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				return backoff.RetryAfter(secs)
			}
			return se
		case resp.StatusCode >= 500:
			return se
		default:
			return backoff.Permanent(se)
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
