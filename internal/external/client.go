// Package external holds the HTTP clients for the services the order engine
// consumes: the catalog, the document store and the provider schedule.
package external

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

	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/retry"
	"go.uber.org/zap"
)

// errNotFound is returned by do for a 404; each client decides what a
// missing resource means for it.
var errNotFound = errors.New("remote resource not found")

// Options configures a client. Zero values fall back to sane defaults.
type Options struct {
	Timeout    time.Duration
	Retry      retry.Config
	Logger     *zap.Logger
	HTTPClient *http.Client
}

type client struct {
	name    string
	baseURL string
	timeout time.Duration
	retry   retry.Config
	http    *http.Client
	logger  *zap.Logger
}

func newClient(name, baseURL string, opts Options) *client {
	c := &client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: opts.Timeout,
		retry:   opts.Retry,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, errNotFound)
}

// do sends a JSON request and decodes a JSON response into out. Transport
// failures, 429 and 5xx are retried with backoff; whatever still fails
// surfaces as ErrExternalService, except a 404 which returns errNotFound.
func (c *client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	attempt := 0
	_, err := retry.Do(ctx, c.retry, retryable, func() (struct{}, error) {
		attempt++
		return struct{}{}, c.send(ctx, method, target, body, out)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, errNotFound) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s %s: %w: %w", c.name, path, domain.ErrExternalService, ctx.Err())
	}

	c.logger.Warn("external call failed",
		zap.String("service", c.name),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("attempts", attempt),
		zap.Error(err),
	)
	return fmt.Errorf("%s %s: %w: %v", c.name, path, domain.ErrExternalService, err)
}

func (c *client) send(ctx context.Context, method, target string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
