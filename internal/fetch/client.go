package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"curator/internal/logging"
	"curator/internal/media"
)

// Limits describes the throttle configuration for one provider.
type Limits struct {
	QPS              int
	Burst            int
	MaxConcurrent    int
	MaxRetryAttempts int
	QueueDepth       int
}

func (l Limits) normalized() Limits {
	if l.QPS <= 0 {
		l.QPS = 1
	}
	if l.Burst <= 0 {
		l.Burst = l.QPS
	}
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 1
	}
	if l.MaxRetryAttempts <= 0 {
		l.MaxRetryAttempts = 1
	}
	if l.QueueDepth <= 0 {
		l.QueueDepth = 64
	}
	return l
}

// Client executes provider HTTP requests under per-source limits. Limiter
// state is owned by the client and shared by every caller for a source; it is
// never global.
type Client struct {
	httpClient     *http.Client
	logger         *slog.Logger
	limitsFor      func(media.Source) Limits
	backoffInitial time.Duration
	backoffCeiling time.Duration

	mu     sync.Mutex
	states map[media.Source]*providerState
}

type providerState struct {
	limiter *rate.Limiter
	slots   *semaphore.Weighted
	limits  Limits
	// waiting counts callers queued or in flight; bounds queue depth.
	waiting atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBackoff overrides the retry backoff window.
func WithBackoff(initial, ceiling time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.backoffInitial = initial
		}
		if ceiling > 0 {
			c.backoffCeiling = ceiling
		}
	}
}

// NewClient constructs a fetch client. limitsFor supplies the throttle
// configuration per source and is consulted once, on first use of a source.
func NewClient(limitsFor func(media.Source) Limits, logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		logger:         logging.NewComponentLogger(logger, "fetch"),
		limitsFor:      limitsFor,
		backoffInitial: 500 * time.Millisecond,
		backoffCeiling: 30 * time.Second,
		states:         make(map[media.Source]*providerState),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) state(source media.Source) *providerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[source]; ok {
		return state
	}
	limits := Limits{}
	if c.limitsFor != nil {
		limits = c.limitsFor(source)
	}
	limits = limits.normalized()
	state := &providerState{
		limiter: rate.NewLimiter(rate.Limit(limits.QPS), limits.Burst),
		slots:   semaphore.NewWeighted(int64(limits.MaxConcurrent)),
		limits:  limits,
	}
	c.states[source] = state
	return state
}

// Do executes the request under the source's limits, retrying transient
// failures with jittered exponential backoff up to the source's attempt
// ceiling. The response body is returned fully read.
func (c *Client) Do(ctx context.Context, source media.Source, req *http.Request) ([]byte, error) {
	state := c.state(source)

	queued := state.waiting.Add(1)
	defer state.waiting.Add(-1)
	if queued > int64(state.limits.MaxConcurrent+state.limits.QueueDepth) {
		return nil, fmt.Errorf("%w: %s has %d callers queued", ErrQueueFull, source, queued-1)
	}

	// Weighted semaphore acquisition is FIFO, so queued callers dispatch in
	// arrival order.
	if err := state.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRateLimitTimeout, source, err)
	}
	defer state.slots.Release(1)

	attempts := state.limits.MaxRetryAttempts
	var payload []byte
	var lastErr error

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(attempts-1)), ctx)
	err := backoff.Retry(func() error {
		if err := state.limiter.Wait(ctx); err != nil {
			// Wait fails fast when the deadline cannot admit a token.
			return backoff.Permanent(fmt.Errorf("%w: %s: %w", ErrRateLimitTimeout, source, err))
		}
		payload, lastErr = c.attempt(ctx, req)
		if lastErr == nil {
			return nil
		}
		if isPermanent(lastErr) {
			return backoff.Permanent(lastErr)
		}
		c.logger.Debug("transient fetch failure, will retry",
			logging.String(logging.FieldSource, string(source)),
			logging.Error(lastErr),
		)
		return lastErr
	}, policy)
	if err == nil {
		return payload, nil
	}
	if isPermanent(err) || errors.Is(err, ErrRateLimitTimeout) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrExhausted, source, attempts, err)
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoffInitial
	b.MaxInterval = c.backoffCeiling
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) attempt(ctx context.Context, req *http.Request) ([]byte, error) {
	attempt := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("rebuild request body: %w", err))
		}
		attempt.Body = body
	}

	start := time.Now()
	resp, err := c.httpClient.Do(attempt)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: provider returned %d", ErrInvalidIdentifier, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider returned %d (latency=%v)", resp.StatusCode, latency)
	default:
		return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return payload, nil
}

var errUnexpectedStatus = errors.New("fetch: unexpected status")

func isPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidIdentifier) ||
		errors.Is(err, errUnexpectedStatus)
}
