package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dailycraft/internal/logging"
	"dailycraft/internal/services"
)

const (
	defaultRequestTimeout    = 120 * time.Second
	defaultStreamIdleTimeout = 60 * time.Second
	defaultDialTimeout       = 30 * time.Second
	defaultTLSTimeout        = 30 * time.Second
	defaultHeaderTimeout     = 60 * time.Second
	defaultRetryMaxDelay     = 10 * time.Second
	defaultRetryBaseDelay    = 1 * time.Second
	defaultRetryAttempts     = 3
	completionsPath          = "chat/completions"
)

// ErrNoContent reports a well-formed completion response without any choice.
var ErrNoContent = errors.New("no content returned")

// Config captures the runtime settings required to talk to the chat-completion endpoint.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	TimeoutSeconds    int
	StreamIdleTimeout time.Duration
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Client talks to an OpenAI-compatible chat completion API in blocking or
// streaming mode.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	requestTimeout   time.Duration
	idleTimeout      time.Duration
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger used for skipped stream frames and retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count for blocking requests.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIKey:            strings.TrimSpace(cfg.APIKey),
			BaseURL:           strings.TrimSpace(cfg.BaseURL),
			Model:             strings.TrimSpace(cfg.Model),
			TimeoutSeconds:    cfg.TimeoutSeconds,
			StreamIdleTimeout: cfg.StreamIdleTimeout,
		},
		httpClient:       newHTTPClient(),
		logger:           logging.NewNop(),
		requestTimeout:   defaultRequestTimeout,
		idleTimeout:      defaultStreamIdleTimeout,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	if cfg.TimeoutSeconds > 0 {
		client.requestTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.StreamIdleTimeout > 0 {
		client.idleTimeout = cfg.StreamIdleTimeout
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// newHTTPClient has no overall timeout because a streamed body may legitimately
// stay open for minutes; blocking calls bound themselves through the context.
func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = defaultTLSTimeout
	transport.ResponseHeaderTimeout = defaultHeaderTimeout
	return &http.Client{Transport: transport}
}

// HTTPStatusError carries a non-2xx response with its body verbatim.
type HTTPStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		// Some providers return the streaming schema even when stream=false.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues a blocking chat completion and returns the first choice's
// message content. Transient failures (408, 429, 5xx, timeouts) are retried.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := c.checkConfigured("complete"); err != nil {
		return "", err
	}
	payload := chatCompletionRequest{Model: c.cfg.Model, Messages: messages}
	return c.completionContentWithRetry(ctx, payload, "complete")
}

// HealthCheck issues a tiny completion to verify the endpoint, key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.Complete(ctx, []Message{UserMessage("Reply with the single word OK.")})
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return services.Wrap(services.ErrProtocol, "llm", "health", "empty reply", nil)
	}
	return nil
}

func (c *Client) checkConfigured(op string) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "llm", op, "api key is empty", nil)
	}
	if c.cfg.BaseURL == "" {
		return services.Wrap(services.ErrConfiguration, "llm", op, "base url is empty", nil)
	}
	return nil
}

func (c *Client) endpoint() (string, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, completionsPath)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "llm", "build url", c.cfg.BaseURL, err)
	}
	return endpoint, nil
}

func (c *Client) newRequest(ctx context.Context, payload chatCompletionRequest) (*http.Request, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) completionContentWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	attempts := c.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.sendChatRequestOnce(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		c.logger.Debug("retrying chat completion",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return "", classify(op, lastErr)
}

func (c *Client) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error (timeout=%s): %w", c.requestTimeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newHTTPStatusError(resp, body)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrProtocol, "llm", "decode response", summarizePayloadSnippet(string(body)), err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrProtocol, "llm", "api error", completion.Error.Message, nil)
	}
	if len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrProtocol, "llm", "", "", ErrNoContent)
	}
	first := completion.Choices[0]
	if first.Message.Content != "" {
		return first.Message.Content, nil
	}
	return first.Delta.Content, nil
}

func newHTTPStatusError(resp *http.Response, body []byte) *HTTPStatusError {
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	return &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		RetryAfter: retryAfter,
	}
}

// classify attaches a taxonomy marker unless one is already present.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range []error{services.ErrConfiguration, services.ErrProtocol, services.ErrNetwork} {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(services.ErrNetwork, "llm", op, "", err)
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	// The per-attempt deadline surfaces as DeadlineExceeded while the caller's
	// context is still live; that is a timeout worth retrying.
	if errors.Is(err, context.DeadlineExceeded) {
		return c.backoffDelay(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := defaultRetryMaxDelay
	if c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
