// Package suggest asks an OpenAI compatible chat completion API for grocery
// list suggestions.
package suggest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
)

var (
	// ErrTimeout is returned when the overall deadline passes before any
	// endpoint answered successfully.
	ErrTimeout = errors.New("suggestion service timed out")
	// ErrUpstream is returned when every endpoint failed or one failed fatally.
	ErrUpstream = errors.New("suggestion service failed")
	// ErrMalformed is returned when endpoints answered but none produced a
	// usable item list.
	ErrMalformed = errors.New("suggestion service returned a malformed response")
	// ErrNoEndpoints is returned by clients configured without endpoints.
	ErrNoEndpoints = errors.New("no suggestion endpoints configured")
)

// Endpoint is one candidate model behind a chat completion URL.
type Endpoint struct {
	URL    string
	APIKey string
	Model  string
}

// Client tries its endpoints in order until one returns a usable list.
type Client struct {
	http      *http.Client
	endpoints []Endpoint
	timeout   time.Duration
	logger    *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the overall deadline shared by all attempts.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the given endpoints.
func New(endpoints []Endpoint, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		endpoints: append([]Endpoint(nil), endpoints...),
		timeout:   DefaultTimeout,
		logger:    log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns the raw candidate records produced for prompt. Records are
// left untyped so the caller can validate them like any client payload.
func (c *Client) Generate(ctx context.Context, prompt, catalog string) ([]any, error) {
	if len(c.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := buildMessages(prompt, catalog)
	allMalformed := true
	var lastErr error
	for i, ep := range c.endpoints {
		if ctx.Err() != nil {
			break
		}
		items, res, err := c.attempt(ctx, ep, messages)
		entry := c.logger.WithFields(log.Fields{"model": ep.Model, "attempt": i + 1, "outcome": res.String()})
		switch res {
		case outcomeSuccess:
			entry.Debug("suggestion attempt succeeded")
			return items, nil
		case outcomeFatal:
			entry.WithError(err).Warn("suggestion attempt failed")
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		default:
			entry.WithError(err).Info("suggestion attempt failed, trying next endpoint")
			lastErr = err
			if !errors.Is(err, ErrMalformed) {
				allMalformed = false
			}
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if allMalformed && lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryable
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	Temperature    float64        `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) attempt(ctx context.Context, ep Endpoint, messages []chatMessage) ([]any, outcome, error) {
	payload, err := sonic.Marshal(chatRequest{
		Model:          ep.Model,
		Messages:       messages,
		ResponseFormat: map[string]any{"type": "json_object"},
		Temperature:    0.2,
	})
	if err != nil {
		return nil, outcomeFatal, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, outcomeFatal, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, outcomeRetryable, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, outcomeRetryable, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500:
		return nil, outcomeRetryable, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return nil, outcomeFatal, fmt.Errorf("status %d", resp.StatusCode)
	}

	items, err := parseCompletion(body)
	if err != nil {
		return nil, outcomeRetryable, err
	}
	return items, outcomeSuccess, nil
}

func parseCompletion(body []byte) ([]any, error) {
	var resp chatResponse
	if err := sonic.ConfigStd.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformed)
	}
	content := stripFences(resp.Choices[0].Message.Content)

	var doc any
	if err := sonic.ConfigStd.UnmarshalFromString(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: content is not json", ErrMalformed)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: content is not an object", ErrMalformed)
	}
	items, ok := obj["items"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing items", ErrMalformed)
	}
	return items, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
