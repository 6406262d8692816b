// Package ai talks to an OpenRouter-compatible chat completion endpoint and
// drafts resume text with local fallbacks.
package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"resumify/internal/config"
	"resumify/internal/metrics"
)

var (
	// ErrNoCredential means no API key is configured; no request is made.
	ErrNoCredential = errors.New("ai: no api key configured")
	// ErrRejected means the provider answered with a non-retryable status.
	ErrRejected = errors.New("ai: request rejected")
	// ErrExhausted means every attempt failed with a retryable outcome.
	ErrExhausted = errors.New("ai: retries exhausted")
)

const (
	appTitle        = "Resumify"
	minContentChars = 10
	cacheTTL        = 10 * time.Minute
	maxBodyBytes    = 1 << 20
)

// Request is one chat completion.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type outcome int

const (
	outcomeSuccess outcome = iota
	// outcomeRetry covers timeouts, network errors and unusable 200 bodies.
	outcomeRetry
	// outcomeTerminal covers every status other than 200 and 429.
	outcomeTerminal
)

type attemptResult struct {
	outcome outcome
	text    string
	// wait is the pause before the next attempt; only rate limiting sets it.
	wait time.Duration
	err  error
}

// Client issues chat completions with bounded retries and memoises successful answers.
type Client struct {
	cfg    config.AIConfig
	http   *http.Client
	cache  *cache.Cache
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client from configuration. A nil logger falls back to slog.Default.
func NewClient(cfg config.AIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Complete returns the trimmed completion text for req.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNoCredential
	}

	key := cacheKey(c.cfg.Model, req)
	if v, ok := c.cache.Get(key); ok {
		metrics.ObserveAIAttempt("cached")
		return v.(string), nil
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		res := c.attempt(ctx, req, attempt)
		switch res.outcome {
		case outcomeSuccess:
			metrics.ObserveAIAttempt("success")
			c.cache.SetDefault(key, res.text)
			return res.text, nil
		case outcomeTerminal:
			metrics.ObserveAIAttempt("terminal")
			c.logger.Warn("ai request rejected", slog.Int("attempt", attempt+1), slog.Any("error", res.err))
			return "", fmt.Errorf("%w: %v", ErrRejected, res.err)
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}
		lastErr = res.err
		if res.wait > 0 {
			metrics.ObserveAIAttempt("backoff")
		} else {
			metrics.ObserveAIAttempt("retry")
		}
		c.logger.Warn("ai attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.cfg.MaxRetries),
			slog.Any("error", res.err),
		)
		if res.wait > 0 && attempt < c.cfg.MaxRetries-1 {
			if err := c.sleep(ctx, res.wait); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// Ping issues a tiny completion to verify connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Complete(ctx, Request{
		System:      "You are a connectivity check. Reply briefly.",
		Prompt:      "Reply with the sentence: the connection is working fine.",
		Temperature: 0,
		MaxTokens:   20,
	})
	return err
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) attempt(ctx context.Context, req Request, attempt int) attemptResult {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return attemptResult{outcome: outcomeTerminal, err: fmt.Errorf("encode request: %w", err)}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return attemptResult{outcome: outcomeTerminal, err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	httpReq.Header.Set("X-Title", appTitle)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return attemptResult{outcome: outcomeRetry, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return attemptResult{
			outcome: outcomeRetry,
			wait:    c.backoff(attempt),
			err:     errors.New("rate limited"),
		}
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return attemptResult{
			outcome: outcomeTerminal,
			err:     fmt.Errorf("status %s: %s", strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(snippet))),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&parsed); err != nil {
		return attemptResult{outcome: outcomeRetry, err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return attemptResult{outcome: outcomeRetry, err: errors.New("response has no choices")}
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if len([]rune(text)) <= minContentChars {
		return attemptResult{outcome: outcomeRetry, err: fmt.Errorf("content too short (%d chars)", len([]rune(text)))}
	}
	return attemptResult{outcome: outcomeSuccess, text: text}
}

// backoff doubles the base delay per attempt: base, 2*base, 4*base.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	return base << attempt
}

func cacheKey(model string, req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%g\x00%d", model, req.System, req.Prompt, req.Temperature, req.MaxTokens)
	return hex.EncodeToString(h.Sum(nil))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
