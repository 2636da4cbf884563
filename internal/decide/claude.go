package decide

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

const classifyPrompt = `You are helping convert a Word document into a DITA task topic.
Answer with a single word: "yes" or "no".`

// Claude answers decisions with the Anthropic Messages API. Any failure, or
// running out of time, yields the fallback verdict.
type Claude struct {
	apiKey     string
	model      string
	url        string
	timeout    time.Duration
	fallback   bool
	httpClient *http.Client
	log        *slog.Logger

	Stats *Stats
}

// ClaudeOption configures a Claude decider.
type ClaudeOption func(*Claude)

// WithEndpoint overrides the Messages API URL.
func WithEndpoint(url string) ClaudeOption {
	return func(c *Claude) { c.url = url }
}

// WithTimeout bounds a single decision including retries.
func WithTimeout(d time.Duration) ClaudeOption {
	return func(c *Claude) { c.timeout = d }
}

// WithFallback sets the verdict used when the model cannot answer.
func WithFallback(v bool) ClaudeOption {
	return func(c *Claude) { c.fallback = v }
}

func NewClaude(apiKey, model string, log *slog.Logger, opts ...ClaudeOption) *Claude {
	c := &Claude{
		apiKey:  apiKey,
		model:   model,
		url:     defaultAnthropicURL,
		timeout: 30 * time.Second,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:   log,
		Stats: NewStats(time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Claude) Decide(ctx context.Context, d Decision) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	prompt := buildDecisionPrompt(d)

	var answer string
	var lastErr error
	for attempt := range maxRetries {
		answer, lastErr = c.ask(ctx, prompt)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == maxRetries-1 {
			break
		}
		c.log.Warn("retryable decision error", "kind", d.Kind, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr != nil {
		c.log.Error("decision failed, using fallback", "kind", d.Kind, "fallback", c.fallback, "error", lastErr)
		c.Stats.Record(time.Since(start), c.fallback, true)
		return c.fallback
	}

	verdict, ok := parseVerdict(answer)
	if !ok {
		c.log.Warn("unparseable decision answer, using fallback", "kind", d.Kind, "answer", truncate(answer, 80))
		c.Stats.Record(time.Since(start), c.fallback, true)
		return c.fallback
	}
	c.Stats.Record(time.Since(start), verdict, false)
	return verdict
}

func (c *Claude) ask(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: 8,
		System:    classifyPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}
	return apiResp.Content[0].Text, nil
}

// Model returns the configured model name.
func (c *Claude) Model() string {
	return c.model
}

// Close releases idle connections.
func (c *Claude) Close() {
	c.httpClient.CloseIdleConnections()
}

func buildDecisionPrompt(d Decision) string {
	var sb strings.Builder
	switch d.Kind {
	case ShortDescCandidate:
		sb.WriteString("The paragraph below directly follows the document title. ")
		sb.WriteString("Is it a one-paragraph summary of the procedure (a short description) rather than an instruction?")
	case NoteCandidate:
		sb.WriteString("The paragraph below starts with \"Note:\". ")
		sb.WriteString("Is it a cautionary or supplementary note rather than part of an instruction?")
	default:
		sb.WriteString("Should the paragraph below be accepted?")
	}
	sb.WriteString("\n\n---\n")
	sb.WriteString(d.Content)
	return sb.String()
}

func parseVerdict(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!\"'`")
	switch {
	case strings.HasPrefix(s, "yes"):
		return true, true
	case strings.HasPrefix(s, "no"):
		return false, true
	}
	return false, false
}
