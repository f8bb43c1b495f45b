package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChatMessage is one turn of an Ollama conversation. Images carries
// base64-encoded payloads for multimodal models.
type ChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ClientConfig struct {
	BaseURL     string
	ChatTimeout time.Duration
	ListTimeout time.Duration
	PullTimeout time.Duration
	PullRetries int
}

// Client talks to a local Ollama server. Application-level errors from
// the chat endpoint are turned into conversational replies so a failing
// model never breaks the UI flow; only transport and protocol failures
// surface as Go errors.
type Client struct {
	baseURL     string
	chatClient  *http.Client
	listClient  *http.Client
	pullClient  *http.Client
	pullRetries int
	logger      *zap.Logger

	mu     sync.Mutex
	models []string
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 90 * time.Second
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = 10 * time.Second
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = 30 * time.Minute
	}
	if cfg.PullRetries <= 0 {
		cfg.PullRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		chatClient:  &http.Client{Timeout: cfg.ChatTimeout},
		listClient:  &http.Client{Timeout: cfg.ListTimeout},
		pullClient:  &http.Client{Timeout: cfg.PullTimeout},
		pullRetries: cfg.PullRetries,
		logger:      logger,
	}
}

// Chat posts the conversation to /api/chat and returns the assistant
// reply. An "error" field in the response body is returned as reply
// text prefixed with "OLLAMA ERROR: ".
func (c *Client) Chat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build chat request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.chatClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response failed: %w", err)
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("chat response status %d: %s", resp.StatusCode, string(raw))
		}
		return "", fmt.Errorf("parse chat json failed: %w", err)
	}
	if parsed.Error != "" {
		return "OLLAMA ERROR: " + parsed.Error, nil
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat response status %d: %s", resp.StatusCode, string(raw))
	}
	return parsed.Message.Content, nil
}

// Ping reports whether the Ollama endpoint answers at all. The health
// probe uses it to tell an unreachable server apart from a reachable
// one with no models pulled yet.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build ping request failed: %w", err)
	}

	resp, err := c.listClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// ListModels queries /api/tags and caches the result. Models whose name
// marks them as embedding-only are excluded. An unreachable or failing
// endpoint yields an empty list, never an error.
func (c *Client) ListModels(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}

	resp, err := c.listClient.Do(req)
	if err != nil {
		c.logger.Warn("list models failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("parse model list failed", zap.Error(err))
		return nil
	}
	if parsed.Error != "" {
		c.logger.Warn("model list returned error", zap.String("error", parsed.Error))
		return nil
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		if strings.Contains(m.Name, "embed") {
			continue
		}
		names = append(names, m.Name)
	}

	c.mu.Lock()
	c.models = names
	c.mu.Unlock()
	return names
}

// CachedModels returns the model list from the last successful refresh.
func (c *Client) CachedModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.models...)
}

// Pull downloads a model via /api/pull. Timeouts are retried up to the
// configured bound with a warning per attempt; any other failure aborts
// immediately. The outcome is always reported as status text, never as
// an error, so callers can show it in the conversation.
func (c *Client) Pull(ctx context.Context, model string, stream bool, onProgress func(string)) string {
	for attempt := 1; attempt <= c.pullRetries; attempt++ {
		status, err := c.pullOnce(ctx, model, stream, onProgress)
		if err == nil {
			return status
		}
		if !isTimeout(err) {
			c.logger.Error("model pull failed",
				zap.String("model", model),
				zap.Error(err),
			)
			break
		}
		c.logger.Warn("model pull timed out",
			zap.String("model", model),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Sprintf("Failed to pull %s after %d attempts.", model, c.pullRetries)
}

func (c *Client) pullOnce(ctx context.Context, model string, stream bool, onProgress func(string)) (string, error) {
	reqBody := map[string]interface{}{
		"model":  model,
		"stream": stream,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal pull request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build pull request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.pullClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pull request failed: %w", err)
	}
	defer resp.Body.Close()

	if stream {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			}
			if err := json.Unmarshal([]byte(line), &chunk); err == nil && chunk.Error != "" {
				return chunk.Error, nil
			}
			if onProgress != nil {
				onProgress(line)
			}
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("scan pull stream failed: %w", err)
		}
		c.ListModels(ctx)
		return fmt.Sprintf("Pull of %s finished.", model), nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read pull response failed: %w", err)
	}
	var parsed struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse pull json failed: %w", err)
	}
	if parsed.Error != "" {
		return parsed.Error, nil
	}
	c.ListModels(ctx)
	return fmt.Sprintf("Pull of %s finished.", model), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
