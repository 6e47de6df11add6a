package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcalderas/taskwise-backend/internal/pkg/httpx"
	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
)

// OpenAIClient is the gateway to the completion provider. Every call is a
// single best-effort attempt; failures are mapped to descriptive errors and
// surfaced to the caller, never retried here.
type OpenAIClient interface {
	Complete(ctx context.Context, system, user string, opts *AIOptions) (string, error)
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

type AIOptions struct {
	Temperature float64
	MaxTokens   int
}

type openAIClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewOpenAIClient(log *logger.Logger) (OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeoutSec := 120
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &openAIClient{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int { return e.StatusCode }

// describeProviderError maps known provider failures to distinct messages so a
// caller (and ultimately the user) can tell whether trying again makes sense.
func describeProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("the AI provider timed out; try again in a moment")
	}

	var httpErr *openAIHTTPError
	if errors.As(err, &httpErr) {
		body := strings.ToLower(httpErr.Body)
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden ||
			strings.Contains(body, "invalid api key") || strings.Contains(body, "incorrect api key"):
			return fmt.Errorf("the AI provider rejected the configured credentials")
		case strings.Contains(body, "insufficient_quota") || strings.Contains(body, "exceeded your current quota"):
			return fmt.Errorf("the AI provider quota is exhausted")
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("the AI provider is rate limiting requests; try again shortly")
		case httpx.IsRetryableHTTPStatus(httpErr.StatusCode):
			return fmt.Errorf("the AI provider is temporarily unavailable; try again shortly")
		}
	}
	if httpErr == nil && httpx.IsRetryableError(err) {
		return fmt.Errorf("the AI provider timed out; try again in a moment")
	}
	return err
}

func (c *openAIClient) do(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return describeProviderError(err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return describeProviderError(&openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *openAIClient) chat(ctx context.Context, system, user string, opts *AIOptions, responseFormat map[string]any) (string, error) {
	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: responseFormat,
	}
	if opts != nil {
		req.Temperature = opts.Temperature
		req.MaxTokens = opts.MaxTokens
	}

	var resp chatCompletionResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("provider returned an empty response")
	}
	return text, nil
}

func (c *openAIClient) Complete(ctx context.Context, system, user string, opts *AIOptions) (string, error) {
	return c.chat(ctx, system, user, opts, nil)
}

func (c *openAIClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}

	format := map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   schemaName,
			"schema": schema,
			"strict": true,
		},
	}
	text, err := c.chat(ctx, system, user, &AIOptions{Temperature: 0.2}, format)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	return obj, nil
}
