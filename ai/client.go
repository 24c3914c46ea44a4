// Package ai provides the LLM-assisted prompt tooling: candidate generation,
// enhancement, variants, evaluation and linting. All remote calls go through
// an OpenAI-compatible chat-completions endpoint; the lint rules also run
// locally so the operation degrades gracefully when the endpoint is down.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/HyxiaoGe/prompthub/config"
	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/httputil"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/metrics"
)

// CompletionRequest is one chat completion to run. Operation labels the call
// in logs and metrics.
type CompletionRequest struct {
	Operation string
	System    string
	User      string

	// JSONReply asks the provider to return a JSON object.
	JSONReply bool
}

// Completion is the reply to a CompletionRequest.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Completer runs chat completions. The concrete Client talks to a real
// endpoint; tests install stubs via SetClient.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Client is a chat-completions client for any OpenAI-compatible endpoint.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
}

// NewClient builds a client from the LLM settings.
func NewClient(cfg config.Settings) *Client {
	var limiter *rate.Limiter
	if cfg.LLMRateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LLMRateLimitRPS), 1)
	}
	return &Client{
		http:        httputil.NewHTTPClient(cfg.LLMTimeout),
		baseURL:     strings.TrimRight(cfg.LLMBaseURL, "/"),
		apiKey:      cfg.LLMAPIKey,
		model:       cfg.LLMDefaultModel,
		maxTokens:   cfg.LLMMaxTokens,
		temperature: cfg.LLMTemperature,
		limiter:     limiter,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Complete runs one chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperrors.LLMUnavailable("LLM service unavailable").WithCause(err)
		}
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	payload := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if req.JSONReply {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	logger.LLMCall(c.model, req.Operation)
	start := time.Now()

	reply, err := c.post(ctx, body)
	elapsed := time.Since(start)
	if err != nil {
		logger.LLMError(c.model, req.Operation, err, "elapsed_ms", elapsed.Milliseconds())
		metrics.RecordLLMRequest(req.Operation, "error", elapsed.Seconds())
		return nil, apperrors.LLMUnavailable("LLM service unavailable").WithCause(err)
	}

	model := reply.Model
	if model == "" {
		model = c.model
	}
	if len(reply.Choices) == 0 {
		err := fmt.Errorf("reply carries no choices")
		logger.LLMError(model, req.Operation, err, "elapsed_ms", elapsed.Milliseconds())
		metrics.RecordLLMRequest(req.Operation, "error", elapsed.Seconds())
		return nil, apperrors.LLMUnavailable("LLM service unavailable").WithCause(err)
	}

	logger.LLMResponse(model, req.Operation, reply.Usage.PromptTokens, reply.Usage.CompletionTokens,
		"elapsed_ms", elapsed.Milliseconds())
	metrics.RecordLLMRequest(req.Operation, "success", elapsed.Seconds())
	metrics.RecordLLMTokens(req.Operation, reply.Usage.PromptTokens, reply.Usage.CompletionTokens)

	return &Completion{
		Content:          reply.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     reply.Usage.PromptTokens,
		CompletionTokens: reply.Usage.CompletionTokens,
	}, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*chatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var reply chatResponse
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &reply, nil
}

// The process-wide completer is built lazily from the configured settings so
// importing this package costs nothing until the first LLM feature is used.
var (
	clientMu       sync.Mutex
	client         Completer
	clientSettings = config.Default()
)

// Configure sets the settings the lazily built process completer uses and
// drops any cached one so the next call picks them up. Call it once at
// startup.
func Configure(cfg config.Settings) {
	clientMu.Lock()
	defer clientMu.Unlock()
	clientSettings = cfg
	client = nil
}

// SetClient installs c as the process completer. Tests use it to stub the
// LLM.
func SetClient(c Completer) {
	clientMu.Lock()
	defer clientMu.Unlock()
	client = c
}

// ResetClient drops the process completer so the next call rebuilds it from
// the configured settings.
func ResetClient() {
	SetClient(nil)
}

func processClient() Completer {
	clientMu.Lock()
	defer clientMu.Unlock()
	if client == nil {
		client = NewClient(clientSettings)
	}
	return client
}
