package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds the HTTP client; the interpreter applies its own,
	// shorter, per-utterance deadline on top.
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIBackend implements Backend using OpenAI's chat completions API
type OpenAIBackend struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates a new OpenAI backend
func NewOpenAIBackend(apiKey string, model string) *OpenAIBackend {
	return NewOpenAIBackendWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIBackendWithLogger creates a new OpenAI backend with logger support
func NewOpenAIBackendWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIBackend {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAIBackend{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Model returns the configured model name
func (p *OpenAIBackend) Model() string {
	return p.model
}

// Interpret sends the utterance with its context and returns the raw reply text.
// An empty reply is reported as ErrAbstained.
func (p *OpenAIBackend) Interpret(ctx context.Context, req *Request) (string, error) {
	prompt, err := BuildUserPrompt(req)
	if err != nil {
		return "", err
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SystemPrompt),
		openai.UserMessage(prompt),
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}

	conversationID := HashConversationID(ExtractConversationID(ctx))
	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "interpret_utterance"),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.Int("message_count", len(messages)),
			zap.String("prompt_preview", SanitizeForLog(prompt, true)),
			zap.String("conversation", conversationID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		if p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "interpret_utterance"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("conversation", conversationID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("failed to interpret utterance: %w: %w", ErrBackendTimeout, err)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("failed to interpret utterance: %w", apiErr)
		}
		return "", fmt.Errorf("failed to interpret utterance: %w: %w", ErrBackendUnreachable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("failed to interpret utterance: %w: %s", ErrAbstained, ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "interpret_utterance"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeForLog(content, true)),
			zap.String("conversation", conversationID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}

// NewRegistry returns a registry with the built-in backends registered.
// Recognised config keys: api_key, base_url, model, debug.
func NewRegistry(logger *zap.Logger) *ProviderRegistry {
	r := NewProviderRegistry()
	r.Register("openai", func(config map[string]string) (Backend, error) {
		if config["api_key"] == "" {
			return nil, errors.New("openai backend requires an api key")
		}
		return NewOpenAIBackendWithLogger(config["api_key"], config["base_url"], config["model"], logger, config["debug"] == "true"), nil
	})
	r.Register("none", func(map[string]string) (Backend, error) {
		return Unavailable, nil
	})
	return r
}
