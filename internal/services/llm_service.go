package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justsurfingit/upwork-job-applier/internal/config"
	"github.com/justsurfingit/upwork-job-applier/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// LLMRequest is one model invocation: a system prompt, a user message and
// whether a JSON object is expected back.
type LLMRequest struct {
	System    string
	User      string
	JSON      bool
	MaxTokens int
}

// LLM is the model boundary used by scoring and generation.
type LLM interface {
	Invoke(ctx context.Context, req LLMRequest) (string, error)
}

type LLMService struct {
	Client     llms.Model
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewLLMService builds the provider client described by cfg.
func NewLLMService(ctx context.Context, cfg config.LLMConfig, log *zap.Logger, m *metrics.Metrics) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM_API_KEY is empty")
	}

	var (
		client llms.Model
		err    error
	)
	switch cfg.Provider {
	case "gemini":
		client, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case "openai", "groq":
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		baseURL := cfg.BaseURL
		if baseURL == "" && cfg.Provider == "groq" {
			baseURL = groqBaseURL
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	svc := NewLLMServiceWithModel(client, log, m)
	svc.Timeout = cfg.Timeout
	svc.MaxRetries = cfg.MaxRetries
	return svc, nil
}

// NewLLMServiceWithModel wraps an existing model, e.g. a fake in tests.
func NewLLMServiceWithModel(client llms.Model, log *zap.Logger, m *metrics.Metrics) *LLMService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LLMService{
		Client:     client,
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
		log:        log,
		metrics:    m,
	}
}

func (s *LLMService) Invoke(ctx context.Context, req LLMRequest) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}
	opts := []llms.CallOption{llms.WithTemperature(0.1)}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	var content string
	err := retry(ctx, s.log, s.MaxRetries, s.RetryDelay, func() error {
		callCtx := ctx
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := s.Client.GenerateContent(callCtx, messages, opts...)
		s.metrics.ObserveLLMCall(time.Since(start), err)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("model returned no choices")
		}
		content = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm invocation failed: %w", err)
	}

	if req.JSON {
		content = cleanMarkdownJSON(content)
	}
	return strings.TrimSpace(content), nil
}

// cleanMarkdownJSON removes ```json fences some models wrap around JSON output.
func cleanMarkdownJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
