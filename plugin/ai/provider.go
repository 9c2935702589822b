package ai

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	engerr "github.com/hrygo/empathia/internal/errors"
)

// ProviderConfig holds the generation provider configuration.
type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	// Timeout bounds each completion call including retries.
	Timeout time.Duration
	// RequestsPerMinute limits outbound calls so background generators
	// cannot stampede the service. 0 disables the limiter.
	RequestsPerMinute int
}

// DefaultProviderConfig returns the default configuration.
func DefaultProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		BaseURL:           "https://api.openai.com/v1",
		MaxRetries:        3,
		Timeout:           30 * time.Second,
		RequestsPerMinute: 60,
	}
}

// Provider implements LLMService on the OpenAI-compatible chat API.
type Provider struct {
	client  *openai.Client
	config  *ProviderConfig
	limiter *rate.Limiter
}

// NewProvider creates a generation provider.
func NewProvider(cfg *ProviderConfig) *Provider {
	if cfg == nil {
		cfg = DefaultProviderConfig()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		limiter: limiter,
	}
}

// Chat performs a chat completion with bounded timeout and retry.
func (p *Provider) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		llmMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Messages:    llmMessages,
		MaxTokens:   params.MaxOutputTokens,
		Temperature: params.Temperature,
	}

	var result string
	err := p.doWithRetry(ctx, func() error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return engerr.GenerationFailed("empty chat response", nil)
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	return result, nil
}

// doWithRetry executes fn with exponential backoff. Auth failures are not
// retried; everything else is, until the context deadline wins.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if httpStatus(err) == 401 || httpStatus(err) == 403 {
			return err
		}
		if attempt < p.config.MaxRetries-1 {
			waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			slog.Debug("generation request failed, retrying",
				"attempt", attempt+1, "wait_time", waitTime, "error", err)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// classify maps transport errors onto the engine taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var engineErr *engerr.EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	switch {
	case isContextError(err):
		return engerr.Wrap(err, engerr.ErrCodeTimeout, "generation timed out")
	case httpStatus(err) == 401 || httpStatus(err) == 403:
		return engerr.Wrap(err, engerr.ErrCodeUnauthorized, "generation service rejected credentials")
	case httpStatus(err) == 429:
		return engerr.Wrap(err, engerr.ErrCodeRateLimitExceeded, "generation service rate limited")
	default:
		return engerr.GenerationFailed("generation request failed", err)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

var _ LLMService = (*Provider)(nil)
