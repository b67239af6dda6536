package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"digest_server/pkg/logger"
	"digest_server/pkg/metrics"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const (
	DefaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 512
	defaultMaxFailures = 5
)

// ErrEmptyCompletion is returned when the completion service answers without choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	// JSONMode asks the model for a JSON object response.
	JSONMode bool
	// HTTPClient replaces the SDK default client when set.
	HTTPClient *http.Client

	// Breaker trips after MaxFailures consecutive failures and stays open for OpenTimeout.
	MaxFailures int
	OpenTimeout time.Duration
}

// Client is an OpenAI chat-completion client guarded by a circuit breaker.
type Client struct {
	client      *openai.Client
	cb          *gobreaker.CircuitBreaker
	model       string
	maxTokens   int
	temperature float32
	jsonMode    bool
}

func NewClient(cfg ClientConfig) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oaCfg.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &Client{
		client:      openai.NewClientWithConfig(oaCfg),
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		jsonMode:    cfg.JSONMode,
	}
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	defer func() { metrics.RecordLatency("llm.complete", time.Since(start)) }()

	out, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}
