package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/extract"
)

const (
	DefaultAPIVersion = "2024-01-01"
	DefaultMaxTokens  = 500
)

// Reply text is looked up in this order; the raw body is the last resort.
var chatReplyStrategies = []extract.Strategy{
	extract.Path("choices.0.message.content"),
	extract.Path("choices.0.text"),
	extract.Raw(),
}

type ChatConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	MaxTokens  int
	Timeout    time.Duration
}

type chatClient struct {
	cfg ChatConfig
	hc  *http.Client
}

func NewChatClient(cfg ChatConfig) *chatClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &chatClient{cfg: cfg, hc: newHTTPClient(cfg.Timeout)}
}

// CreateChatCompletion sends the system and user messages to the deployment and
// returns the reply text.
func (c *chatClient) CreateChatCompletion(ctx context.Context, exchange domain.ChatExchange) (string, error) {
	if c.cfg.Endpoint == "" || c.cfg.APIKey == "" || c.cfg.Deployment == "" {
		return "", domain.NewError(domain.KindConfig, fmt.Errorf("chat completion: %w", domain.ErrNotConfigured))
	}

	payload, err := json.Marshal(c.buildRequest(exchange))
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	body, err := post(ctx, c.hc, c.url(), map[string]string{
		"Content-Type": "application/json",
		"api-key":      c.cfg.APIKey,
	}, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sending chat completion request: %w", err)
	}

	return extract.First(body, chatReplyStrategies...), nil
}

func (c *chatClient) buildRequest(exchange domain.ChatExchange) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: exchange.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: exchange.UserContent},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: exchange.Temperature,
		TopP:        1.0,
		N:           1,
	}
}

func (c *chatClient) url() string {
	return joinURL(c.cfg.Endpoint, "/openai/deployments/"+url.PathEscape(c.cfg.Deployment)+"/chat/completions") +
		"?api-version=" + url.QueryEscape(c.cfg.APIVersion)
}
