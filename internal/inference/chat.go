package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatConfig describes one OpenAI-compatible chat endpoint (Groq, DeepSeek, OpenAI).
type ChatConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	// Timeout bounds a single request; zero means no per-request limit.
	Timeout time.Duration
}

// ChatBackend talks to an OpenAI-compatible chat completions API.
// It serves as an ImageBackend for vision models and as a TextBackend for text models.
type ChatBackend struct {
	llm    *openai.LLM
	config ChatConfig
}

func NewChatBackend(cfg ChatConfig) (*ChatBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key must be provided", cfg.Name)
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Name, err)
	}
	return &ChatBackend{llm: llm, config: cfg}, nil
}

// GroqVision returns the configuration used for scanned pages.
func GroqVision(apiKey, baseURL, model string) ChatConfig {
	return ChatConfig{
		Name:        "groq",
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: 0.3,
		MaxTokens:   4096,
		Timeout:     60 * time.Second,
	}
}

// DeepSeekText returns the configuration used for text-bearing pages.
func DeepSeekText(apiKey, baseURL, model string) ChatConfig {
	return ChatConfig{
		Name:         "deepseek",
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		SystemPrompt: TenderConsultantSystemPrompt,
		Temperature:  0,
		Timeout:      30 * time.Second,
	}
}

func (b *ChatBackend) InferImage(ctx context.Context, jpeg []byte, instruction string) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
	return b.generate(ctx, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(instruction), llms.ImageURLPart(dataURL)},
	})
}

func (b *ChatBackend) InferText(ctx context.Context, prompt string) (string, error) {
	answer, err := b.generate(ctx, llms.TextParts(llms.ChatMessageTypeHuman, prompt))
	if err != nil {
		return "", err
	}
	return CleanOutput(answer), nil
}

func (b *ChatBackend) generate(ctx context.Context, user llms.MessageContent) (string, error) {
	var messages []llms.MessageContent
	if b.config.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, b.config.SystemPrompt))
	}
	messages = append(messages, user)

	callOpts := []llms.CallOption{llms.WithTemperature(b.config.Temperature)}
	if b.config.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(b.config.MaxTokens))
	}

	resp, err := b.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", b.config.Name, openai.MapError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", b.config.Name, ErrEmptyResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
