package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"finsight/internal/domain"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultAPIKeyEnv   = "GROQ_API_KEY"
)

// GroqConfig configures the chat-completions answerer.
type GroqConfig struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Temperature       float32
	MaxTokens         int
	HistoryWindow     int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Groq answers through an OpenAI-compatible chat completions endpoint.
type Groq struct {
	api     *goopenai.Client
	cfg     GroqConfig
	limiter *rate.Limiter
}

// ErrNoAPIKey is returned by NewGroq when the configured key variable is empty.
var ErrNoAPIKey = errors.New("api key not set")

// NewGroq creates the answerer, or ErrNoAPIKey when no key is configured.
func NewGroq(cfg GroqConfig) (*Groq, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAPIKey, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGroqBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGroqModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Groq{api: goopenai.NewClientWithConfig(apiCfg), cfg: cfg, limiter: rate.NewLimiter(limit, 1)}, nil
}

// Available reports whether a Groq key is present in the environment.
func Available(apiKeyEnv string) bool {
	if apiKeyEnv == "" {
		apiKeyEnv = DefaultAPIKeyEnv
	}
	return os.Getenv(apiKeyEnv) != ""
}

// Answer sends the system prompt, the last HistoryWindow turns and the question with its context.
func (g *Groq) Answer(ctx context.Context, query string, retrieved []domain.RetrievalResult, history []domain.Message) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := g.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    g.messages(query, retrieved, history),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("groq chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *Groq) messages(query string, retrieved []domain.RetrievalResult, history []domain.Message) []goopenai.ChatCompletionMessage {
	if len(history) > g.cfg.HistoryWindow {
		history = history[len(history)-g.cfg.HistoryWindow:]
	}
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: userMessage(query, BuildContext(retrieved)),
	})
	return msgs
}
