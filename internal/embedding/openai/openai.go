package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"finsight/internal/domain"
	"finsight/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	api         *goopenai.Client
	model       string
	dimension   int
	batchSize   int
	concurrency int
	maxRetries  int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Dimension         int
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
	Logger            *slog.Logger
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Dimension <= 0 {
		return nil, domain.NewValidationError("dimension", cfg.Dimension, "must be positive")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:         goopenai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		dimension:   cfg.Dimension,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		maxRetries:  cfg.MaxRetries,
		limiter:     rate.NewLimiter(limit, cfg.Concurrency),
		logger:      cfg.Logger,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// EmbedOne embeds a single query through the batch path.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into batches and embeds them concurrently.
// Each batch writes into its own slice range so output order matches input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &domain.EmbeddingError{Op: "request", Err: ctx.Err()}
			case <-time.After(retryDelay(attempt - 1)):
			}
		}
		vecs, err := c.embed(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		c.logger.Warn("embedding request failed, retrying", "attempt", attempt+1, "err", err)
	}
	return nil, &domain.EmbeddingError{Op: "request", Err: lastErr}
}

func (c *Client) embed(ctx context.Context, batch []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      batch,
		Model:      goopenai.EmbeddingModel(c.model),
		Dimensions: c.dimension,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(batch))
	}
	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != c.dimension {
			return nil, errDimension{got: len(d.Embedding), want: c.dimension}
		}
		v := append([]float32(nil), d.Embedding...)
		if err := embedding.Normalize(v); err != nil {
			return nil, err
		}
		vecs[d.Index] = v
	}
	return vecs, nil
}

type errDimension struct{ got, want int }

func (e errDimension) Error() string {
	return fmt.Sprintf("embedding dimension %d, want %d", e.got, e.want)
}

// retryable reports whether a failed request may succeed on a later attempt:
// rate limits, server errors and transport failures.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dimErr errDimension
	if errors.As(err, &dimErr) || errors.Is(err, domain.ErrEmbedding) {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func retryDelay(attempt int) time.Duration {
	const base, ceiling = 200 * time.Millisecond, 5 * time.Second
	// 200ms<<5 already passes the ceiling; larger shifts would overflow
	attempt = min(max(attempt, 0), 5)
	return min(base<<attempt, ceiling)
}
