package answer

import (
	"context"
	"log/slog"

	"finsight/internal/domain"
)

// Fallback tries Primary and answers with Secondary when it fails.
type Fallback struct {
	Primary   domain.Answerer
	Secondary domain.Answerer
	Logger    *slog.Logger
}

// WithFallback chains two answerers.
func WithFallback(primary, secondary domain.Answerer, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: logger}
}

func (f *Fallback) Answer(ctx context.Context, query string, retrieved []domain.RetrievalResult, history []domain.Message) (string, error) {
	out, err := f.Primary.Answer(ctx, query, retrieved, history)
	if err == nil {
		return out, nil
	}
	f.Logger.Warn("answer generation failed, using fallback", "err", err)
	return f.Secondary.Answer(ctx, query, retrieved, history)
}
