// Package enrichment derives category and caption for newly seen files.
// Category inference is a free, local keyword match; captioning calls the
// external provider with bounded retry and degrades to a fallback label, so
// a broken provider never fails a file.
package enrichment

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
	"github.com/drivehit/gallery-sync/internal/util/ratelimiter"
)

// FallbackCaption is returned once provider retries are exhausted
const FallbackCaption = "no description"

// Config tunes the pipeline
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	CallInterval   time.Duration
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		CallInterval:   1200 * time.Millisecond,
	}
}

var categoryRules = []struct {
	pattern  *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`nature|forest|tree|mountain|river`), "Nature"},
	{regexp.MustCompile(`business|office|meeting|corporate`), "Business"},
	{regexp.MustCompile(`tech|computer|software|ai|code`), "Technology"},
}

// Pipeline implements port.Enricher
type Pipeline struct {
	config   *Config
	provider port.CaptionProvider
	pacer    *ratelimiter.Interval
	logger   *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

var _ port.Enricher = (*Pipeline)(nil)

// New creates an enrichment pipeline
func New(cfg *Config, provider port.CaptionProvider, logger *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Pipeline{
		config:   cfg,
		provider: provider,
		pacer:    ratelimiter.NewInterval(cfg.CallInterval),
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Classify infers a category from the file name and generates a caption via
// the provider. The returned enrichment is always usable.
func (p *Pipeline) Classify(ctx context.Context, desc port.FileDescriptor, content []byte) (*port.Enrichment, error) {
	category := InferCategory(desc.Name)

	caption := p.captionWithRetry(ctx, &port.CaptionRequest{
		FileName: desc.Name,
		Category: category,
		MimeType: desc.MimeType,
		Content:  content,
	})

	return &port.Enrichment{Category: category, Caption: caption}, nil
}

// InferCategory matches keyword heuristics against the file name, falling
// back to the default category on no match.
func InferCategory(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(lower) {
			return rule.category
		}
	}
	return domain.FallbackCategory
}

// captionWithRetry calls the provider with exponential backoff. Calls are
// paced to respect the provider's aggregate rate ceiling. Fatal provider
// errors stop retrying early; exhaustion yields the fallback caption.
func (p *Pipeline) captionWithRetry(ctx context.Context, req *port.CaptionRequest) string {
	if p.provider == nil {
		return FallbackCaption
	}

	delay := p.config.InitialBackoff
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := p.pacer.Wait(ctx); err != nil {
			return FallbackCaption
		}

		caption, err := p.provider.Caption(ctx, req)
		if err == nil {
			return caption
		}

		p.logger.Warn("caption attempt failed",
			zap.String("file", req.FileName),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if !domain.IsRetryable(err) || attempt == p.config.MaxRetries {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			break
		}
		delay *= 2
	}
	return FallbackCaption
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
