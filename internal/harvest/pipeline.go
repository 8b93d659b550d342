package harvest

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/metrics"
	"github.com/JakeFAU/guide-quotes/internal/retry"
	"github.com/JakeFAU/guide-quotes/internal/telemetry"
)

// Chapter outcome labels reported to metrics.
const (
	outcomeStored    = "stored"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
)

// PipelineConfig controls store retries and notifications.
type PipelineConfig struct {
	Retry retry.Policy
	Topic string
}

// Pipeline collects chapter links, extracts each excerpt and stores it.
type Pipeline struct {
	collector LinkCollector
	extractor ExcerptExtractor
	store     Store
	publisher Publisher
	cfg       PipelineConfig
	logger    *zap.Logger
}

// NewPipeline constructs a Pipeline. publisher may be nil.
func NewPipeline(
	collector LinkCollector,
	extractor ExcerptExtractor,
	store Store,
	publisher Publisher,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Pipeline{
		collector: collector,
		extractor: extractor,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run performs one harvest. Chapters without an excerpt are skipped. A store
// error that is not contention, contention that outlasts the retry policy, or
// cancellation of ctx aborts the run; records stored before the failure are
// kept.
func (p *Pipeline) Run(ctx context.Context) (summary Summary, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "harvest.run")
	defer func() {
		span.SetAttributes(
			attribute.Int("harvest.links", summary.Links),
			attribute.Int("harvest.stored", summary.Stored),
			attribute.Int("harvest.skipped", summary.Skipped),
			attribute.Int("harvest.retries", summary.Retries),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	links, err := p.collector.Collect(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("collect links: %w", err)
	}
	summary.Links = len(links)
	if len(links) == 0 {
		p.logger.Warn("table of contents yielded no chapter links")
		return summary, nil
	}
	p.logger.Debug("chapter links collected", zap.Int("links", len(links)))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("harvest canceled: %w", err)
		}
		if err := p.harvestChapter(ctx, link, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (p *Pipeline) harvestChapter(ctx context.Context, link ChapterLink, summary *Summary) error {
	ctx, span := telemetry.Tracer().Start(ctx, "harvest.chapter",
		trace.WithAttributes(attribute.String("chapter.url", link.URL)))
	defer span.End()

	excerpt, ok := p.extractor.Extract(ctx, link.URL)
	if !ok {
		// A canceled fetch also reads as "no excerpt".
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("harvest canceled: %w", err)
		}
		summary.Skipped++
		metrics.ObserveChapter(outcomeSkipped)
		span.SetAttributes(attribute.String("chapter.outcome", outcomeSkipped))
		p.logger.Debug("no excerpt found", zap.String("url", link.URL))
		return nil
	}

	record := ChapterRecord{Title: link.Title, URL: link.URL, Excerpt: excerpt}
	created, err := p.insert(ctx, record, summary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return fmt.Errorf("store chapter %s: %w", link.URL, err)
	}
	if !created {
		summary.Duplicates++
		metrics.ObserveChapter(outcomeDuplicate)
		span.SetAttributes(attribute.String("chapter.outcome", outcomeDuplicate))
		return nil
	}
	summary.Stored++
	metrics.ObserveChapter(outcomeStored)
	span.SetAttributes(attribute.String("chapter.outcome", outcomeStored))
	p.logger.Info("chapter stored", zap.String("url", link.URL), zap.String("chapter", link.Title))
	p.notify(ctx, record)
	return nil
}

func (p *Pipeline) insert(ctx context.Context, record ChapterRecord, summary *Summary) (bool, error) {
	var created bool
	onRetry := func(attempt int, err error) {
		summary.Retries++
		metrics.ObserveStoreRetry()
		p.logger.Warn("store busy, retrying",
			zap.String("url", record.URL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.Retry.MaxAttempts),
			zap.Error(err),
		)
	}
	err := retry.Do(ctx, p.cfg.Retry, IsContention, onRetry, func(ctx context.Context) error {
		var err error
		created, err = p.store.InsertIfAbsent(ctx, record)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (p *Pipeline) notify(ctx context.Context, record ChapterRecord) {
	if p.cfg.Topic == "" || p.publisher == nil {
		return
	}
	payload := map[string]any{
		"chapter":   record.Title,
		"url":       record.URL,
		"quote":     record.Excerpt,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("publish chapter notification failed", zap.String("url", record.URL), zap.Error(err))
	}
}
