package scrape

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

// ExtractorConfig locates the excerpt on a chapter page.
type ExtractorConfig struct {
	Region   string
	Selector string
}

// Extractor implements harvest.ExcerptExtractor.
type Extractor struct {
	fetcher harvest.Fetcher
	cfg     ExtractorConfig
	logger  *zap.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(fetcher harvest.Fetcher, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if cfg.Region == "" {
		cfg.Region = DefaultContentRegion
	}
	if cfg.Selector == "" {
		cfg.Selector = DefaultExcerptSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Extract fetches one chapter page and returns its leading excerpt. A failed
// fetch never escapes: it is logged and reported as no excerpt.
func (e *Extractor) Extract(ctx context.Context, url string) (string, bool) {
	page, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		e.logger.Warn("chapter fetch failed", zap.String("url", url), zap.Error(err))
		return "", false
	}
	return ParseExcerpt(page.Body, e.cfg.Region, e.cfg.Selector)
}

// ParseExcerpt returns the trimmed text of the first element matching
// selector inside region. Only the first match is considered.
func ParseExcerpt(body []byte, region, selector string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	content := doc.Find(region).First()
	if content.Length() == 0 {
		return "", false
	}
	block := content.Find(selector).First()
	if block.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(block.Text())
	if text == "" {
		return "", false
	}
	return text, true
}
