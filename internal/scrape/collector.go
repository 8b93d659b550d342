// Package scrape turns fetched table-of-contents and chapter pages into
// chapter links and excerpts.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

// Default selectors for the WordPress theme the guide is published with.
const (
	DefaultTOCRegion       = "div.entry-content"
	DefaultContentRegion   = "div.entry-content"
	DefaultExcerptSelector = "blockquote, p"
)

// CollectorConfig locates the table of contents.
type CollectorConfig struct {
	TOCURL string
	Region string
}

// Collector implements harvest.LinkCollector.
type Collector struct {
	fetcher harvest.Fetcher
	cfg     CollectorConfig
	logger  *zap.Logger
}

// NewCollector constructs a Collector.
func NewCollector(fetcher harvest.Fetcher, cfg CollectorConfig, logger *zap.Logger) *Collector {
	if cfg.Region == "" {
		cfg.Region = DefaultTOCRegion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Collect fetches the table of contents and returns every list-item anchor of
// the content region in document order. Fetch failures are returned; an empty
// result is not an error.
func (c *Collector) Collect(ctx context.Context) ([]harvest.ChapterLink, error) {
	page, err := c.fetcher.Fetch(ctx, c.cfg.TOCURL)
	if err != nil {
		return nil, fmt.Errorf("fetch table of contents: %w", err)
	}
	links, err := ParseLinks(page.Body, c.cfg.Region)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("table of contents parsed", zap.String("url", c.cfg.TOCURL), zap.Int("links", len(links)))
	return links, nil
}

// ParseLinks extracts (title, href) pairs from `li a` elements inside region.
// Anchors without an href are skipped.
func ParseLinks(body []byte, region string) ([]harvest.ChapterLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse table of contents: %w", err)
	}
	links := []harvest.ChapterLink{}
	doc.Find(region).Find("li a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		links = append(links, harvest.ChapterLink{
			Title: strings.TrimSpace(sel.Text()),
			URL:   href,
		})
	})
	return links, nil
}
