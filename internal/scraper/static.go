package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

// StaticScraper fetches the raw product page without a browser and reads
// the meta tags. It cannot see the rendered JSON payload, so its records
// are sparse; it exists as a fallback when headless rendering comes back
// empty or unavailable.
type StaticScraper struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// NewStatic builds a meta-tag scraper on a Colly collector.
func NewStatic(cfg Config, logger *zap.Logger) *StaticScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &StaticScraper{cfg: cfg, logger: logger, baseCollector: c}
}

// Close is a no-op; the collector holds no long-lived resources.
func (s *StaticScraper) Close() {}

// Scrape fetches the product page for id and builds a record from its meta
// tags.
func (s *StaticScraper) Scrape(ctx context.Context, id string) (*eshop.GameRecord, error) {
	kind, err := eshop.ClassifyID(id)
	if err != nil {
		return nil, err
	}
	return s.scrapeURL(ctx, eshop.StorefrontURL(id, kind), id, kind)
}

func (s *StaticScraper) scrapeURL(ctx context.Context, url, id string, kind eshop.IDKind) (*eshop.GameRecord, error) {
	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	if blockedDocument(doc) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, url)
	}

	rec, err := metaRecord(
		metaContent(doc, "search.name"),
		metaContent(doc, "search.publisher"),
		id, kind,
	)
	if err != nil {
		return nil, err
	}
	s.logger.Info("scraped game from static page",
		zap.String("title_id", rec.TitleID),
		zap.String("name", rec.DisplayName()),
	)
	return rec, nil
}

func (s *StaticScraper) fetch(ctx context.Context, url string) ([]byte, error) {
	collector := s.baseCollector.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.SetRequestTimeout(s.cfg.navTimeout())

	var (
		body     []byte
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8,ja;q=0.7")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
