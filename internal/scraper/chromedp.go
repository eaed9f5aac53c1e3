package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/nsgamedb/eshop-scraper/internal/eshop"
)

// payloadProbe pulls the store's title-detail JSON out of the rendered page.
// Returns "" when the global is absent.
const payloadProbe = `(() => {
	const n = window.NXSTORE;
	if (n && n.titleDetail && n.titleDetail.jsonData) {
		return JSON.stringify(n.titleDetail.jsonData);
	}
	return "";
})()`

// HeadlessScraper renders product pages in headless Chrome via chromedp.
type HeadlessScraper struct {
	cfg         Config
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewHeadless creates a scraper backed by a shared Chrome exec allocator.
// Individual scrapes get their own browser tab.
func NewHeadless(cfg Config, logger *zap.Logger) (*HeadlessScraper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", "zh-CN"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &HeadlessScraper{
		cfg:         cfg,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close tears down the browser allocator.
func (s *HeadlessScraper) Close() {
	s.allocCancel()
}

// Scrape renders the product page for id and maps the embedded payload onto
// a GameRecord. When the page carries no payload the meta tags are used as
// a degraded source.
func (s *HeadlessScraper) Scrape(ctx context.Context, id string) (*eshop.GameRecord, error) {
	kind, err := eshop.ClassifyID(id)
	if err != nil {
		return nil, err
	}
	url := eshop.StorefrontURL(id, kind)

	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	s.logger.Debug("visiting product page",
		zap.String("id", id),
		zap.String("kind", string(kind)),
		zap.String("url", url),
	)

	html, payload, err := s.render(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}
	if blockedDocument(doc) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, url)
	}

	var rec *eshop.GameRecord
	if payload != "" {
		parsed, err := parsePayload([]byte(payload))
		if err != nil {
			return nil, err
		}
		rec, err = buildRecord(parsed, id, kind)
		if err != nil {
			return nil, err
		}
	} else {
		rec, err = metaRecord(
			metaContent(doc, "search.name"),
			metaContent(doc, "search.publisher"),
			id, kind,
		)
		if err != nil {
			return nil, err
		}
		s.logger.Warn("no rendered payload, using meta tags", zap.String("id", id))
	}

	fields := []zap.Field{
		zap.String("title_id", rec.TitleID),
		zap.String("name", rec.DisplayName()),
	}
	if rec.RomSize != nil {
		fields = append(fields, zap.String("rom_size", humanize.Bytes(uint64(*rec.RomSize))))
	}
	s.logger.Info("scraped game", fields...)
	return rec, nil
}

func (s *HeadlessScraper) render(ctx context.Context, url string) (html, payload string, err error) {
	taskCtx, taskCancel := chromedp.NewContext(s.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, s.cfg.navTimeout())
	defer cancel()

	go func() {
		// Propagate caller cancellation into the browser tab.
		select {
		case <-ctx.Done():
			taskCancel()
		case <-taskCtx.Done():
		}
	}()

	actions := []chromedp.Action{
		s.networkSetup(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay()),
		chromedp.Evaluate(payloadProbe, &payload),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, payload, nil
}

func (s *HeadlessScraper) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		headers := network.Headers{
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8,ja;q=0.7",
		}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

// pause sleeps a random duration in [DelayMin, DelayMax] so visits do not
// arrive on a fixed cadence.
func (s *HeadlessScraper) pause(ctx context.Context) error {
	if s.cfg.DelayMax <= 0 {
		return nil
	}
	min := s.cfg.DelayMin
	span := s.cfg.DelayMax - min
	delay := min
	if span > 0 {
		delay += time.Duration(rand.Int64N(int64(span)))
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scrape delay canceled: %w", ctx.Err())
	}
}

// settleDelay gives client-side rendering a moment after readyState.
func settleDelay() time.Duration {
	return time.Second + time.Duration(rand.Int64N(int64(2*time.Second)))
}
