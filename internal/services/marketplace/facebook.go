package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/domain/service"
	"PawnPrice/pkg/logger"
	"PawnPrice/pkg/util"
)

const (
	fbResultsSelector = `[data-testid="marketplace_search_results"]`
	fbItemSelector    = `[data-testid="marketplace_search_result_item"]`
	fbItemLink        = `a[href*="/marketplace/item/"]`
	fbHost            = "https://www.facebook.com"
	fbUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Renderer loads a page in a real browser and returns its HTML.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

type FacebookConfig struct {
	BaseURL     string
	PageTimeout time.Duration
	Scrolls     int
	MinInterval time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	ChromePath  string
}

// FacebookClient scrapes Facebook Marketplace search results.
type FacebookClient struct {
	cfg      FacebookConfig
	renderer Renderer
	limiter  *rate.Limiter
	log      *logger.Logger
	health   *healthTracker
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewFacebookClient uses a headless Chrome renderer when r is nil.
func NewFacebookClient(cfg FacebookConfig, r Renderer, log *logger.Logger) *FacebookClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	if r == nil {
		r = &ChromeRenderer{
			ExecPath: cfg.ChromePath,
			Timeout:  cfg.PageTimeout,
			Scrolls:  cfg.Scrolls,
		}
	}
	return &FacebookClient{
		cfg:      cfg,
		renderer: r,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		log:      log.With(logger.String("source", models.SourceFacebook)),
		health:   newHealthTracker(models.SourceFacebook),
		sleep:    sleepCtx,
	}
}

func (c *FacebookClient) Name() string { return models.SourceFacebook }

func (c *FacebookClient) Health() models.SourceHealth { return c.health.snapshot() }

func (c *FacebookClient) searchURL(query string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/search?query=" + url.QueryEscape(query)
}

func (c *FacebookClient) Search(ctx context.Context, q service.SearchQuery) ([]models.Listing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageURL := c.searchURL(q.Query)
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.cfg.BaseBackoff*time.Duration(1<<uint(attempt-1))); err != nil {
				return nil, err
			}
		}

		c.health.attempt()
		start := time.Now()
		html, err := c.renderer.Render(ctx, pageURL)
		if err != nil {
			lastErr = err
			if errors.Is(err, context.DeadlineExceeded) {
				c.log.Warn("facebook timeout", logger.Int("attempt", attempt+1), logger.Error(err))
			} else {
				c.log.Error("facebook scrape error", logger.Int("attempt", attempt+1), logger.Error(err))
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		listings, err := ParseFacebookListings(html, q.Limit)
		if err != nil {
			lastErr = err
			continue
		}
		elapsed := time.Since(start)
		c.health.succeeded(elapsed)
		c.log.Info("facebook search completed",
			logger.String("query", q.Query),
			logger.Int("listings_found", len(listings)),
			logger.Duration("response_ms", elapsed),
			logger.Int("attempt", attempt+1))
		return listings, nil
	}

	c.health.failedOnce()
	return nil, fmt.Errorf("facebook search: %w", lastErr)
}

// ParseFacebookListings extracts result cards from a rendered search
// page. Cards without a title or a positive price are skipped.
func ParseFacebookListings(html string, limit int) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse facebook html: %w", err)
	}

	var out []models.Listing
	doc.Find(fbItemSelector).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		if l, ok := parseCard(card); ok {
			out = append(out, l)
		}
		return true
	})
	return out, nil
}

func parseCard(card *goquery.Selection) (models.Listing, bool) {
	title := strings.TrimSpace(card.Find(`span[dir="auto"]`).First().Text())

	var price float64
	var location string
	card.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if price == 0 && strings.Contains(text, "$") {
			price = util.ParsePrice(text)
		}
		if location == "" && strings.Contains(text, "miles away") {
			location = strings.TrimSpace(text)
		}
		return price == 0 || location == ""
	})

	if title == "" || price <= 0 {
		return models.Listing{}, false
	}

	l := models.Listing{
		Title:     title,
		Price:     price,
		Condition: ConditionFromTitle(title),
		Source:    models.SourceFacebook,
		Location:  location,
	}
	if href, ok := card.Find(fbItemLink).First().Attr("href"); ok && href != "" {
		if strings.HasPrefix(href, "http") {
			l.URL = href
		} else {
			l.URL = fbHost + href
		}
	}
	return l, true
}

// ConditionFromTitle guesses condition from seller wording.
func ConditionFromTitle(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "like new"):
		return models.ConditionLikeNew
	case strings.Contains(t, "new"):
		return models.ConditionNew
	case strings.Contains(t, "used"):
		return models.ConditionGood
	default:
		return models.ConditionUnknown
	}
}

// ChromeRenderer drives a headless Chrome through chromedp.
type ChromeRenderer struct {
	ExecPath string
	Timeout  time.Duration
	Scrolls  int
}

func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(fbUserAgent),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, r.Timeout)
	defer cancel()

	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(fbResultsSelector, chromedp.ByQuery),
	}
	for i := 0; i < r.Scrolls; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
			chromedp.Sleep(time.Second),
		)
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}
