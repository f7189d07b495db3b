package marketplace

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/domain/service"
	xhttp "PawnPrice/pkg/http"
	"PawnPrice/pkg/logger"
	"PawnPrice/pkg/util"
)

const (
	ebayScope       = "https://api.ebay.com/oauth/api_scope"
	ebayMarketplace = "EBAY_US"
	ebayMaxLimit    = 200
	// tokenSkew renews the token a minute before eBay says it expires.
	tokenSkew = 60 * time.Second
)

var ErrMissingCredentials = errors.New("ebay: app id and cert id are required")

var ebayConditions = map[string]string{
	models.ConditionNew:     "NEW",
	models.ConditionLikeNew: "USED_EXCELLENT",
	models.ConditionGood:    "USED_GOOD|USED_VERY_GOOD",
	models.ConditionFair:    "USED_ACCEPTABLE",
	models.ConditionPoor:    "FOR_PARTS_OR_NOT_WORKING",
}

const ebayDefaultConditions = "USED_EXCELLENT|USED_GOOD|USED_VERY_GOOD"

type EbayConfig struct {
	BaseURL     string
	AuthURL     string
	AppID       string
	CertID      string
	MinInterval time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// EbayClient searches the eBay Browse API.
type EbayClient struct {
	cfg    EbayConfig
	client *xhttp.Client
	log    *logger.Logger
	health *healthTracker
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewEbayClient(cfg EbayConfig, log *logger.Logger) *EbayClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EbayClient{
		cfg: cfg,
		// Retries live in Search so blocked responses can be counted.
		client: xhttp.NewClient(
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithClientRateLimit(cfg.MinInterval, 1),
			xhttp.WithClientLogger(log),
		),
		log:    log.With(logger.String("source", models.SourceEbay)),
		health: newHealthTracker(models.SourceEbay),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func (c *EbayClient) Name() string { return models.SourceEbay }

func (c *EbayClient) Health() models.SourceHealth { return c.health.snapshot() }

type ebayTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *EbayClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	if c.cfg.AppID == "" || c.cfg.CertID == "" {
		return "", ErrMissingCredentials
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.AppID + ":" + c.cfg.CertID))
	var resp ebayTokenResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.cfg.AuthURL,
		Headers: map[string]string{
			"Authorization": "Basic " + basic,
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: url.Values{
			"grant_type": {"client_credentials"},
			"scope":      {ebayScope},
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("ebay token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("ebay token: empty access token")
	}

	expiresIn := time.Duration(resp.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = 2 * time.Hour
	}
	c.token = resp.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn - tokenSkew)
	c.log.Info("ebay access token obtained", logger.Duration("expires_in_ms", expiresIn))
	return c.token, nil
}

// Filter builds the Browse API filter expression.
func (c *EbayClient) Filter(condition string, daysBack int) string {
	conds, ok := ebayConditions[condition]
	if !ok {
		conds = ebayDefaultConditions
	}
	cutoff := c.now().AddDate(0, 0, -daysBack)
	return strings.Join([]string{
		"buyingOptions:{FIXED_PRICE}",
		"conditions:{" + conds + "}",
		"endedAfter:" + util.EbayTimestamp(cutoff),
	}, ",")
}

type ebaySearchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []ebayItemRaw `json:"itemSummaries"`
}

type ebayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ebayItemRaw struct {
	Title           string     `json:"title"`
	Price           ebayAmount `json:"price"`
	Condition       string     `json:"condition"`
	ItemEndDate     string     `json:"itemEndDate"`
	ItemWebURL      string     `json:"itemWebUrl"`
	ShippingOptions []struct {
		ShippingCost ebayAmount `json:"shippingCost"`
	} `json:"shippingOptions"`
	ItemLocation struct {
		Country    string `json:"country"`
		PostalCode string `json:"postalCode"`
	} `json:"itemLocation"`
}

// Search returns listings for q. Rate-limit and block responses are
// retried with exponential backoff.
func (c *EbayClient) Search(ctx context.Context, q service.SearchQuery) ([]models.Listing, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 || limit > ebayMaxLimit {
		limit = ebayMaxLimit
	}
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    strings.TrimRight(c.cfg.BaseURL, "/") + "/item_summary/search",
		Headers: map[string]string{
			"Authorization":           "Bearer " + token,
			"X-EBAY-C-MARKETPLACE-ID": ebayMarketplace,
		},
		QueryParams: map[string][]string{
			"q":      {q.Query},
			"filter": {c.Filter(q.Condition, q.DaysBack)},
			"limit":  {strconv.Itoa(limit)},
			"sort":   {"price"},
		},
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.BaseBackoff * time.Duration(1<<uint(attempt-1))
			c.log.Info("retrying with backoff", logger.Int("attempt", attempt+1), logger.Duration("backoff_ms", backoff))
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		c.health.attempt()
		start := time.Now()
		var resp ebaySearchResponse
		err := c.client.SendAndParse(ctx, opts, &resp)
		if err == nil {
			elapsed := time.Since(start)
			c.health.succeeded(elapsed)
			listings := c.parse(resp.ItemSummaries)
			c.log.Info("ebay search completed",
				logger.String("query", q.Query),
				logger.Int("listings_found", len(listings)),
				logger.Duration("response_ms", elapsed),
				logger.Int("attempt", attempt+1))
			return listings, nil
		}

		lastErr = err
		var serr *xhttp.StatusError
		if errors.As(err, &serr) {
			switch serr.Code {
			case http.StatusTooManyRequests:
				c.health.blockedOnce()
				c.log.Warn("ebay rate limited", logger.Int("attempt", attempt+1))
				continue
			case http.StatusForbidden:
				c.health.blockedOnce()
				c.log.Error("ebay blocked", logger.Int("attempt", attempt+1))
				continue
			case http.StatusUnauthorized:
				c.resetToken()
			}
			if !serr.Retryable() {
				break
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	c.health.failedOnce()
	c.log.Error("ebay search failed", logger.String("query", q.Query), logger.Error(lastErr))
	return nil, fmt.Errorf("ebay search: %w", lastErr)
}

func (c *EbayClient) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *EbayClient) parse(items []ebayItemRaw) []models.Listing {
	out := make([]models.Listing, 0, len(items))
	for _, it := range items {
		price, err := strconv.ParseFloat(it.Price.Value, 64)
		if err != nil || price <= 0 {
			c.log.Warn("failed to parse listing", logger.String("title", it.Title), logger.String("price", it.Price.Value))
			continue
		}
		l := models.Listing{
			Title:     it.Title,
			Price:     price,
			Condition: it.Condition,
			Source:    models.SourceEbay,
			URL:       it.ItemWebURL,
			Location:  it.ItemLocation.Country,
		}
		if l.Condition == "" {
			l.Condition = models.ConditionUnknown
		}
		if len(it.ShippingOptions) > 0 {
			l.Shipping, _ = strconv.ParseFloat(it.ShippingOptions[0].ShippingCost.Value, 64)
		}
		if t, ok := util.ParseTime(it.ItemEndDate); ok {
			l.SoldDate = &t
		}
		out = append(out, l)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
