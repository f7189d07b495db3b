package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PawnPrice/internal/domain/models"
	xhttp "PawnPrice/pkg/http"
	"PawnPrice/pkg/logger"
)

var (
	ErrNotConfigured = errors.New("vision: base url not configured")
	ErrNoImages      = errors.New("vision: at least one image is required")
)

// Client calls the external identification service. Images are passed
// through as base64 strings or URLs.
type Client struct {
	baseURL    string
	client     *xhttp.Client
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(c *xhttp.Client) Option {
	return func(v *Client) { v.client = c }
}

func WithRetry(attempts int, backoff time.Duration) Option {
	return func(v *Client) {
		v.maxRetries = attempts
		v.backoff = backoff
	}
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithClientLogger(log)),
		maxRetries: 2,
		backoff:    50 * time.Millisecond,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type identifyRequest struct {
	Images      []string `json:"images"`
	Description string   `json:"description,omitempty"`
}

type identifyResponse struct {
	Brand            string `json:"brand"`
	Model            string `json:"model"`
	Category         string `json:"category"`
	Condition        string `json:"condition"`
	Confidence       int    `json:"confidence"`
	ConditionClear   *bool  `json:"condition_clear"`
	DescriptionMatch *bool  `json:"description_match"`
	Description      string `json:"description"`
}

func (c *Client) Identify(ctx context.Context, images []string, description string) (*models.Identification, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	var resp identifyResponse
	if err := c.postWithRetry(ctx, "/identify", identifyRequest{Images: images, Description: description}, &resp); err != nil {
		return nil, err
	}

	id := &models.Identification{
		Brand:            strings.TrimSpace(resp.Brand),
		Model:            strings.TrimSpace(resp.Model),
		Category:         resp.Category,
		Condition:        resp.Condition,
		Confidence:       clamp(resp.Confidence, 0, 100),
		ConditionClear:   resp.ConditionClear == nil || *resp.ConditionClear,
		DescriptionMatch: resp.DescriptionMatch == nil || *resp.DescriptionMatch,
		Description:      resp.Description,
	}
	if id.Category == "" {
		id.Category = models.CategoryUnknown
	}
	if id.Condition == "" {
		id.Condition = models.ConditionUnknown
	}
	c.log.Info("item identified",
		logger.String("brand", id.Brand),
		logger.String("model", id.Model),
		logger.Int("confidence", id.Confidence))
	return id, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest interface{}) error {
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// postWithRetry retries any failure with a linear backoff.
func (c *Client) postWithRetry(ctx context.Context, path string, payload, dest interface{}) error {
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i) * c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = c.post(ctx, path, payload, dest); err == nil {
			return nil
		}
		c.log.Warn("vision request failed", logger.Int("attempt", i+1), logger.Error(err))
	}
	return err
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
