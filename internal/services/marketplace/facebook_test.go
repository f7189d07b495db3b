package marketplace

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/domain/service"
	"PawnPrice/pkg/logger"
)

const fbFixture = `<html><body>
<div data-testid="marketplace_search_results">
  <div data-testid="marketplace_search_result_item">
    <a href="/marketplace/item/111/"><span dir="auto">Nintendo Switch OLED like new</span></a>
    <span><span>$1,250</span></span>
    <span>12 miles away</span>
  </div>
  <div data-testid="marketplace_search_result_item">
    <a href="/marketplace/item/222/"><span dir="auto">Switch Lite used</span></a>
    <span>$140</span>
  </div>
  <div data-testid="marketplace_search_result_item">
    <span dir="auto">Free switch dock</span>
    <span>Free</span>
  </div>
  <div data-testid="marketplace_search_result_item">
    <span dir="auto"></span>
    <span>$90</span>
  </div>
  <div data-testid="marketplace_search_result_item">
    <span dir="auto">Switch brand new sealed</span>
    <span>$310.50</span>
  </div>
</div>
</body></html>`

func TestParseFacebookListings(t *testing.T) {
	listings, err := ParseFacebookListings(fbFixture, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 3 {
		t.Fatalf("got %d listings, want 3", len(listings))
	}

	first := listings[0]
	if first.Title != "Nintendo Switch OLED like new" || first.Price != 1250 {
		t.Errorf("first = %+v", first)
	}
	if first.Condition != models.ConditionLikeNew {
		t.Errorf("condition = %q", first.Condition)
	}
	if first.URL != "https://www.facebook.com/marketplace/item/111/" {
		t.Errorf("url = %q", first.URL)
	}
	if first.Location != "12 miles away" {
		t.Errorf("location = %q", first.Location)
	}
	if listings[1].Condition != models.ConditionGood || listings[1].Price != 140 {
		t.Errorf("second = %+v", listings[1])
	}
	if listings[2].Condition != models.ConditionNew || listings[2].Price != 310.5 || listings[2].URL != "" {
		t.Errorf("third = %+v", listings[2])
	}
	for _, l := range listings {
		if l.Source != models.SourceFacebook || l.SoldDate != nil {
			t.Errorf("listing %q: source %q sold %v", l.Title, l.Source, l.SoldDate)
		}
	}
}

func TestParseFacebookListingsLimit(t *testing.T) {
	listings, err := ParseFacebookListings(fbFixture, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 2 {
		t.Errorf("got %d listings, want 2", len(listings))
	}
}

func TestConditionFromTitle(t *testing.T) {
	tests := map[string]string{
		"iPad Air LIKE NEW":   models.ConditionLikeNew,
		"New in box drill":    models.ConditionNew,
		"used camera body":    models.ConditionGood,
		"Vintage camera body": models.ConditionUnknown,
	}
	for title, want := range tests {
		if got := ConditionFromTitle(title); got != want {
			t.Errorf("ConditionFromTitle(%q) = %q, want %q", title, got, want)
		}
	}
}

type fakeRenderer struct {
	html  string
	errs  []error
	calls int
	urls  []string
}

func (f *fakeRenderer) Render(_ context.Context, pageURL string) (string, error) {
	f.calls++
	f.urls = append(f.urls, pageURL)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.html, nil
}

func newTestFacebook(r Renderer) *FacebookClient {
	c := NewFacebookClient(FacebookConfig{
		BaseURL:     "https://www.facebook.com/marketplace",
		MinInterval: time.Millisecond,
		MaxRetries:  3,
	}, r, logger.Nop())
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestFacebookSearchRetries(t *testing.T) {
	r := &fakeRenderer{html: fbFixture, errs: []error{context.DeadlineExceeded, errors.New("boom")}}
	c := newTestFacebook(r)

	listings, err := c.Search(context.Background(), service.SearchQuery{Query: "nintendo switch", Limit: 30})
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 3 || r.calls != 3 {
		t.Errorf("listings=%d calls=%d", len(listings), r.calls)
	}
	if !strings.HasSuffix(r.urls[0], "/marketplace/search?query=nintendo+switch") {
		t.Errorf("url = %q", r.urls[0])
	}
	h := c.Health()
	if h.TotalRequests != 3 || h.SuccessfulRequests != 1 || h.FailedRequests != 0 {
		t.Errorf("health = %+v", h)
	}
}

func TestFacebookSearchFails(t *testing.T) {
	boom := errors.New("browser crashed")
	r := &fakeRenderer{errs: []error{boom, boom, boom}}
	c := newTestFacebook(r)

	_, err := c.Search(context.Background(), service.SearchQuery{Query: "q"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if h := c.Health(); h.FailedRequests != 1 || h.SuccessRate != 0 {
		t.Errorf("health = %+v", h)
	}
}
