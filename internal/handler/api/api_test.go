package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/services/fraud"
	"PawnPrice/internal/services/pricing"
	"PawnPrice/internal/usecase"
	xhttp "PawnPrice/pkg/http"
	xlogger "PawnPrice/pkg/logger"
)

type stubResearcher struct{}

func (stubResearcher) Research(_ context.Context, req models.ResearchRequest) (*models.ResearchResult, error) {
	return &models.ResearchResult{
		Query:         req.Brand + " " + req.Model,
		Stats:         models.MarketplaceStats{Count: 25, Median: 200, Mean: 200},
		DataFreshness: models.FreshnessLive,
	}, nil
}

func (stubResearcher) SourceHealth() []models.SourceHealth {
	return []models.SourceHealth{{Source: models.SourceEbay, TotalRequests: 4, SuccessfulRequests: 4, SuccessRate: 100}}
}

type stubRunner struct {
	dryRun bool
	err    error
}

func (r *stubRunner) Run(_ context.Context, dryRun bool) (*models.OptimizerSummary, error) {
	r.dryRun = dryRun
	if r.err != nil {
		return nil, r.err
	}
	return &models.OptimizerSummary{RunID: "run-1", DryRun: dryRun, Analyzed: 3, Adjusted: 1, Skipped: 2}, nil
}

type checker struct{ err error }

func (c checker) Health(context.Context) error { return c.err }

func newPricingService(t *testing.T, analyzer *usecase.FraudAnalyzer) *usecase.PricingService {
	t.Helper()
	offers, err := pricing.NewOfferEngine(pricing.DefaultOfferConfig())
	if err != nil {
		t.Fatalf("NewOfferEngine: %v", err)
	}
	return usecase.NewPricingService(usecase.PricingDeps{
		Researcher: stubResearcher{},
		FMV:        pricing.NewFMVEngine(),
		Offers:     offers,
		Scorer:     pricing.NewConfidenceScorer(),
		Fraud:      analyzer,
	})
}

func newAnalyzer(t *testing.T, enabled bool) *usecase.FraudAnalyzer {
	t.Helper()
	d, err := fraud.NewDetector(fraud.DefaultRules())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return usecase.NewFraudAnalyzer(usecase.FraudAnalyzerDeps{Enabled: enabled, Detector: d})
}

func newEcho(t *testing.T, fraudEnabled bool, runner OptimizerRunner) *echo.Echo {
	t.Helper()
	log := xlogger.Nop()
	analyzer := newAnalyzer(t, fraudEnabled)
	svc := newPricingService(t, analyzer)

	e := echo.New()
	xhttp.Handlers{
		NewPricingHandler(log, svc, pricing.NewPriceOptimizer(2)),
		NewFraudHandler(log, analyzer),
		NewAdminHandler(log, "test-secret", runner, true),
		NewStreamHandler(log, svc),
		NewHealthHandler(map[string]HealthChecker{"offers": checker{}}),
	}.RegisterRoutes(e)
	return e
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, path, body string, headers ...string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, env
}

func TestPricingRoutes(t *testing.T) {
	e := newEcho(t, true, &stubRunner{})

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"fmv", "/api/v1/pricing/fmv", `{"category":"Gaming","condition":"Good","marketplace_stats":{"count":12,"median":150,"mean":150}}`, http.StatusOK},
		{"fmv missing category", "/api/v1/pricing/fmv", `{"condition":"Good"}`, http.StatusBadRequest},
		{"offer", "/api/v1/pricing/offer", `{"fmv":300,"condition":"Good","category":"Gaming"}`, http.StatusOK},
		{"offer zero fmv", "/api/v1/pricing/offer", `{"fmv":0,"condition":"Good","category":"Gaming"}`, http.StatusBadRequest},
		{"offer trust out of range", "/api/v1/pricing/offer", `{"fmv":300,"condition":"Good","category":"Gaming","user_trust_score":3}`, http.StatusBadRequest},
		{"confidence", "/api/v1/pricing/confidence", `{"vision_confidence":90,"marketplace_data_count":30,"condition_clear":true,"offer_value":120}`, http.StatusOK},
		{"price", "/api/v1/pricing/price", `{"brand":"Apple","model":"iPad Air","category":"Phones & Tablets","condition":"Good"}`, http.StatusOK},
		{"price without item", "/api/v1/pricing/price", `{}`, http.StatusBadRequest},
		{"research", "/api/v1/marketplace/research", `{"brand":"Apple","model":"iPad Air"}`, http.StatusOK},
		{"research missing model", "/api/v1/marketplace/research", `{"brand":"Apple"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, e, http.MethodPost, tt.path, tt.body)
			if code != tt.want || env.Status != tt.want {
				t.Errorf("code = %d envelope = %d, want %d (%s)", code, env.Status, tt.want, env.Data)
			}
		})
	}
}

func TestPriceRouteReturnsQuote(t *testing.T) {
	e := newEcho(t, true, &stubRunner{})
	_, env := do(t, e, http.MethodPost, "/api/v1/pricing/price",
		`{"brand":"Apple","model":"iPad Air","category":"Phones & Tablets","condition":"Good"}`)

	var quote models.PriceQuote
	if err := json.Unmarshal(env.Data, &quote); err != nil {
		t.Fatal(err)
	}
	if quote.FMV.FMV != 200 {
		t.Errorf("fmv = %v, want 200", quote.FMV.FMV)
	}
	if quote.OfferToMarketRatio <= 0 || quote.OfferToMarketRatio >= 1 {
		t.Errorf("ratio = %v", quote.OfferToMarketRatio)
	}
	if quote.Fraud == nil {
		t.Error("fraud assessment missing")
	}
}

func TestOptimizeRoute(t *testing.T) {
	e := newEcho(t, true, &stubRunner{})
	created := time.Now().AddDate(0, 0, -40).UTC().Format(time.RFC3339)
	body := `{"offers":[{"offer_id":"a","current_price":100,"original_offer":50,"created_at":"` + created + `","view_count":0}]}`

	code, env := do(t, e, http.MethodPost, "/api/v1/pricing/optimize", body)
	if code != http.StatusOK {
		t.Fatalf("code = %d (%s)", code, env.Data)
	}
	var res map[string]models.PriceOptimizationResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if r, ok := res["a"]; !ok || !r.ShouldAdjust || r.RecommendedPrice != 85 {
		t.Errorf("result = %+v", res)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/v1/pricing/optimize", `{"offers":[]}`); code != http.StatusBadRequest {
		t.Errorf("empty batch code = %d, want 400", code)
	}
}

func TestMarketplaceHealthRoute(t *testing.T) {
	e := newEcho(t, true, &stubRunner{})
	code, env := do(t, e, http.MethodGet, "/api/v1/marketplace/health", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	var health []models.SourceHealth
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatal(err)
	}
	if len(health) != 1 || health[0].Source != models.SourceEbay {
		t.Errorf("health = %+v", health)
	}
}

func TestFraudRoutes(t *testing.T) {
	e := newEcho(t, true, &stubRunner{})

	code, env := do(t, e, http.MethodPost, "/api/v1/fraud/analyze",
		`{"offer_id":"o-1","offer_amount":95,"fmv":100,"category":"Gaming","condition":"Good"}`)
	if code != http.StatusOK {
		t.Fatalf("analyze code = %d (%s)", code, env.Data)
	}
	var a models.FraudAssessment
	if err := json.Unmarshal(env.Data, &a); err != nil {
		t.Fatal(err)
	}
	if a.OfferID != "o-1" || a.RecommendedAction == "" {
		t.Errorf("assessment = %+v", a)
	}

	code, env = do(t, e, http.MethodPost, "/api/v1/fraud/analyze",
		`{"offer_id":"o-2","offer_amount":95,"fmv":100,"category":"Gaming","condition":"Good","user_trust_score":0}`)
	if code != http.StatusOK {
		t.Fatalf("zero trust code = %d (%s)", code, env.Data)
	}
	var zero models.FraudAssessment
	if err := json.Unmarshal(env.Data, &zero); err != nil {
		t.Fatal(err)
	}
	if got := zero.Breakdown[models.SignalUserTrust]; got != 50 {
		t.Errorf("zero trust signal = %v, want 50", got)
	}
	if got := a.Breakdown[models.SignalUserTrust]; got != 0 {
		t.Errorf("default trust signal = %v, want 0", got)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/v1/fraud/analyze", `{"offer_amount":95}`); code != http.StatusBadRequest {
		t.Errorf("invalid analyze code = %d, want 400", code)
	}

	code, env = do(t, e, http.MethodGet, "/api/v1/fraud/patterns", "")
	if code != http.StatusOK {
		t.Fatalf("patterns code = %d", code)
	}
	var p models.FraudPatterns
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}

	off := newEcho(t, false, &stubRunner{})
	if code, _ := do(t, off, http.MethodGet, "/api/v1/fraud/patterns", ""); code != http.StatusServiceUnavailable {
		t.Errorf("disabled patterns code = %d, want 503", code)
	}
	if code, _ := do(t, off, http.MethodPost, "/api/v1/fraud/analyze",
		`{"offer_id":"o-1","offer_amount":95,"fmv":100,"category":"Gaming","condition":"Good"}`); code != http.StatusServiceUnavailable {
		t.Errorf("disabled analyze code = %d, want 503", code)
	}
}

func bearer(t *testing.T, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + s
}

func TestAdminOptimizerRun(t *testing.T) {
	runner := &stubRunner{}
	e := newEcho(t, true, runner)
	const path = "/api/v1/admin/optimizer/run"

	if code, _ := do(t, e, http.MethodPost, path, ""); code != http.StatusUnauthorized {
		t.Errorf("no token code = %d, want 401", code)
	}
	if code, _ := do(t, e, http.MethodPost, path, "", echo.HeaderAuthorization, bearer(t, "wrong")); code != http.StatusUnauthorized {
		t.Errorf("wrong key code = %d, want 401", code)
	}

	code, env := do(t, e, http.MethodPost, path, "", echo.HeaderAuthorization, bearer(t, "test-secret"))
	if code != http.StatusOK {
		t.Fatalf("code = %d (%s)", code, env.Data)
	}
	if !runner.dryRun {
		t.Error("configured dry run should apply when the body is empty")
	}

	code, _ = do(t, e, http.MethodPost, path, `{"dry_run":false}`, echo.HeaderAuthorization, bearer(t, "test-secret"))
	if code != http.StatusOK || runner.dryRun {
		t.Errorf("code = %d dryRun = %v", code, runner.dryRun)
	}

	runner.err = usecase.ErrOptimizerRunning
	if code, _ := do(t, e, http.MethodPost, path, "", echo.HeaderAuthorization, bearer(t, "test-secret")); code != http.StatusConflict {
		t.Errorf("busy code = %d, want 409", code)
	}
}

func TestHealthRoute(t *testing.T) {
	e := echo.New()
	NewHealthHandler(map[string]HealthChecker{
		"offers":    checker{},
		"warehouse": checker{err: errors.New("connection refused")},
		"disabled":  nil,
	}).RegisterRoutes(e)

	code, env := do(t, e, http.MethodGet, "/health", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", code)
	}
	var body struct {
		Healthy    bool              `json:"healthy"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Healthy || body.Components["offers"] != "ok" || body.Components["warehouse"] != "connection refused" {
		t.Errorf("body = %+v", body)
	}
	if _, ok := body.Components["disabled"]; ok {
		t.Error("nil checker should be skipped")
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pricing.ErrInvalidFMV, http.StatusBadRequest},
		{usecase.ErrNoMarketData, http.StatusNotFound},
		{usecase.ErrIdentifierUnavailable, http.StatusServiceUnavailable},
		{usecase.ErrOptimizerRunning, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := toAppError(tt.err).Status; got != tt.want {
			t.Errorf("toAppError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStreamEmitsStages(t *testing.T) {
	srv := httptest.NewServer(newEcho(t, true, &stubRunner{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/offers/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(map[string]string{"brand": "Sony", "model": "PS5", "category": "Gaming", "condition": "Good"}); err != nil {
		t.Fatal(err)
	}
	var stages []string
	for {
		var u models.StageUpdate
		if err := conn.ReadJSON(&u); err != nil {
			t.Fatalf("read after %v: %v", stages, err)
		}
		stages = append(stages, u.Stage)
		if u.Stage == models.StageDone || u.Stage == models.StageError {
			break
		}
	}
	want := []string{models.StageLooking, models.StageResearching, models.StageDeciding, models.StageDone}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v", stages, want)
	}

	// Invalid requests get an error frame and the socket stays open.
	if err := conn.WriteJSON(map[string]string{}); err != nil {
		t.Fatal(err)
	}
	var u models.StageUpdate
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatal(err)
	}
	if u.Stage != models.StageError {
		t.Errorf("stage = %q, want error", u.Stage)
	}
}
