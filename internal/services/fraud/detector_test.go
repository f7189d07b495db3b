package fraud

import (
	"strings"
	"testing"
	"time"

	"PawnPrice/internal/domain/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(nil, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func daysAgo(n int) *time.Time {
	ts := testNow.AddDate(0, 0, -n)
	return &ts
}

func trustScore(v float64) *float64 { return &v }

func flagTypes(flags []models.FraudFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.Type
	}
	return out
}

func TestAnalyzeCleanOffer(t *testing.T) {
	d := newDetector(t)

	a := d.Analyze(models.FraudRequest{
		OfferID:        "offer-1",
		OfferAmount:    50,
		FMV:            100,
		Category:       models.CategoryGaming,
		Condition:      models.ConditionGood,
		UserTrustScore: trustScore(80),
	})

	if a.RiskScore != 0 || a.RiskLevel != models.RiskLow {
		t.Errorf("got score=%d level=%s, want 0 low", a.RiskScore, a.RiskLevel)
	}
	if a.RecommendedAction != models.FraudApprove {
		t.Errorf("action = %s, want approve", a.RecommendedAction)
	}
	if len(a.Flags) != 0 {
		t.Errorf("flags = %v, want none", flagTypes(a.Flags))
	}
	if a.Flags == nil {
		t.Error("flags should be an empty slice, not nil")
	}
	want := "Low fraud risk (score: 0). Transaction appears legitimate with no major red flags."
	if a.Explanation != want {
		t.Errorf("explanation = %q, want %q", a.Explanation, want)
	}
	if a.ID == "" {
		t.Error("assessment id is empty")
	}
	if !a.AnalyzedAt.Equal(testNow) {
		t.Errorf("AnalyzedAt = %v, want %v", a.AnalyzedAt, testNow)
	}
}

func TestAnalyzeHighRatio(t *testing.T) {
	d := newDetector(t)

	a := d.Analyze(models.FraudRequest{
		OfferID:        "offer-2",
		OfferAmount:    250,
		FMV:            100,
		Category:       models.CategoryGaming,
		Condition:      models.ConditionGood,
		UserTrustScore: trustScore(50),
	})

	if a.Breakdown[models.SignalPriceAnomaly] != 80 {
		t.Errorf("price anomaly = %v, want 80", a.Breakdown[models.SignalPriceAnomaly])
	}
	if a.RiskScore != 28 {
		t.Errorf("RiskScore = %d, want 28", a.RiskScore)
	}
	if a.RiskLevel != models.RiskLow {
		t.Errorf("RiskLevel = %s, want low", a.RiskLevel)
	}
	if len(a.Flags) != 1 || a.Flags[0].Type != models.FlagPriceAnomaly || a.Flags[0].Severity != models.SeverityHigh {
		t.Fatalf("flags = %+v, want one high price_anomaly", a.Flags)
	}
	if a.Flags[0].Evidence["anomaly_type"] != "significantly_above_fmv" {
		t.Errorf("anomaly_type = %v", a.Flags[0].Evidence["anomaly_type"])
	}
	if !strings.HasSuffix(a.Explanation, "Primary concerns: price anomalies.") {
		t.Errorf("explanation = %q", a.Explanation)
	}
}

func TestAnalyzeCombinedScenario(t *testing.T) {
	d := newDetector(t)

	a := d.Analyze(models.FraudRequest{
		OfferID:        "offer-3",
		UserID:         "user-1",
		OfferAmount:    600,
		FMV:            400,
		Category:       models.CategoryPhonesTablets,
		Condition:      models.ConditionLikeNew,
		UserCreatedAt:  daysAgo(5),
		UserTrustScore: trustScore(50),
		IPAddress:      "nordvpn-datacenter",
		Description:    "Brand new in box, never used, still sealed. Quick sale!",
	})

	wantBreakdown := map[string]float64{
		models.SignalPriceAnomaly: 80,
		models.SignalVelocity:     0,
		models.SignalPatternMatch: 90,
		models.SignalUserTrust:    50,
	}
	for k, want := range wantBreakdown {
		if got := a.Breakdown[k]; got != want {
			t.Errorf("breakdown[%s] = %v, want %v", k, got, want)
		}
	}

	if a.RiskScore != 72 {
		t.Errorf("RiskScore = %d, want 72", a.RiskScore)
	}
	if a.RiskLevel != models.RiskHigh {
		t.Errorf("RiskLevel = %s, want high", a.RiskLevel)
	}
	if a.RecommendedAction != models.FraudEscalate {
		t.Errorf("action = %s, want escalate", a.RecommendedAction)
	}

	wantFlags := []string{
		models.FlagPriceAnomaly,
		models.FlagSuspiciousDescription,
		models.FlagSuspiciousIP,
		models.FlagUserTrust,
		models.FlagHighRiskCategory,
	}
	got := flagTypes(a.Flags)
	if strings.Join(got, ",") != strings.Join(wantFlags, ",") {
		t.Errorf("flags = %v, want %v", got, wantFlags)
	}
	if a.Flags[1].Severity != models.SeverityHigh {
		t.Errorf("description severity = %s, want high", a.Flags[1].Severity)
	}
	if a.Flags[2].Severity != models.SeverityHigh {
		t.Errorf("ip severity = %s, want high", a.Flags[2].Severity)
	}
	if a.Flags[3].Description != "New account submitting high-value offer" {
		t.Errorf("trust description = %q", a.Flags[3].Description)
	}

	if a.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", a.Confidence)
	}
	want := "High fraud risk (score: 72). Detected 5 concerning issue(s). Primary concerns: fraud patterns, price anomalies."
	if a.Explanation != want {
		t.Errorf("explanation = %q, want %q", a.Explanation, want)
	}
}

func TestPriceAnomalyBands(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name      string
		offer     float64
		fmv       float64
		wantScore float64
		wantKind  string
	}{
		{"invalid fmv", 100, 0, 50, "invalid_fmv"},
		{"exactly 1.5x", 150, 100, 80, "significantly_above_fmv"},
		{"1.3x", 130, 100, 50, "suspiciously_high"},
		{"exactly 0.3x", 30, 100, 60, "unusually_low"},
		{"normal", 60, 100, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, flag := d.priceAnomaly(models.FraudRequest{OfferAmount: tt.offer, FMV: tt.fmv})
			if score != tt.wantScore {
				t.Errorf("score = %v, want %v", score, tt.wantScore)
			}
			if tt.wantKind == "" {
				if flag != nil {
					t.Errorf("unexpected flag %+v", flag)
				}
				return
			}
			if flag == nil {
				t.Fatal("expected flag")
			}
			if flag.Evidence["anomaly_type"] != tt.wantKind {
				t.Errorf("anomaly_type = %v, want %s", flag.Evidence["anomaly_type"], tt.wantKind)
			}
		})
	}
}

func TestVelocityBands(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name         string
		req          models.FraudRequest
		wantScore    float64
		wantSeverity models.Severity
	}{
		{"quiet", models.FraudRequest{OfferAmount: 10, Offers1h: 1, Offers24h: 2}, 0, models.SeverityNone},
		{"medium by 24h", models.FraudRequest{OfferAmount: 10, Offers24h: 10}, 40, models.SeverityMedium},
		{"high by 1h", models.FraudRequest{OfferAmount: 10, Offers1h: 5, Offers24h: 5}, 70, models.SeverityHigh},
		{"high by 24h", models.FraudRequest{OfferAmount: 10, Offers24h: 20}, 70, models.SeverityHigh},
		{"critical by 1h", models.FraudRequest{OfferAmount: 10, Offers1h: 10, Offers24h: 10}, 100, models.SeverityCritical},
		{"projected value escalates", models.FraudRequest{OfferAmount: 500, Offers24h: 12}, 70, models.SeverityHigh},
		{"stored total overrides projection", models.FraudRequest{OfferAmount: 500, Offers24h: 12, TotalValue24h: 100}, 40, models.SeverityMedium},
		{"value alone", models.FraudRequest{OfferAmount: 10, Offers24h: 1, TotalValue24h: 6000}, 30, models.SeverityHigh},
		{"capped", models.FraudRequest{OfferAmount: 1000, Offers24h: 60}, 100, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, flag := d.velocity(tt.req)
			if score != tt.wantScore {
				t.Errorf("score = %v, want %v", score, tt.wantScore)
			}
			if !tt.wantSeverity.Flagged() {
				if flag != nil {
					t.Errorf("unexpected flag %+v", flag)
				}
				return
			}
			if flag == nil || flag.Severity != tt.wantSeverity {
				t.Errorf("flag = %+v, want severity %s", flag, tt.wantSeverity)
			}
		})
	}
}

func TestPatternSignal(t *testing.T) {
	d := newDetector(t)

	score, flags := d.patterns(models.FraudRequest{Description: "urgent, moving sale"})
	if score != 30 {
		t.Errorf("score = %v, want 30", score)
	}
	if len(flags) != 1 || flags[0].Severity != models.SeverityMedium {
		t.Errorf("flags = %+v, want one medium", flags)
	}

	score, flags = d.patterns(models.FraudRequest{Description: "rare find"})
	if score != 15 || len(flags) != 1 || flags[0].Severity != models.SeverityLow {
		t.Errorf("single phrase: score=%v flags=%+v", score, flags)
	}

	score, flags = d.patterns(models.FraudRequest{IPAddress: "10.0.0.1.tor-exit.example"})
	if score != 30 || len(flags) != 1 || flags[0].Severity != models.SeverityMedium {
		t.Errorf("ip: score=%v flags=%+v", score, flags)
	}

	long := "brand new in box never used still sealed limited edition rare find quick sale need gone asap urgent"
	score, _ = d.patterns(models.FraudRequest{Description: long, IPAddress: "nordvpn"})
	if score != 100 {
		t.Errorf("score = %v, want capped 100", score)
	}
}

func TestUserTrustSignal(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name     string
		req      models.FraudRequest
		want     float64
		wantDesc string
	}{
		{"established good user", models.FraudRequest{UserCreatedAt: daysAgo(40), UserTrustScore: trustScore(60), OfferAmount: 500}, 0, ""},
		{"new account low value", models.FraudRequest{UserCreatedAt: daysAgo(10), UserTrustScore: trustScore(60), OfferAmount: 50}, 20, ""},
		{"new account plus medium trust", models.FraudRequest{UserCreatedAt: daysAgo(10), UserTrustScore: trustScore(40), OfferAmount: 50}, 45, "New account (< 30 days); User has medium trust score"},
		{"low trust only", models.FraudRequest{UserTrustScore: trustScore(20)}, 50, "User has low trust score"},
		{"zero trust is the lowest", models.FraudRequest{UserTrustScore: trustScore(0)}, 50, "User has low trust score"},
		{"missing trust uses default", models.FraudRequest{}, 0, ""},
		{"everything", models.FraudRequest{UserCreatedAt: daysAgo(1), UserTrustScore: trustScore(10), OfferAmount: 500}, 100, "New account submitting high-value offer; User has low trust score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, flag := d.userTrust(tt.req)
			if score != tt.want {
				t.Errorf("score = %v, want %v", score, tt.want)
			}
			if tt.wantDesc == "" {
				if flag != nil {
					t.Errorf("unexpected flag %+v", flag)
				}
				return
			}
			if flag == nil || flag.Description != tt.wantDesc {
				t.Errorf("flag = %+v, want description %q", flag, tt.wantDesc)
			}
		})
	}
}

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{30, models.RiskLow},
		{49.99, models.RiskLow},
		{50, models.RiskMedium},
		{69.99, models.RiskMedium},
		{70, models.RiskHigh},
		{84.99, models.RiskHigh},
		{85, models.RiskCritical},
		{100, models.RiskCritical},
	}
	for _, tt := range tests {
		if got := RiskLevelFor(tt.score); got != tt.want {
			t.Errorf("RiskLevelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRecommendAction(t *testing.T) {
	high := []models.FraudFlag{{Type: models.FlagPriceAnomaly, Severity: models.SeverityHigh}}
	medium := []models.FraudFlag{{Type: models.FlagHighRiskCategory, Severity: models.SeverityMedium}}

	tests := []struct {
		name  string
		level models.RiskLevel
		flags []models.FraudFlag
		want  models.FraudAction
	}{
		{"critical", models.RiskCritical, nil, models.FraudReject},
		{"high", models.RiskHigh, nil, models.FraudEscalate},
		{"medium with high flag", models.RiskMedium, high, models.FraudReview},
		{"medium with medium flags", models.RiskMedium, medium, models.FraudApprove},
		{"low with high flag", models.RiskLow, high, models.FraudApprove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecommendAction(tt.level, tt.flags); got != tt.want {
				t.Errorf("RecommendAction = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	// No data and no signals.
	if got := confidence(models.FraudRequest{}, map[string]float64{}); got != 0 {
		t.Errorf("empty confidence = %v, want 0", got)
	}

	full := models.FraudRequest{FMV: 100, UserID: "u", UserCreatedAt: daysAgo(1), IPAddress: "1.2.3.4", Description: "x"}
	consistent := map[string]float64{models.SignalPriceAnomaly: 50, models.SignalUserTrust: 45}
	if got := confidence(full, consistent); got != 1.0 {
		t.Errorf("consistent confidence = %v, want 1.0", got)
	}

	spread := map[string]float64{models.SignalPriceAnomaly: 100, models.SignalUserTrust: 20}
	if got := confidence(full, spread); got != 0.8 {
		t.Errorf("spread confidence = %v, want 0.8", got)
	}
}

func TestCategoryFlagImpact(t *testing.T) {
	d := newDetector(t)

	a := d.Analyze(models.FraudRequest{
		OfferID:        "offer-4",
		OfferAmount:    150,
		FMV:            100,
		Category:       models.CategoryConsumerElectronics,
		Condition:      models.ConditionGood,
		UserTrustScore: trustScore(50),
	})

	// 80*0.35 = 28, *1.2 = 33.6
	if a.RiskScore != 33 {
		t.Errorf("RiskScore = %d, want 33", a.RiskScore)
	}
	last := a.Flags[len(a.Flags)-1]
	if last.Type != models.FlagHighRiskCategory {
		t.Fatalf("last flag = %s, want high_risk_category", last.Type)
	}
	if diff := last.ScoreImpact - 5.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ScoreImpact = %v, want 5.6", last.ScoreImpact)
	}
}
