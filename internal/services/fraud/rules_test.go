package fraud

import (
	"testing"

	"PawnPrice/internal/domain/models"
)

func TestDefaultRulesCompile(t *testing.T) {
	r := DefaultRules()
	if err := r.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got := r.DescriptionMatches("NEVER USED, Still Sealed")
	if len(got) != 2 {
		t.Errorf("DescriptionMatches = %v, want 2 matches", got)
	}
	if got := r.DescriptionMatches(""); got != nil {
		t.Errorf("empty text matched %v", got)
	}
	if got := r.IPMatches("ExpressVPN-node-4"); len(got) != 1 || got[0] != "expressvpn" {
		t.Errorf("IPMatches = %v", got)
	}
}

func TestRulesCompileRejectsBadTables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rules)
	}{
		{"no phrases", func(r *Rules) { r.SuspiciousPhrases = nil }},
		{"bad regex", func(r *Rules) { r.SuspiciousPhrases = []string{"(unclosed"} }},
		{"ratios out of order", func(r *Rules) { r.SuspiciouslyHighRatio = 2 }},
		{"no velocity limits", func(r *Rules) { r.VelocityLimits = nil }},
		{"velocity limits unordered", func(r *Rules) {
			r.VelocityLimits = []VelocityLimit{
				{Offers1h: 3, Offers24h: 10, Score: 40, Severity: models.SeverityMedium},
				{Offers1h: 10, Offers24h: 50, Score: 100, Severity: models.SeverityCritical},
			}
		}},
		{"multiplier below one", func(r *Rules) {
			r.HighRiskCategories = map[string]models.CategoryRisk{"X": {RiskMultiplier: 0.5}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.mutate(r)
			if err := r.Compile(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCategoryMultiplier(t *testing.T) {
	r := DefaultRules()

	risk, elevated := r.CategoryMultiplier(models.CategoryPhonesTablets)
	if !elevated || risk.RiskMultiplier != 1.3 {
		t.Errorf("phones = %+v %v, want 1.3 elevated", risk, elevated)
	}
	risk, elevated = r.CategoryMultiplier(models.CategoryBooksMedia)
	if elevated || risk.RiskMultiplier != 1.0 {
		t.Errorf("books = %+v %v, want 1.0 standard", risk, elevated)
	}
}

func TestPatternsSnapshot(t *testing.T) {
	r := DefaultRules()
	p := r.Patterns()

	if p.VelocityLimits["high"]["offers_1h"] != 5 || p.VelocityLimits["high"]["offers_24h"] != 20 {
		t.Errorf("high velocity limits = %v", p.VelocityLimits["high"])
	}
	if p.PriceThresholds["unusually_low"] != 0.3 {
		t.Errorf("unusually_low = %v", p.PriceThresholds["unusually_low"])
	}

	p.SuspiciousPhrases[0] = "changed"
	if r.SuspiciousPhrases[0] == "changed" {
		t.Error("Patterns leaked the rule slice")
	}
}
