package fraud

import (
	"fmt"
	"regexp"
	"strings"

	"PawnPrice/internal/domain/models"
)

// VelocityLimit is the submission count at which a velocity band starts.
type VelocityLimit struct {
	Offers1h  int
	Offers24h int
	Score     float64
	Severity  models.Severity
}

// Rules is the fraud pattern rule set. Build it with DefaultRules or load
// your own and call Compile before use.
type Rules struct {
	SuspiciousPhrases  []string
	HighRiskIPPatterns []string
	HighRiskCategories map[string]models.CategoryRisk

	SignificantlyAboveRatio float64
	SuspiciouslyHighRatio   float64
	UnusuallyLowRatio       float64

	// Ordered most to least severe.
	VelocityLimits       []VelocityLimit
	HighValue24h         float64
	HighValueVelocityAdd float64

	NewAccountDays          int
	NewAccountMaxOfferValue float64

	phrases []*regexp.Regexp
	ips     []*regexp.Regexp
}

func DefaultRules() *Rules {
	return &Rules{
		SuspiciousPhrases: []string{
			`brand new in box`,
			`never used`,
			`still sealed`,
			`limited edition`,
			`rare find`,
			`quick sale`,
			`need gone asap`,
			`moving sale`,
			`urgent`,
			`must sell today`,
			`below market`,
			`stolen`,
			`fell off truck`,
		},
		HighRiskIPPatterns: []string{
			`nordvpn`,
			`expressvpn`,
			`tor-exit`,
			`datacenter`,
		},
		HighRiskCategories: map[string]models.CategoryRisk{
			models.CategoryPhonesTablets:       {Reason: "High resale value, commonly stolen", RiskMultiplier: 1.3},
			models.CategoryConsumerElectronics: {Reason: "Frequently targeted for fraud", RiskMultiplier: 1.2},
			models.CategoryCollectibles:        {Reason: "Difficult to verify authenticity", RiskMultiplier: 1.15},
		},
		SignificantlyAboveRatio: 1.5,
		SuspiciouslyHighRatio:   1.3,
		UnusuallyLowRatio:       0.3,
		VelocityLimits: []VelocityLimit{
			{Offers1h: 10, Offers24h: 50, Score: 100, Severity: models.SeverityCritical},
			{Offers1h: 5, Offers24h: 20, Score: 70, Severity: models.SeverityHigh},
			{Offers1h: 3, Offers24h: 10, Score: 40, Severity: models.SeverityMedium},
		},
		HighValue24h:            5000,
		HighValueVelocityAdd:    30,
		NewAccountDays:          30,
		NewAccountMaxOfferValue: 100,
	}
}

// Compile validates the rule set and compiles its patterns.
func (r *Rules) Compile() error {
	if len(r.SuspiciousPhrases) == 0 {
		return fmt.Errorf("suspicious phrases cannot be empty")
	}
	if !(r.UnusuallyLowRatio < r.SuspiciouslyHighRatio && r.SuspiciouslyHighRatio <= r.SignificantlyAboveRatio) {
		return fmt.Errorf("price ratios out of order: low=%v high=%v significant=%v",
			r.UnusuallyLowRatio, r.SuspiciouslyHighRatio, r.SignificantlyAboveRatio)
	}
	if len(r.VelocityLimits) == 0 {
		return fmt.Errorf("velocity limits cannot be empty")
	}
	for i := 1; i < len(r.VelocityLimits); i++ {
		prev, cur := r.VelocityLimits[i-1], r.VelocityLimits[i]
		if cur.Offers1h > prev.Offers1h || cur.Offers24h > prev.Offers24h {
			return fmt.Errorf("velocity limit %d is stricter than the band before it", i)
		}
	}
	for cat, risk := range r.HighRiskCategories {
		if risk.RiskMultiplier < 1 {
			return fmt.Errorf("risk multiplier for %q must be >= 1, got %v", cat, risk.RiskMultiplier)
		}
	}

	phrases, err := compileAll(r.SuspiciousPhrases)
	if err != nil {
		return fmt.Errorf("suspicious phrases: %w", err)
	}
	ips, err := compileAll(r.HighRiskIPPatterns)
	if err != nil {
		return fmt.Errorf("ip patterns: %w", err)
	}
	r.phrases, r.ips = phrases, ips
	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAll(res []*regexp.Regexp, patterns []string, text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var matches []string
	for i, re := range res {
		if re.MatchString(lower) {
			matches = append(matches, patterns[i])
		}
	}
	return matches
}

// DescriptionMatches returns the suspicious phrases found in text.
func (r *Rules) DescriptionMatches(text string) []string {
	return matchAll(r.phrases, r.SuspiciousPhrases, text)
}

// IPMatches returns the high-risk substrings found in an IP or hostname.
func (r *Rules) IPMatches(ip string) []string {
	return matchAll(r.ips, r.HighRiskIPPatterns, ip)
}

// CategoryMultiplier is 1.0 for categories without elevated risk.
func (r *Rules) CategoryMultiplier(category string) (models.CategoryRisk, bool) {
	risk, ok := r.HighRiskCategories[category]
	if !ok || risk.RiskMultiplier <= 1 {
		return models.CategoryRisk{Reason: "Standard risk category", RiskMultiplier: 1.0}, false
	}
	return risk, true
}

// Patterns is the public view served to operators.
func (r *Rules) Patterns() models.FraudPatterns {
	limits := make(map[string]map[string]int, len(r.VelocityLimits))
	for _, l := range r.VelocityLimits {
		limits[string(l.Severity)] = map[string]int{"offers_1h": l.Offers1h, "offers_24h": l.Offers24h}
	}
	cats := make(map[string]models.CategoryRisk, len(r.HighRiskCategories))
	for k, v := range r.HighRiskCategories {
		cats[k] = v
	}
	return models.FraudPatterns{
		VelocityLimits: limits,
		PriceThresholds: map[string]float64{
			"significantly_above_fmv": r.SignificantlyAboveRatio,
			"suspiciously_high":       r.SuspiciouslyHighRatio,
			"unusually_low":           r.UnusuallyLowRatio,
		},
		HighRiskCategories:      cats,
		SuspiciousPhrases:       append([]string(nil), r.SuspiciousPhrases...),
		HighRiskIPPatterns:      append([]string(nil), r.HighRiskIPPatterns...),
		NewAccountDays:          r.NewAccountDays,
		NewAccountMaxOfferValue: r.NewAccountMaxOfferValue,
	}
}
