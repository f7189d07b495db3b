package fraud

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"PawnPrice/internal/domain/models"
	"PawnPrice/pkg/logger"
)

// Signal weights. They sum to 1.
var signalWeights = map[string]float64{
	models.SignalPriceAnomaly: 0.35,
	models.SignalVelocity:     0.25,
	models.SignalPatternMatch: 0.20,
	models.SignalUserTrust:    0.20,
}

// signalOrder fixes iteration order for deterministic sums and explanations.
var signalOrder = []string{
	models.SignalPriceAnomaly,
	models.SignalVelocity,
	models.SignalPatternMatch,
	models.SignalUserTrust,
}

var signalNames = map[string]string{
	models.SignalPriceAnomaly: "price anomalies",
	models.SignalVelocity:     "submission velocity",
	models.SignalPatternMatch: "fraud patterns",
	models.SignalUserTrust:    "user trust issues",
}

// Risk level lower bounds, inclusive.
const (
	thresholdMedium   = 50
	thresholdHigh     = 70
	thresholdCritical = 85

	phraseScore = 15
	ipScore     = 30
	maxScore    = 100
)

type Detector struct {
	rules *Rules
	log   *logger.Logger
	now   func() time.Time
}

type Option func(*Detector)

func WithLogger(l *logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDetector compiles rules; nil means DefaultRules.
func NewDetector(rules *Rules, opts ...Option) (*Detector, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	if err := rules.Compile(); err != nil {
		return nil, fmt.Errorf("fraud rules: %w", err)
	}
	d := &Detector{rules: rules, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Detector) Rules() *Rules { return d.rules }

// RiskLevelFor maps a score to its band. Each threshold is the inclusive
// lower bound of its band; anything under medium is low.
func RiskLevelFor(score float64) models.RiskLevel {
	switch {
	case score >= thresholdCritical:
		return models.RiskCritical
	case score >= thresholdHigh:
		return models.RiskHigh
	case score >= thresholdMedium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Analyze scores one offer submission.
func (d *Detector) Analyze(req models.FraudRequest) models.FraudAssessment {
	var flags []models.FraudFlag
	breakdown := make(map[string]float64, len(signalOrder))

	score, flag := d.priceAnomaly(req)
	breakdown[models.SignalPriceAnomaly] = score
	flags = appendFlag(flags, flag)

	score, flag = d.velocity(req)
	breakdown[models.SignalVelocity] = score
	flags = appendFlag(flags, flag)

	score, patternFlags := d.patterns(req)
	breakdown[models.SignalPatternMatch] = score
	flags = append(flags, patternFlags...)

	score, flag = d.userTrust(req)
	breakdown[models.SignalUserTrust] = score
	flags = appendFlag(flags, flag)

	risk := 0.0
	for _, name := range signalOrder {
		risk += breakdown[name] * signalWeights[name]
	}
	risk = math.Min(risk, maxScore)

	if cat, elevated := d.rules.CategoryMultiplier(req.Category); elevated {
		risk = math.Min(risk*cat.RiskMultiplier, maxScore)
		flags = append(flags, models.FraudFlag{
			Type:        models.FlagHighRiskCategory,
			Severity:    models.SeverityMedium,
			ScoreImpact: risk - risk/cat.RiskMultiplier,
			Description: fmt.Sprintf("Category '%s' has elevated fraud risk", req.Category),
			Evidence: map[string]interface{}{
				"reason":          cat.Reason,
				"risk_multiplier": cat.RiskMultiplier,
			},
		})
	}

	level := RiskLevelFor(risk)
	if flags == nil {
		flags = []models.FraudFlag{}
	}

	a := models.FraudAssessment{
		ID:                uuid.NewString(),
		OfferID:           req.OfferID,
		RiskScore:         int(risk),
		RiskLevel:         level,
		Confidence:        confidence(req, breakdown),
		Flags:             flags,
		Breakdown:         breakdown,
		RecommendedAction: RecommendAction(level, flags),
		Explanation:       explain(risk, level, len(flags), breakdown),
		AnalyzedAt:        d.now().UTC(),
	}

	d.log.Info("fraud analysis completed",
		logger.String("offer_id", req.OfferID),
		logger.Int("risk_score", a.RiskScore),
		logger.String("risk_level", string(level)),
		logger.Int("flag_count", len(flags)),
		logger.String("recommended_action", string(a.RecommendedAction)),
	)
	return a
}

func appendFlag(flags []models.FraudFlag, f *models.FraudFlag) []models.FraudFlag {
	if f == nil {
		return flags
	}
	return append(flags, *f)
}

func (d *Detector) priceAnomaly(req models.FraudRequest) (float64, *models.FraudFlag) {
	var (
		score    float64
		ratio    float64
		kind     string
		severity models.Severity
		desc     string
	)

	if req.FMV <= 0 {
		score, kind, severity = 50, "invalid_fmv", models.SeverityMedium
		desc = "Fair market value is missing or invalid"
	} else {
		ratio = req.OfferAmount / req.FMV
		switch {
		case ratio >= d.rules.SignificantlyAboveRatio:
			score, kind, severity = 80, "significantly_above_fmv", models.SeverityHigh
			desc = fmt.Sprintf("Offer is %.1fx FMV ($%.2f vs $%.2f)", ratio, req.OfferAmount, req.FMV)
		case ratio >= d.rules.SuspiciouslyHighRatio:
			score, kind, severity = 50, "suspiciously_high", models.SeverityMedium
			desc = fmt.Sprintf("Offer is %.1fx FMV ($%.2f vs $%.2f)", ratio, req.OfferAmount, req.FMV)
		case ratio <= d.rules.UnusuallyLowRatio:
			score, kind, severity = 60, "unusually_low", models.SeverityMedium
			desc = fmt.Sprintf("Offer is only %.1f%% of FMV ($%.2f vs $%.2f)", ratio*100, req.OfferAmount, req.FMV)
		default:
			return 0, nil
		}
	}

	if !severity.Flagged() {
		return score, nil
	}
	return score, &models.FraudFlag{
		Type:        models.FlagPriceAnomaly,
		Severity:    severity,
		ScoreImpact: score,
		Description: desc,
		Evidence: map[string]interface{}{
			"offer_amount": req.OfferAmount,
			"fmv":          req.FMV,
			"ratio":        ratio,
			"anomaly_type": kind,
		},
	}
}

// projectedValue24h prefers the stored 24h total and otherwise projects
// the current offer across the 24h window.
func projectedValue24h(req models.FraudRequest) float64 {
	if req.TotalValue24h > 0 {
		return req.TotalValue24h
	}
	return req.OfferAmount * float64(req.Offers24h)
}

func (d *Detector) velocity(req models.FraudRequest) (float64, *models.FraudFlag) {
	score := 0.0
	severity := models.SeverityNone
	var reasons []string

	for _, lim := range d.rules.VelocityLimits {
		if req.Offers1h >= lim.Offers1h || req.Offers24h >= lim.Offers24h {
			score = lim.Score
			severity = lim.Severity
			reasons = append(reasons, string(lim.Severity)+"_velocity")
			break
		}
	}

	total := projectedValue24h(req)
	if total > d.rules.HighValue24h {
		score += d.rules.HighValueVelocityAdd
		reasons = append(reasons, "high_value_velocity")
		if severity.Rank() < models.SeverityHigh.Rank() {
			severity = models.SeverityHigh
		}
	}
	score = math.Min(score, maxScore)

	if !severity.Flagged() {
		return score, nil
	}
	return score, &models.FraudFlag{
		Type:        models.FlagVelocityAnomaly,
		Severity:    severity,
		ScoreImpact: score,
		Description: fmt.Sprintf("Unusual submission velocity detected: %d offers in 24h", req.Offers24h),
		Evidence: map[string]interface{}{
			"offers_1h":       req.Offers1h,
			"offers_24h":      req.Offers24h,
			"offers_7d":       req.Offers7d,
			"total_value_24h": total,
			"flags":           reasons,
		},
	}
}

func (d *Detector) patterns(req models.FraudRequest) (float64, []models.FraudFlag) {
	score := 0.0
	var flags []models.FraudFlag

	if matches := d.rules.DescriptionMatches(req.Description); len(matches) > 0 {
		impact := float64(phraseScore * len(matches))
		score += impact

		severity := models.SeverityLow
		switch {
		case len(matches) >= 3:
			severity = models.SeverityHigh
		case len(matches) == 2:
			severity = models.SeverityMedium
		}
		flags = append(flags, models.FraudFlag{
			Type:        models.FlagSuspiciousDescription,
			Severity:    severity,
			ScoreImpact: impact,
			Description: fmt.Sprintf("Description contains %d suspicious phrases", len(matches)),
			Evidence:    map[string]interface{}{"matches": matches, "count": len(matches)},
		})
	}

	if matches := d.rules.IPMatches(req.IPAddress); len(matches) > 0 {
		score += ipScore

		severity := models.SeverityMedium
		if len(matches) >= 2 {
			severity = models.SeverityHigh
		}
		flags = append(flags, models.FraudFlag{
			Type:        models.FlagSuspiciousIP,
			Severity:    severity,
			ScoreImpact: ipScore,
			Description: "IP address shows suspicious patterns (VPN/proxy/datacenter)",
			Evidence:    map[string]interface{}{"patterns": matches},
		})
	}

	return math.Min(score, maxScore), flags
}

var trustFlagText = map[string]string{
	"new_account":            "New account (< 30 days)",
	"new_account_high_value": "New account submitting high-value offer",
	"low_trust_score":        "User has low trust score",
	"medium_trust_score":     "User has medium trust score",
}

func (d *Detector) userTrust(req models.FraudRequest) (float64, *models.FraudFlag) {
	score := 0.0
	var reasons []string

	if req.UserCreatedAt != nil {
		ageDays := int(math.Floor(d.now().Sub(*req.UserCreatedAt).Hours() / 24))
		if ageDays < d.rules.NewAccountDays {
			if req.OfferAmount > d.rules.NewAccountMaxOfferValue {
				score += 50
				reasons = append(reasons, "new_account_high_value")
			} else {
				score += 20
				reasons = append(reasons, "new_account")
			}
		}
	}

	trust := req.TrustScore()
	switch {
	case trust < 30:
		score += 50
		reasons = append(reasons, "low_trust_score")
	case trust < 50:
		score += 25
		reasons = append(reasons, "medium_trust_score")
	}

	severity := models.SeverityNone
	switch {
	case score >= 70:
		severity = models.SeverityHigh
	case score >= 40:
		severity = models.SeverityMedium
	case score >= 20:
		severity = models.SeverityLow
	}
	score = math.Min(score, maxScore)

	if !severity.Flagged() {
		return score, nil
	}

	texts := make([]string, len(reasons))
	for i, r := range reasons {
		texts[i] = trustFlagText[r]
	}
	return score, &models.FraudFlag{
		Type:        models.FlagUserTrust,
		Severity:    severity,
		ScoreImpact: score,
		Description: strings.Join(texts, "; "),
		Evidence: map[string]interface{}{
			"user_trust_score": trust,
			"flags":            reasons,
		},
	}
}

// RecommendAction: critical rejects, high escalates, medium reviews only
// when a high or critical flag is present, low approves.
func RecommendAction(level models.RiskLevel, flags []models.FraudFlag) models.FraudAction {
	switch level {
	case models.RiskCritical:
		return models.FraudReject
	case models.RiskHigh:
		return models.FraudEscalate
	case models.RiskMedium:
		for _, f := range flags {
			if f.Severity.Rank() >= models.SeverityHigh.Rank() {
				return models.FraudReview
			}
		}
		return models.FraudApprove
	default:
		return models.FraudApprove
	}
}

func confidence(req models.FraudRequest, breakdown map[string]float64) float64 {
	c := 0.0
	if req.FMV > 0 {
		c += 0.25
	}
	if req.UserID != "" {
		c += 0.20
	}
	if req.UserCreatedAt != nil {
		c += 0.15
	}
	if req.IPAddress != "" {
		c += 0.10
	}
	if req.Description != "" {
		c += 0.10
	}

	var values []float64
	for _, name := range signalOrder {
		if v := breakdown[name]; v > 0 {
			values = append(values, v)
		}
	}
	if len(values) > 0 {
		mean := 0.0
		for _, v := range values {
			mean += v
		}
		mean /= float64(len(values))
		variance := 0.0
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(values))

		switch {
		case variance < 100:
			c += 0.20
		case variance < 500:
			c += 0.10
		}
	}

	return math.Min(math.Round(c*100)/100, 1.0)
}

func explain(risk float64, level models.RiskLevel, flagCount int, breakdown map[string]float64) string {
	var b strings.Builder
	n := int(risk)
	switch level {
	case models.RiskLow:
		fmt.Fprintf(&b, "Low fraud risk (score: %d). Transaction appears legitimate with no major red flags.", n)
	case models.RiskMedium:
		fmt.Fprintf(&b, "Medium fraud risk (score: %d). Detected %d potential issue(s).", n, flagCount)
	case models.RiskHigh:
		fmt.Fprintf(&b, "High fraud risk (score: %d). Detected %d concerning issue(s).", n, flagCount)
	default:
		fmt.Fprintf(&b, "Critical fraud risk (score: %d). Detected %d serious fraud indicator(s).", n, flagCount)
	}

	ranked := append([]string(nil), signalOrder...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return breakdown[ranked[i]] > breakdown[ranked[j]]
	})

	var top []string
	for _, name := range ranked[:2] {
		if breakdown[name] > 10 {
			top = append(top, signalNames[name])
		}
	}
	if len(top) > 0 {
		fmt.Fprintf(&b, " Primary concerns: %s.", strings.Join(top, ", "))
	}
	return b.String()
}
