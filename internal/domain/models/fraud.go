package models

import "time"

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so they can be compared.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Flagged reports whether a signal at this severity should raise a flag.
func (s Severity) Flagged() bool {
	return s.Rank() >= SeverityMedium.Rank()
}

type FraudAction string

const (
	FraudApprove  FraudAction = "approve"
	FraudReview   FraudAction = "review"
	FraudEscalate FraudAction = "escalate"
	FraudReject   FraudAction = "reject"
)

// Signal names used as breakdown keys.
const (
	SignalPriceAnomaly = "price_anomaly"
	SignalVelocity     = "velocity"
	SignalPatternMatch = "pattern_match"
	SignalUserTrust    = "user_trust"
)

// Flag types.
const (
	FlagPriceAnomaly          = "price_anomaly"
	FlagVelocityAnomaly       = "velocity_anomaly"
	FlagSuspiciousDescription = "suspicious_description"
	FlagSuspiciousIP          = "suspicious_ip"
	FlagUserTrust             = "user_trust"
	FlagHighRiskCategory      = "high_risk_category"
)

// FraudRequest is everything the detector looks at for one offer submission.
// Window counts are precomputed by the caller (or the offer store).
type FraudRequest struct {
	OfferID        string     `json:"offer_id" validate:"required"`
	UserID         string     `json:"user_id,omitempty"`
	OfferAmount    float64    `json:"offer_amount" validate:"gte=0"`
	FMV            float64    `json:"fmv"`
	Category       string     `json:"category" validate:"required"`
	Condition      string     `json:"condition" validate:"required"`
	UserCreatedAt  *time.Time `json:"user_created_at,omitempty"`
	UserOfferCount int        `json:"user_offer_count" validate:"gte=0"`
	UserTrustScore *float64   `json:"user_trust_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	Offers1h       int        `json:"offers_1h" validate:"gte=0"`
	Offers24h      int        `json:"offers_24h" validate:"gte=0"`
	Offers7d       int        `json:"offers_7d" validate:"gte=0"`
	TotalValue24h  float64    `json:"total_value_24h" validate:"gte=0"`
	IPAddress      string     `json:"ip_address,omitempty"`
	UserAgent      string     `json:"user_agent,omitempty"`
	PhotoURLs      []string   `json:"photo_urls,omitempty"`
	Description    string     `json:"description,omitempty"`
}

// DefaultTrustScore applies to sellers with no known trust score.
const DefaultTrustScore = 50.0

// TrustScore returns the seller's trust score, or DefaultTrustScore when
// none was given. Zero is a real score.
func (r FraudRequest) TrustScore() float64 {
	if r.UserTrustScore == nil {
		return DefaultTrustScore
	}
	return *r.UserTrustScore
}

type FraudFlag struct {
	Type        string                 `json:"type"`
	Severity    Severity               `json:"severity"`
	ScoreImpact float64                `json:"score_impact"`
	Description string                 `json:"description"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
}

type FraudAssessment struct {
	ID                string             `json:"id"`
	OfferID           string             `json:"offer_id"`
	RiskScore         int                `json:"risk_score"`
	RiskLevel         RiskLevel          `json:"risk_level"`
	Confidence        float64            `json:"confidence"`
	Flags             []FraudFlag        `json:"flags"`
	Breakdown         map[string]float64 `json:"breakdown"`
	RecommendedAction FraudAction        `json:"recommended_action"`
	Explanation       string             `json:"explanation"`
	AnalyzedAt        time.Time          `json:"analyzed_at"`
}

// UserSignals is what the offer store knows about a seller.
type UserSignals struct {
	UserID        string
	CreatedAt     *time.Time
	TrustScore    float64
	OfferCount    int
	Offers1h      int
	Offers24h     int
	Offers7d      int
	TotalValue24h float64
}

// FraudPatterns is the public view of the rule set.
type FraudPatterns struct {
	VelocityLimits          map[string]map[string]int `json:"velocity_limits"`
	PriceThresholds         map[string]float64        `json:"price_thresholds"`
	HighRiskCategories      map[string]CategoryRisk   `json:"high_risk_categories"`
	SuspiciousPhrases       []string                  `json:"suspicious_phrases"`
	HighRiskIPPatterns      []string                  `json:"high_risk_ip_patterns"`
	NewAccountDays          int                       `json:"new_account_days"`
	NewAccountMaxOfferValue float64                   `json:"new_account_max_offer_value"`
}

type CategoryRisk struct {
	Reason         string  `json:"reason"`
	RiskMultiplier float64 `json:"risk_multiplier"`
}
