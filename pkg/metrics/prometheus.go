package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes pricing-domain metrics to the default Prometheus
// registry.
type Recorder struct {
	offersPriced   *prometheus.CounterVec
	offerAmount    *prometheus.HistogramVec
	fraudTotal     *prometheus.CounterVec
	fraudScore     prometheus.Histogram
	fetchLatency   *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	optimizerMoves *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
}

func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg. Tests pass a fresh registry so
// repeated construction does not panic.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		offersPriced: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawnprice_offers_priced_total",
				Help: "Offers priced by category and confidence action",
			},
			[]string{"category", "action"},
		),
		offerAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pawnprice_offer_amount_dollars",
				Help:    "Offer amounts produced by the offer engine",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000},
			},
			[]string{"category"},
		),
		fraudTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawnprice_fraud_assessments_total",
				Help: "Fraud assessments by risk level and recommended action",
			},
			[]string{"risk_level", "action"},
		),
		fraudScore: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pawnprice_fraud_risk_score",
				Help:    "Distribution of fraud risk scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pawnprice_marketplace_fetch_seconds",
				Help:    "Marketplace fetch latency by source",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawnprice_marketplace_fetch_errors_total",
				Help: "Marketplace fetch failures by source",
			},
			[]string{"source"},
		),
		optimizerMoves: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawnprice_optimizer_decisions_total",
				Help: "Optimizer decisions by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawnprice_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Recorder) OfferPriced(category, action string, amount float64) {
	r.offersPriced.WithLabelValues(category, action).Inc()
	r.offerAmount.WithLabelValues(category).Observe(amount)
}

func (r *Recorder) FraudAssessed(level, action string, score int) {
	r.fraudTotal.WithLabelValues(level, action).Inc()
	r.fraudScore.Observe(float64(score))
}

func (r *Recorder) MarketplaceFetch(source string, seconds float64, err error) {
	r.fetchLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		r.fetchErrors.WithLabelValues(source).Inc()
	}
}

// OptimizerDecision counts "adjusted", "skipped" or "error".
func (r *Recorder) OptimizerDecision(outcome string) {
	r.optimizerMoves.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
