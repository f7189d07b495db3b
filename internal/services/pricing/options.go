package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"PawnPrice/pkg/logger"
)

type options struct {
	log *logger.Logger
	now func() time.Time
}

// Option configures any of the pricing engines.
type Option func(*options)

func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// roundTo rounds half away from zero to the given number of decimal places.
func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
