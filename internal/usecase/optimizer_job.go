package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"PawnPrice/internal/domain/models"
	domrepo "PawnPrice/internal/domain/repository"
	"PawnPrice/internal/services/pricing"
	"PawnPrice/pkg/cache"
	"PawnPrice/pkg/logger"
	"PawnPrice/pkg/queue"
)

const (
	OptimizerJobType = "price_optimizer"
	optimizerLockKey = "lock:price_optimizer"
	optimizerLockTTL = 30 * time.Minute
)

var ErrOptimizerRunning = errors.New("optimizer run already in progress")

type OptimizerConfig struct {
	MinDaysActive int
	BatchSize     int
	DryRun        bool
}

// OptimizerJob lowers prices on stale inventory. It runs as a queue job
// and can also be called directly.
type OptimizerJob struct {
	cfg       OptimizerConfig
	optimizer *pricing.PriceOptimizer
	offers    domrepo.OfferStore
	warehouse domrepo.Warehouse
	locker    cache.Service
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

type OptimizerJobDeps struct {
	Config    OptimizerConfig
	Optimizer *pricing.PriceOptimizer
	Offers    domrepo.OfferStore
	Warehouse domrepo.Warehouse
	Locker    cache.Service
	Metrics   domrepo.Metrics
	Log       *logger.Logger
	Now       func() time.Time
}

func NewOptimizerJob(d OptimizerJobDeps) *OptimizerJob {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Config.BatchSize <= 0 {
		d.Config.BatchSize = 500
	}
	return &OptimizerJob{
		cfg:       d.Config,
		optimizer: d.Optimizer,
		offers:    d.Offers,
		warehouse: d.Warehouse,
		locker:    d.Locker,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       d.Now,
	}
}

func (j *OptimizerJob) Type() string { return OptimizerJobType }

func (j *OptimizerJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.Decode[models.OptimizerRunRequest](payload)
	if err != nil {
		return err
	}
	dryRun := j.cfg.DryRun
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}
	_, err = j.Run(ctx, dryRun)
	if errors.Is(err, ErrOptimizerRunning) {
		j.log.Info("optimizer already running, skipping")
		return nil
	}
	return err
}

// Run pages through every active offer past MinDaysActive, BatchSize at a
// time, and applies the recommended prices unless dryRun is set.
func (j *OptimizerJob) Run(ctx context.Context, dryRun bool) (*models.OptimizerSummary, error) {
	if j.locker != nil {
		ok, err := j.locker.TryLock(ctx, optimizerLockKey, optimizerLockTTL)
		if err != nil {
			return nil, fmt.Errorf("optimizer lock: %w", err)
		}
		if !ok {
			return nil, ErrOptimizerRunning
		}
		defer func() {
			if err := j.locker.Unlock(context.Background(), optimizerLockKey); err != nil {
				j.log.Warn("release optimizer lock", logger.Error(err))
			}
		}()
	}

	start := j.now()
	summary := &models.OptimizerSummary{RunID: uuid.NewString(), DryRun: dryRun}
	log := j.log.With(logger.String("run_id", summary.RunID), logger.Bool("dry_run", dryRun))

	cutoff := start.AddDate(0, 0, -j.cfg.MinDaysActive)
	var cursor models.OfferCursor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offers, err := j.offers.ActiveOffers(ctx, cutoff, cursor, j.cfg.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("load active offers: %w", err)
		}
		if len(offers) == 0 {
			break
		}

		changes := j.optimizePage(ctx, log, offers, start, dryRun, summary)
		if !dryRun && len(changes) > 0 && j.warehouse != nil {
			if err := j.warehouse.AppendPriceChanges(ctx, changes); err != nil {
				log.Warn("append price history", logger.Int("changes", len(changes)), logger.Error(err))
			}
		}

		last := offers[len(offers)-1]
		cursor = models.OfferCursor{CreatedAt: last.CreatedAt, OfferID: last.OfferID}
		if len(offers) < j.cfg.BatchSize {
			break
		}
	}

	summary.Duration = j.now().Sub(start)
	log.Info("optimizer run finished",
		logger.Int("analyzed", summary.Analyzed),
		logger.Int("adjusted", summary.Adjusted),
		logger.Int("skipped", summary.Skipped),
		logger.Int("errors", summary.Errors),
		logger.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// optimizePage analyzes one page of offers, updates the summary counters and
// returns the price changes that were applied.
func (j *OptimizerJob) optimizePage(ctx context.Context, log *logger.Logger, offers []models.StoredOffer, start time.Time, dryRun bool, summary *models.OptimizerSummary) []models.PriceChange {
	snapshots := make([]models.OfferSnapshot, 0, len(offers))
	for _, o := range offers {
		snapshots = append(snapshots, models.OfferSnapshot{
			OfferID:       o.OfferID,
			CurrentPrice:  o.CurrentPrice,
			OriginalOffer: o.OriginalOffer,
			CreatedAt:     o.CreatedAt,
			ViewCount:     o.ViewCount,
		})
	}
	results := j.optimizer.BatchAnalyze(snapshots)
	summary.Analyzed += len(results)

	var changes []models.PriceChange
	for _, snap := range snapshots {
		r, ok := results[snap.OfferID]
		if !ok {
			continue
		}
		if !r.ShouldAdjust {
			summary.Skipped++
			j.decision("skipped")
			continue
		}
		change := models.PriceChange{
			OfferID:          snap.OfferID,
			OldPrice:         r.CurrentPrice,
			NewPrice:         r.RecommendedPrice,
			ReductionPercent: r.ReductionPercent,
			Reason:           r.Reason,
			Velocity:         r.Velocity,
			DaysActive:       r.DaysActive,
			ChangedAt:        start,
		}
		if !dryRun {
			if err := j.offers.UpdatePrice(ctx, change); err != nil {
				summary.Errors++
				j.decision("error")
				log.Warn("update price", logger.String("offer_id", snap.OfferID), logger.Error(err))
				continue
			}
		}
		summary.Adjusted++
		j.decision("adjusted")
		changes = append(changes, change)
	}
	return changes
}

func (j *OptimizerJob) decision(outcome string) {
	if j.metrics != nil {
		j.metrics.OptimizerDecision(outcome)
	}
}

// ScheduleOptimizer registers a cron entry that enqueues an optimizer job.
func ScheduleOptimizer(c *cron.Cron, spec string, q queue.Queue, log *logger.Logger) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		id, err := q.Enqueue(ctx, OptimizerJobType, models.OptimizerRunRequest{})
		if err != nil {
			log.Error("enqueue optimizer job", logger.Error(err))
			return
		}
		log.Info("optimizer job enqueued", logger.String("message_id", id))
	})
}

var _ queue.Job = (*OptimizerJob)(nil)
