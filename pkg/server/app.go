package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"PawnPrice/internal/usecase"
	"PawnPrice/pkg/config"
	xhttp "PawnPrice/pkg/http"
	pkgkafka "PawnPrice/pkg/kafka"
	applogger "PawnPrice/pkg/logger"
	"PawnPrice/pkg/queue"
)

type namedCloser struct {
	name string
	c    io.Closer
}

type Option func(*App)

// WithQueue runs q for the app's lifetime and lets the optimizer schedule
// enqueue onto it.
func WithQueue(q queue.Queue) Option {
	return func(a *App) { a.queue = q }
}

func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.kafkaHandlers = append(a.kafkaHandlers, handlers...)
	}
}

// WithProducer ships error-level logs to the error topic and closes the
// producer last.
func WithProducer(p *pkgkafka.Producer) Option {
	return func(a *App) { a.producer = p }
}

// WithCloser registers a resource closed on shutdown, in reverse order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, namedCloser{name: name, c: c}) }
}

// App owns the process lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server

	queue         queue.Queue
	consumer      *pkgkafka.Consumer
	kafkaHandlers []pkgkafka.MessageHandler
	producer      *pkgkafka.Producer
	cron          *cron.Cron
	closers       []namedCloser
}

func New(cfg *config.Config, log *applogger.Logger, handler xhttp.Handler, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{cfg: cfg, log: log, httpHandler: handler}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	<-ctx.Done()

	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches the components without blocking.
func (a *App) Start() error {
	l := a.log

	if a.producer != nil && a.cfg.Kafka.Topics.ErrorLogs != "" {
		l.AttachCollector(&applogger.CollectorConfig{
			FlushInterval: 30 * time.Second,
			Topic:         a.cfg.Kafka.Topics.ErrorLogs,
			Publisher:     a.producer,
		})
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
		l.Info("job queue started")

		if spec := a.cfg.Optimizer.Schedule; spec != "" {
			a.cron = cron.New()
			if _, err := usecase.ScheduleOptimizer(a.cron, spec, a.queue, l); err != nil {
				return err
			}
			a.cron.Start()
			l.Info("optimizer scheduled", applogger.String("schedule", spec))
		}
	}

	if a.consumer != nil && len(a.kafkaHandlers) > 0 {
		topics := make([]string, 0, len(a.kafkaHandlers))
		for _, h := range a.kafkaHandlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			l.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		l.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRateLimit(a.cfg.Server.RateLimit.RequestsPerSecond, a.cfg.Server.RateLimit.Burst),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, l, opts...)
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Shutdown stops intake first, then workers, then the stores they write to.
func (a *App) Shutdown(ctx context.Context) error {
	l := a.log
	l.Info("shutting down...")

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Stop(stopCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(stopCtx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	l.DetachCollector()
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			l.Warn("close error", applogger.String("component", nc.name), applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
