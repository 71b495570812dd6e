package reconciler

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"timcast/internal/tim"
	"timcast/pkg/logx"
)

// Config controls the reconciliation schedule.
type Config struct {
	// Spec is the cron expression for the tick; defaults to the top of
	// every minute.
	Spec string
	// Interval is the renewal window granted to open-ended broadcasts on
	// each tick.
	Interval time.Duration
	// TickTimeout bounds a single reconciliation pass.
	TickTimeout time.Duration
}

const (
	defaultSpec        = "0 * * * * *"
	defaultInterval    = time.Minute
	defaultTickTimeout = 45 * time.Second
)

// Orchestrator is the slice of the lifecycle service the reconciler drives.
type Orchestrator interface {
	ListActive(ctx context.Context) ([]*tim.Aggregate, error)
	SendUpdates(ctx context.Context, aggs []*tim.Aggregate) error
}

// Service runs the periodic reconciliation pass.
type Service struct {
	cfg  Config
	orch Orchestrator
	log  logx.Logger
	now  func() time.Time

	c       *cron.Cron
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New builds the reconciler.
func New(cfg Config, orch Orchestrator, log logx.Logger) *Service {
	if cfg.Spec == "" {
		cfg.Spec = defaultSpec
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = defaultTickTimeout
	}
	return &Service{
		cfg:  cfg,
		orch: orch,
		log:  log,
		now:  time.Now,
	}
}

// Start registers the cron entry and begins ticking.
func (s *Service) Start(ctx context.Context) error {
	if s.c != nil {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s.c = cron.New(cron.WithParser(parser))
	if _, err := s.c.AddFunc(s.cfg.Spec, s.tick); err != nil {
		return err
	}
	s.c.Start()
	s.log.Info("service started", logx.String("spec", s.cfg.Spec))
	return nil
}

// Stop halts ticking and waits for an in-flight pass.
func (s *Service) Stop(ctx context.Context) error {
	if s.c == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	stop := s.c.Stop()
	s.c = nil
	select {
	case <-stop.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) tick() {
	// A pass that outlives the interval must not overlap the next one.
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous pass still running, skipping tick")
		return
	}
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in reconciliation pass",
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.TickTimeout)
	defer cancel()

	start := s.now()
	aggs, err := s.orch.ListActive(ctx)
	if err != nil {
		s.log.Error("list active broadcasts", logx.Err(err))
		return
	}

	due := aggs[:0]
	for _, agg := range aggs {
		if Decide(agg, start, s.cfg.Interval) {
			due = append(due, agg)
		}
	}
	if len(due) == 0 {
		return
	}
	if err := s.orch.SendUpdates(ctx, due); err != nil {
		s.log.Error("send reconciliation updates", logx.Err(err))
		return
	}
	s.log.Info("reconciliation pass",
		logx.Int("active", len(aggs)),
		logx.Int("updated", len(due)),
		logx.Duration("took", time.Since(start)))
}
