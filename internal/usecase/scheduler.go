package usecase

import (
	"context"
	"time"

	"goldbot/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionKeeper refreshes the broker session.
type SessionKeeper interface {
	RefreshSession(ctx context.Context) error
}

// Scheduler runs the periodic tasks of a TradingService until its context is cancelled.
type Scheduler struct {
	svc     *TradingService
	session SessionKeeper
	poll    config.PollConfig
	now     func() time.Time
	logger  *zap.Logger
}

func NewScheduler(svc *TradingService, session SessionKeeper, poll config.PollConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		svc:     svc,
		session: session,
		poll:    poll,
		now:     time.Now,
		logger:  logger,
	}
}

// Run starts one task per timeframe plus the tick, status, daily reset and session tasks.
// Task errors are logged and retried on the next interval; Run returns once ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.every(ctx, "tick", s.poll.Tick, s.svc.ManagePositions)
		return nil
	})
	for _, tf := range s.svc.Feed().Timeframes() {
		g.Go(func() error {
			s.every(ctx, tf.String(), s.poll.Timeframes[tf], func(ctx context.Context) error {
				return s.svc.PollTimeframe(ctx, tf)
			})
			return nil
		})
	}
	if s.poll.Status > 0 {
		g.Go(func() error {
			s.every(ctx, "status", s.poll.Status, s.logStatus)
			return nil
		})
	}
	if s.session != nil && s.poll.SessionRefresh > 0 {
		g.Go(func() error {
			// the caller already logged in, so the first refresh waits a full interval
			s.after(ctx, "session", s.poll.SessionRefresh, s.session.RefreshSession)
			return nil
		})
	}
	g.Go(func() error {
		s.dailyReset(ctx)
		return nil
	})

	return g.Wait()
}

// every runs fn now and then on a fixed interval. The next run starts only after the previous
// one returned, so a slow call never overlaps itself.
func (s *Scheduler) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	s.loop(ctx, name, interval, true, fn)
}

// after is every without the immediate first run.
func (s *Scheduler) after(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	s.loop(ctx, name, interval, false, fn)
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, immediate bool, fn func(context.Context) error) {
	if interval <= 0 {
		s.logger.Warn("Task disabled, no interval", zap.String("task", name))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if immediate {
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("Task failed", zap.String("task", name), zap.Error(err))
			}
		}
		immediate = true
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) logStatus(context.Context) error {
	snap := s.svc.Snapshot()
	s.logger.Info("Status",
		zap.Int("tradesToday", snap.TradesToday),
		zap.Int("maxTrades", s.svc.risk.Limits().MaxTradesPerDay),
		zap.Float64("dayPnl", snap.DayPnl),
		zap.Int("positions", snap.OpenPositionCount),
		zap.Int("consecutiveLosses", snap.ConsecutiveLosses),
	)
	return nil
}

func (s *Scheduler) dailyReset(ctx context.Context) {
	for {
		wait := NextUTCMidnight(s.now()).Sub(s.now())
		s.logger.Info("Daily reset scheduled", zap.Duration("in", wait.Round(time.Minute)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.svc.DailyReset(ctx)
	}
}

// NextUTCMidnight returns the first UTC midnight strictly after t.
func NextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}
