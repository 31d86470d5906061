package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"goldbot/internal/config"
	"goldbot/internal/domain"
	"goldbot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TradingService owns the candle stores, the per-mode setups, the open positions and the
// daily risk state of one instrument.
//
// exec serializes "evaluate, place order, add position" against position management so
// that a position is only visible to the tick path once the broker confirmed it.
type TradingService struct {
	broker     domain.Broker
	journal    domain.Journal
	notifier   domain.Notifier
	instrument string
	strategy   *Strategy
	params     config.StrategyConfig
	modes      []config.ModeConfig
	feed       *CandleFeed
	book       *repository.PositionBook
	risk       *RiskGate
	positions  *PositionManager

	exec sync.Mutex

	setupMu sync.RWMutex
	setups  map[domain.Mode]domain.Setup

	now    func() time.Time
	logger *zap.Logger
}

// Options carries the collaborators and settings of a TradingService.
type Options struct {
	Broker   domain.Broker
	Journal  domain.Journal
	Notifier domain.Notifier
	Config   config.Config
	Logger   *zap.Logger
}

func NewTradingService(opts Options) *TradingService {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	journal := opts.Journal
	if journal == nil {
		journal = repository.NopJournal{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = Notifiers{}
	}

	book := repository.NewPositionBook()
	risk := NewRiskGate(cfg.Risk)
	instrument := cfg.Broker.Instrument

	s := &TradingService{
		broker:     opts.Broker,
		journal:    journal,
		notifier:   notifier,
		instrument: instrument,
		strategy:   NewStrategy(cfg.Strategy),
		params:     cfg.Strategy,
		modes:      cfg.Strategy.Modes(),
		feed: NewCandleFeed(opts.Broker, journal, instrument, cfg.Timeframes(),
			cfg.Candles.HistoryBars, cfg.Candles.IncrementalBars, logger),
		book: book,
		risk: risk,
		positions: NewPositionManager(opts.Broker, book, risk, journal, notifier, instrument, ExitPolicy{
			PartialCloseTP1:   cfg.Strategy.PartialCloseTP1,
			MoveSLToBreakeven: cfg.Strategy.MoveSLToBreakeven,
		}, logger),
		setups: make(map[domain.Mode]domain.Setup),
		now:    time.Now,
		logger: logger,
	}
	return s
}

// SetClock replaces the wall clock. Tests use it to pin opening and closing times.
func (s *TradingService) SetClock(now func() time.Time) {
	s.now = now
	s.positions.now = now
}

// Feed exposes the candle stores.
func (s *TradingService) Feed() *CandleFeed { return s.feed }

// Modes returns the enabled modes.
func (s *TradingService) Modes() []config.ModeConfig { return s.modes }

// LoadHistory fills every tracked timeframe from the broker.
func (s *TradingService) LoadHistory(ctx context.Context) error {
	for _, tf := range s.feed.Timeframes() {
		if err := s.feed.LoadHistory(ctx, tf); err != nil {
			return err
		}
	}
	return nil
}

// PollTimeframe merges the latest bars of tf and runs every mode whose entry timeframe just closed a bar.
func (s *TradingService) PollTimeframe(ctx context.Context, tf domain.Timeframe) error {
	closed, err := s.feed.Update(ctx, tf)
	if err != nil || !closed {
		return err
	}
	var errs []error
	for _, m := range s.modes {
		if m.EntryTF != tf {
			continue
		}
		s.logger.Info("Candle closed, evaluating", zap.String("timeframe", tf.String()), zap.String("mode", string(m.Mode)))
		if err := s.OnClose(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnClose runs the setup state machine for mode m on its latest closed entry bar and
// places an order when the break of structure fires.
func (s *TradingService) OnClose(ctx context.Context, m config.ModeConfig) error {
	s.exec.Lock()
	defer s.exec.Unlock()

	log := s.logger.With(zap.String("mode", string(m.Mode)))

	if err := s.risk.Check(); err != nil {
		log.Debug("New entries blocked", zap.Error(err))
		if s.risk.Lockout() {
			log.Warn("Risk gate closed for the day", zap.Error(err))
			s.notify(ctx, lockoutNotification(s.instrument, err))
		}
		return nil
	}

	q, err := s.broker.FetchQuote(ctx, s.instrument)
	if err != nil {
		return fmt.Errorf("fetch quote: %w", err)
	}
	if spread := q.Spread(); spread > s.params.SpreadMax {
		log.Warn("Spread too wide", zap.Float64("spread", spread), zap.Float64("max", s.params.SpreadMax))
		return nil
	}

	entry := s.feed.Candles(m.EntryTF)
	trend := s.feed.Candles(m.TrendTF)
	cur := s.Setup(m.Mode)

	d := s.strategy.Evaluate(cur, entry, trend, m)
	// The setup is stored before any order attempt so a failed order cannot retrigger it.
	s.setSetup(m.Mode, d.Setup)

	switch d.Event {
	case EventCreated:
		log.Info("Setup created",
			zap.Stringer("direction", d.Setup.Direction),
			zap.Float64("extreme", d.Setup.PullbackExtreme),
		)
		s.recordSignal(ctx, m, domain.ActionSetup, d.Setup.Direction, entry, trend, q, true)
	case EventExpired, EventInvalidated:
		log.Info("Setup reset", zap.Stringer("reason", d.Event))
	case EventTriggered:
		log.Info("Break of structure",
			zap.Stringer("direction", d.Triggered.Direction),
			zap.Float64("close", entry[len(entry)-1].Close),
		)
		s.recordSignal(ctx, m, domain.ActionTrigger, d.Triggered.Direction, entry, trend, q, true)
		return s.placeOrder(ctx, m, d, entry, trend, q)
	}
	return nil
}

func (s *TradingService) placeOrder(ctx context.Context, m config.ModeConfig, d Decision, entry, trend []domain.Candle, q domain.Quote) error {
	setup := d.Triggered
	levels, err := s.strategy.Levels(setup, q.EntryPrice(setup.Direction), d.ATR, m.TP2R)
	if err != nil {
		s.recordSignal(ctx, m, domain.ActionOrderFailed, setup.Direction, entry, trend, q, false)
		return fmt.Errorf("size %s order: %w", m.Mode, err)
	}

	log := s.logger.With(zap.String("event", "trade"), zap.String("mode", string(m.Mode)), zap.Stringer("direction", setup.Direction))
	log.Info("Placing order",
		zap.Float64("size", m.SizeUnits),
		zap.Float64("entry", levels.Entry),
		zap.Float64("sl", levels.StopLoss),
		zap.Float64("tp1", levels.TP1),
		zap.Float64("tp2", levels.TP2),
	)

	deal, err := s.broker.PlaceMarketOrder(ctx, domain.OrderRequest{
		Instrument:  s.instrument,
		Direction:   setup.Direction,
		Size:        m.SizeUnits,
		StopLevel:   levels.StopLoss,
		ProfitLevel: levels.TP2,
	})
	if err != nil {
		s.recordSignal(ctx, m, domain.ActionOrderFailed, setup.Direction, entry, trend, q, false)
		if domain.IsBrokerRejection(err) {
			log.Warn("Order not accepted", zap.Error(err))
		}
		return fmt.Errorf("place %s order: %w", m.Mode, err)
	}

	p := domain.Position{
		Mode:          m.Mode,
		Direction:     setup.Direction,
		Size:          m.SizeUnits,
		Entry:         levels.Entry,
		StopLevel:     levels.StopLoss,
		TP1:           levels.TP1,
		TP2:           levels.TP2,
		DealID:        deal.DealID,
		DealReference: deal.DealReference,
		OpenedAt:      s.now(),
	}
	if err := s.book.Add(p); err != nil {
		return fmt.Errorf("track %s position: %w", m.Mode, err)
	}
	s.risk.Opened()

	log.Info("Order placed", zap.String("dealId", deal.DealID), zap.String("dealReference", deal.DealReference))
	s.recordSignal(ctx, m, domain.ActionPlaced, setup.Direction, entry, trend, q, false)
	s.notify(ctx, openedNotification(s.instrument, p))
	return nil
}

// ManagePositions fetches a quote and runs position management against it.
func (s *TradingService) ManagePositions(ctx context.Context) error {
	if s.book.Count() == 0 {
		return nil
	}
	q, err := s.broker.FetchQuote(ctx, s.instrument)
	if err != nil {
		return fmt.Errorf("fetch quote: %w", err)
	}
	s.ManageQuote(ctx, q)
	return nil
}

// ManageQuote runs position management against q. It is never gated by the risk limits.
func (s *TradingService) ManageQuote(ctx context.Context, q domain.Quote) {
	s.exec.Lock()
	defer s.exec.Unlock()
	s.positions.Manage(ctx, q)
}

// DailyReset zeroes the risk counters, clears every setup and records the day's starting equity.
func (s *TradingService) DailyReset(ctx context.Context) {
	equity, err := s.broker.AccountBalance(ctx)
	if err != nil {
		s.logger.Warn("Could not fetch account balance", zap.Error(err))
		equity = 0
	}

	s.exec.Lock()
	defer s.exec.Unlock()
	s.risk.Reset(equity)
	s.setupMu.Lock()
	clear(s.setups)
	s.setupMu.Unlock()

	s.logger.Info("Daily reset", zap.Float64("equity", equity))
}

// WarnUntracked logs broker positions this process does not manage.
func (s *TradingService) WarnUntracked(ctx context.Context) error {
	open, err := s.broker.FetchOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch open positions: %w", err)
	}
	tracked := make(map[string]bool)
	for _, p := range s.book.All() {
		tracked[p.DealID] = true
	}
	n := 0
	for _, p := range open {
		if !tracked[p.DealID] {
			n++
		}
	}
	if n > 0 {
		s.logger.Warn("Positions already open on the platform are not tracked (managed by their own SL/TP)",
			zap.Int("count", n))
	}
	return nil
}

// Setup returns the current setup of mode.
func (s *TradingService) Setup(mode domain.Mode) domain.Setup {
	s.setupMu.RLock()
	defer s.setupMu.RUnlock()
	return s.setups[mode]
}

func (s *TradingService) setSetup(mode domain.Mode, setup domain.Setup) {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()
	s.setups[mode] = setup
}

// Setups returns the setup of every enabled mode.
func (s *TradingService) Setups() map[domain.Mode]domain.Setup {
	s.setupMu.RLock()
	defer s.setupMu.RUnlock()
	out := make(map[domain.Mode]domain.Setup, len(s.modes))
	for _, m := range s.modes {
		out[m.Mode] = s.setups[m.Mode]
	}
	return out
}

// Positions returns a copy of the open positions.
func (s *TradingService) Positions() []domain.Position {
	return s.book.All()
}

// RiskState returns the daily risk counters.
func (s *TradingService) RiskState() domain.DailyRiskState {
	return s.risk.State()
}

// Snapshot returns the read-only status.
func (s *TradingService) Snapshot() domain.Snapshot {
	st := s.risk.State()
	return domain.Snapshot{
		TradesToday:       st.TradesToday,
		DayPnl:            st.RealizedPnlUSD,
		OpenPositionCount: s.book.Count(),
		ConsecutiveLosses: st.ConsecutiveLosses,
		DayStartEquity:    st.DayStartEquity,
	}
}

func (s *TradingService) recordSignal(ctx context.Context, m config.ModeConfig, action domain.SignalAction, dir domain.Direction, entry, trend []domain.Candle, q domain.Quote, setupActive bool) {
	var ts int64
	if len(entry) > 0 {
		ts = entry[len(entry)-1].Timestamp
	}
	rec := domain.SignalRecord{
		ID:         uuid.NewString(),
		Timestamp:  ts,
		Instrument: s.instrument,
		Mode:       m.Mode,
		Action:     action,
		Direction:  dir,
		Features: BuildFeatures(s.params, FeatureInput{
			EntryTF:     m.EntryTF,
			TrendTF:     m.TrendTF,
			Entry:       entry,
			Trend:       trend,
			Quote:       q,
			Chop:        s.strategy.Chop(entry),
			SetupActive: setupActive,
		}),
	}
	if err := s.journal.RecordSignal(ctx, rec); err != nil {
		s.logger.Warn("Failed to journal signal", zap.Error(err))
	}
}

func (s *TradingService) notify(ctx context.Context, n domain.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Failed to send notification", zap.Error(err))
	}
}
