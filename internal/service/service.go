// Package service owns the reactive recompute loop: it holds the latest
// engine inputs and rebuilds the full P&L result whenever any of them
// change.
package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/engine"
	"blend-pnl-lab/internal/idhash"
	"blend-pnl-lab/internal/observability"
)

// DefaultSnapshotMaxLag is the staleness bound: when an event newer than
// the snapshot arrives and the snapshot is older than this, a refresh is
// requested. The bounded inconsistency in between is accepted; history is
// never reconciled retroactively.
const DefaultSnapshotMaxLag = 30 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithSnapshotMaxLag overrides the staleness bound.
func WithSnapshotMaxLag(d time.Duration) Option {
	return func(s *Service) { s.snapshotMaxLag = d }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the time source used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service recomputes one wallet's P&L from scratch on every input change.
// The engine pass is pure; all mutability lives here, behind one mutex.
type Service struct {
	account        string
	pegged         []string
	snapshotMaxLag time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time

	mu             sync.RWMutex
	events         []*domain.RawEvent
	snapshot       *domain.LivePositionSnapshot
	prices         []*domain.PricePoint
	prefs          domain.Preferences
	eventsLoaded   bool
	snapshotLoaded bool

	result          *domain.PnlResult
	lastFingerprint string

	// refreshCh signals that the snapshot exceeded the staleness bound
	// and should be refetched. Buffered: one pending request is enough.
	refreshCh chan struct{}
}

// New creates a service for one account.
func New(account string, peggedAssets []string, prefs domain.Preferences, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		account:        account,
		pegged:         peggedAssets,
		snapshotMaxLag: DefaultSnapshotMaxLag,
		logger:         logger,
		now:            time.Now,
		prefs:          prefs,
		refreshCh:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEvents replaces the event log and recomputes.
func (s *Service) SetEvents(events []*domain.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
	s.eventsLoaded = true
	s.checkStalenessLocked()
	s.recomputeLocked()
}

// SetSnapshot replaces the live snapshot and recomputes.
func (s *Service) SetSnapshot(snapshot *domain.LivePositionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	s.snapshotLoaded = true
	if s.metrics != nil {
		s.metrics.SnapshotRefreshes.Inc()
	}
	s.recomputeLocked()
}

// SetPrices replaces the historical price batch and recomputes.
func (s *Service) SetPrices(prices []*domain.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = prices
	s.recomputeLocked()
}

// SetPreferences replaces the display toggles and recomputes.
func (s *Service) SetPreferences(prefs domain.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs
	s.recomputeLocked()
}

// Preferences returns the display preferences currently in effect.
func (s *Service) Preferences() domain.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Ready reports whether both the event log and the snapshot have loaded
// at least once. The engine never runs before that.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsLoaded && s.snapshotLoaded
}

// Result returns the latest P&L result, or ErrNotReady before the first
// complete load.
func (s *Service) Result() (*domain.PnlResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil, engine.ErrNotReady
	}
	return s.result, nil
}

// RefreshRequests signals when the snapshot should be refetched because
// it exceeded the staleness bound relative to incoming events.
func (s *Service) RefreshRequests() <-chan struct{} {
	return s.refreshCh
}

// recomputeLocked rebuilds the result from scratch. Holding the lock for
// the full pass is deliberate: input volume is one wallet's history, and
// a torn read of half-updated inputs would be worse than the wait.
func (s *Service) recomputeLocked() {
	if !s.eventsLoaded || !s.snapshotLoaded {
		return
	}
	if s.metrics != nil {
		s.metrics.Ready.Set(1)
	}

	fp := idhash.InputFingerprint(s.events, s.snapshot, s.prices, s.pegged, s.prefs)
	if fp == s.lastFingerprint && s.result != nil {
		if s.metrics != nil {
			s.metrics.MemoHits.Inc()
		}
		return
	}

	start := s.now()
	result, err := engine.Compute(engine.Inputs{
		Account:          s.account,
		Events:           s.events,
		Snapshot:         s.snapshot,
		HistoricalPrices: s.prices,
		PeggedAssets:     s.pegged,
		Prefs:            s.prefs,
	})
	if err != nil {
		// Only ErrNotReady can happen here and the gate above rules it out.
		s.logger.Error("pnl recompute failed", zap.Error(err))
		return
	}

	s.result = result
	s.lastFingerprint = fp

	if s.metrics != nil {
		s.metrics.RecomputesTotal.Inc()
		s.metrics.RecomputeDuration.Observe(s.now().Sub(start).Seconds())
		s.metrics.SkippedEvents.Set(float64(result.SkippedEvents))
	}
	s.logger.Debug("pnl recomputed",
		zap.String("account", s.account),
		zap.Int("events", len(s.events)),
		zap.String("fingerprint", fp[:12]),
	)
}

// checkStalenessLocked requests a snapshot refresh when new events have
// outrun the snapshot by more than the staleness bound.
func (s *Service) checkStalenessLocked() {
	if s.snapshot == nil || len(s.events) == 0 {
		return
	}

	newest := int64(0)
	for _, e := range s.events {
		if e.LedgerClosedAt > newest {
			newest = e.LedgerClosedAt
		}
	}
	if newest <= s.snapshot.TakenAt {
		return
	}

	age := s.now().UnixMilli() - s.snapshot.TakenAt
	if s.metrics != nil {
		s.metrics.SnapshotAgeSeconds.Set(float64(age) / 1000)
	}
	if age <= s.snapshotMaxLag.Milliseconds() {
		return
	}

	if s.metrics != nil {
		s.metrics.StaleSnapshotEvents.Inc()
	}
	select {
	case s.refreshCh <- struct{}{}:
	default: // a refresh is already pending
	}
}
