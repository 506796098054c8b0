// Package ingestion loads a wallet's history and live positions from the
// indexer and keeps them fresh: an initial parallel load, then polling
// loops nudged by websocket activity notifications.
package ingestion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/ledger"
	"blend-pnl-lab/internal/observability"
	"blend-pnl-lab/internal/storage"
)

// Sink receives fresh inputs. The recompute service implements it.
type Sink interface {
	SetEvents(events []*domain.RawEvent)
	SetSnapshot(snapshot *domain.LivePositionSnapshot)
	SetPrices(prices []*domain.PricePoint)
	RefreshRequests() <-chan struct{}
}

// Runner drives ingestion for one account.
type Runner struct {
	account          string
	client           *ledger.Client
	stream           *ledger.ActivityStream
	eventStore       storage.EventStore
	priceStore       storage.PriceStore
	sink             Sink
	eventInterval    time.Duration
	snapshotInterval time.Duration
	metrics          *observability.Metrics
	logger           *zap.Logger

	// Price coverage tracking, touched only by the Run goroutine.
	snapshot *domain.LivePositionSnapshot
	priceKey string
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Account          string
	Client           *ledger.Client
	Stream           *ledger.ActivityStream // optional, polling still runs without it
	EventStore       storage.EventStore
	PriceStore       storage.PriceStore
	Sink             Sink
	EventInterval    time.Duration // Default: 30s
	SnapshotInterval time.Duration // Default: 15s
	Metrics          *observability.Metrics
	Logger           *zap.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	eventInterval := opts.EventInterval
	if eventInterval == 0 {
		eventInterval = 30 * time.Second
	}

	snapshotInterval := opts.SnapshotInterval
	if snapshotInterval == 0 {
		snapshotInterval = 15 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		account:          opts.Account,
		client:           opts.Client,
		stream:           opts.Stream,
		eventStore:       opts.EventStore,
		priceStore:       opts.PriceStore,
		sink:             opts.Sink,
		eventInterval:    eventInterval,
		snapshotInterval: snapshotInterval,
		metrics:          opts.Metrics,
		logger:           logger,
	}
}

// Run performs the initial load, then keeps events and snapshot fresh
// until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.initialLoad(ctx); err != nil {
		return err
	}

	var notifications <-chan ledger.ActivityNotification
	if r.stream != nil {
		notifications = r.stream.Notifications()
		r.logger.Info("subscribed to activity stream", zap.String("account", r.account))
	}

	eventTicker := time.NewTicker(r.eventInterval)
	defer eventTicker.Stop()

	snapshotTicker := time.NewTicker(r.snapshotInterval)
	defer snapshotTicker.Stop()

	r.logger.Info("ingestion runner started",
		zap.String("account", r.account),
		zap.Duration("event_interval", r.eventInterval),
		zap.Duration("snapshot_interval", r.snapshotInterval),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("ingestion runner stopping")
			return ctx.Err()

		case <-eventTicker.C:
			r.refreshEvents(ctx)

		case <-snapshotTicker.C:
			r.refreshSnapshot(ctx)

		case note, ok := <-notifications:
			if !ok {
				// Stream closed for good; polling keeps the data fresh.
				notifications = nil
				continue
			}
			// On-ledger activity for this account: pull both sides now
			// instead of waiting out the tickers.
			r.logger.Debug("activity notification", zap.String("tx_hash", note.TxHash))
			r.refreshEvents(ctx)
			r.refreshSnapshot(ctx)

		case <-r.sink.RefreshRequests():
			r.refreshSnapshot(ctx)
		}
	}
}

// initialLoad fetches the event history and the live snapshot in
// parallel. When the indexer cannot serve the history, a previously
// persisted ledger is good enough to start from: the polling loop picks
// up the live feed once the indexer recovers.
func (r *Runner) initialLoad(ctx context.Context) error {
	var (
		events    []*domain.RawEvent
		fromStore bool
		snapshot  *domain.LivePositionSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := r.client.Events(gctx, r.account)
		if err != nil {
			if stored := r.storedEvents(gctx); len(stored) > 0 {
				r.logger.Warn("indexer history unavailable, starting from stored ledger",
					zap.Int("events", len(stored)), zap.Error(err))
				events = stored
				fromStore = true
				return nil
			}
			return err
		}
		events = fetched
		return nil
	})
	g.Go(func() error {
		var err error
		snapshot, err = r.client.Snapshot(gctx, r.account)
		return err
	})
	if err := g.Wait(); err != nil {
		if r.metrics != nil {
			r.metrics.FetchErrors.WithLabelValues("initial_load").Inc()
		}
		return err
	}

	r.snapshot = snapshot
	if !fromStore {
		r.persistEvents(ctx, events)
	}
	prices := r.loadPrices(ctx, events)

	r.sink.SetEvents(events)
	if prices != nil {
		r.sink.SetPrices(prices)
	}
	r.sink.SetSnapshot(snapshot)

	r.logger.Info("initial load complete",
		zap.String("account", r.account),
		zap.Int("events", len(events)),
		zap.Int("price_points", len(prices)),
	)
	return nil
}

// refreshEvents refetches the full event history and pushes it to the
// sink. The engine recomputes from scratch, so a full refetch is the
// simplest way to stay correct under reorgs or backfill. New events can
// widen the price coverage, so the price range is re-derived every time.
func (r *Runner) refreshEvents(ctx context.Context) {
	events, err := r.client.Events(ctx, r.account)
	if err != nil {
		if r.metrics != nil {
			r.metrics.FetchErrors.WithLabelValues("events").Inc()
		}
		r.logger.Warn("event refresh failed", zap.Error(err))
		return
	}

	r.persistEvents(ctx, events)
	if prices := r.loadPrices(ctx, events); prices != nil {
		r.sink.SetPrices(prices)
	}
	r.sink.SetEvents(events)
}

// refreshSnapshot refetches the live position snapshot.
func (r *Runner) refreshSnapshot(ctx context.Context) {
	snapshot, err := r.client.Snapshot(ctx, r.account)
	if err != nil {
		if r.metrics != nil {
			r.metrics.FetchErrors.WithLabelValues("snapshot").Inc()
		}
		r.logger.Warn("snapshot refresh failed", zap.Error(err))
		return
	}

	r.snapshot = snapshot
	r.sink.SetSnapshot(snapshot)
}

// storedEvents reads the persisted ledger, used as the initial-load
// fallback when the indexer is down.
func (r *Runner) storedEvents(ctx context.Context) []*domain.RawEvent {
	if r.eventStore == nil {
		return nil
	}
	stored, err := r.eventStore.GetByAccount(ctx, r.account)
	if err != nil {
		r.logger.Warn("stored ledger read failed", zap.Error(err))
		return nil
	}
	return stored
}

// persistEvents writes events to the store. Duplicates are expected on
// every refresh and are not errors.
func (r *Runner) persistEvents(ctx context.Context, events []*domain.RawEvent) {
	if r.eventStore == nil || len(events) == 0 {
		return
	}

	stored := 0
	for _, event := range events {
		if err := r.eventStore.Insert(ctx, event); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				if r.metrics != nil {
					r.metrics.EventsDuplicate.Inc()
				}
				continue
			}
			r.logger.Warn("event insert failed",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}
		stored++
	}
	if r.metrics != nil {
		r.metrics.EventsIngested.Add(float64(stored))
	}
}

// loadPrices fetches daily prices covering the account's activity range
// for every asset seen in the history. Returns nil when the coverage has
// not grown since the last load. The local store is consulted only on the
// first load; once new events widen the range the indexer is asked for
// the full set, since cached rows cannot cover days that just appeared.
func (r *Runner) loadPrices(ctx context.Context, events []*domain.RawEvent) []*domain.PricePoint {
	assets, from, to := priceQuery(events, r.snapshot)
	if len(assets) == 0 {
		return nil
	}

	key := coverageKey(assets, from, to)
	if key == r.priceKey {
		return nil
	}
	firstLoad := r.priceKey == ""

	if firstLoad && r.priceStore != nil {
		cached, err := r.priceStore.GetByAssets(ctx, assets, from, to)
		if err == nil && len(cached) > 0 {
			r.priceKey = key
			return cached
		}
	}

	prices, err := r.client.DailyPrices(ctx, assets, from, to)
	if err != nil {
		if r.metrics != nil {
			r.metrics.FetchErrors.WithLabelValues("prices").Inc()
		}
		r.logger.Warn("daily price fetch failed", zap.Error(err))
		return nil
	}
	r.priceKey = key

	if r.priceStore != nil && len(prices) > 0 {
		novel := prices
		if !firstLoad {
			// Widened fetches repeat already-stored days; the bulk insert
			// is atomic, so strip known points before persisting.
			if existing, err := r.priceStore.GetByAssets(ctx, assets, from, to); err == nil {
				novel = newPricePoints(prices, existing)
			}
		}
		if len(novel) > 0 {
			if err := r.priceStore.InsertBulk(ctx, novel); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				r.logger.Warn("price persist failed", zap.Error(err))
			} else if r.metrics != nil {
				r.metrics.PricePointsStored.Add(float64(len(novel)))
			}
		}
	}
	return prices
}

// newPricePoints filters out points already present in the store.
func newPricePoints(prices, existing []*domain.PricePoint) []*domain.PricePoint {
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.AssetAddress+"|"+p.Day] = true
	}
	var novel []*domain.PricePoint
	for _, p := range prices {
		if !seen[p.AssetAddress+"|"+p.Day] {
			novel = append(novel, p)
		}
	}
	return novel
}

// coverageKey identifies one asset set + day range combination.
func coverageKey(assets []string, from, to string) string {
	sorted := append([]string(nil), assets...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",") + "|" + from + "|" + to
}

// priceQuery derives the asset set and the day range needed to value the
// full history.
func priceQuery(events []*domain.RawEvent, snapshot *domain.LivePositionSnapshot) (assets []string, from, to string) {
	seen := make(map[string]bool)
	var minTs, maxTs int64
	for _, e := range events {
		if e.AssetAddress != "" && !seen[e.AssetAddress] {
			seen[e.AssetAddress] = true
			assets = append(assets, e.AssetAddress)
		}
		if minTs == 0 || e.LedgerClosedAt < minTs {
			minTs = e.LedgerClosedAt
		}
		if e.LedgerClosedAt > maxTs {
			maxTs = e.LedgerClosedAt
		}
	}
	if snapshot != nil {
		for _, p := range snapshot.Positions {
			if p.AssetID != "" && !seen[p.AssetID] {
				seen[p.AssetID] = true
				assets = append(assets, p.AssetID)
			}
		}
		if snapshot.TakenAt > maxTs {
			maxTs = snapshot.TakenAt
		}
	}
	if minTs == 0 {
		return assets, "", ""
	}
	return assets, dayOf(minTs), dayOf(maxTs)
}

func dayOf(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("2006-01-02")
}
