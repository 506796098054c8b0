package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/engine"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr(v int64) *int64 { return &v }

// 2024-03-15T12:00:00Z
const ts1 = int64(1710504000000)

func testEvents() []*domain.RawEvent {
	return []*domain.RawEvent{
		{
			EventID: "e1", Account: "GWALLET", PoolID: "p1", PoolName: "Main",
			AssetAddress: "XLM", AssetSymbol: "XLM", AssetDecimals: 7,
			Action: domain.ActionSupply, AmountUnderlying: ptr(100000000000),
			LedgerClosedAt: ts1, TxHash: "t1",
		},
	}
}

func testSnapshot(takenAt int64) *domain.LivePositionSnapshot {
	return &domain.LivePositionSnapshot{
		Account: "GWALLET",
		Positions: []*domain.PoolPosition{
			{PoolID: "p1", AssetID: "XLM", SupplyUsdValue: dec("1250"), PriceChangeUsd: dec("200"), PriceUsd: dec("0.125")},
		},
		BlndPrice: dec("0.08"),
		TakenAt:   takenAt,
	}
}

func testPrices() []*domain.PricePoint {
	return []*domain.PricePoint{
		{AssetAddress: "XLM", Day: "2024-03-15", PriceUsd: dec("0.10")},
	}
}

func TestService_ReadyGate(t *testing.T) {
	svc := New("GWALLET", nil, domain.Preferences{UseHistoricalBlndPrices: true}, nil)

	if svc.Ready() {
		t.Error("ready before any input")
	}
	if _, err := svc.Result(); err != engine.ErrNotReady {
		t.Errorf("expected ErrNotReady, got %v", err)
	}

	svc.SetEvents(testEvents())
	if svc.Ready() {
		t.Error("ready with events only")
	}
	if _, err := svc.Result(); err != engine.ErrNotReady {
		t.Errorf("expected ErrNotReady with events only, got %v", err)
	}

	svc.SetSnapshot(testSnapshot(ts1 + 3600000))
	if !svc.Ready() {
		t.Error("not ready after both inputs")
	}
	res, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	if res.Account != "GWALLET" {
		t.Errorf("expected GWALLET, got %s", res.Account)
	}
}

func TestService_RecomputeOnChange(t *testing.T) {
	svc := New("GWALLET", nil, domain.Preferences{UseHistoricalBlndPrices: true}, nil)
	svc.SetEvents(testEvents())
	svc.SetSnapshot(testSnapshot(ts1 + 3600000))
	svc.SetPrices(testPrices())

	before, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	// 10000 XLM at $0.10
	if !before.TotalDepositedUsd.Equal(dec("1000")) {
		t.Fatalf("deposited: expected 1000, got %s", before.TotalDepositedUsd)
	}

	snap := testSnapshot(ts1 + 7200000)
	snap.Positions[0].SupplyUsdValue = dec("1300")
	svc.SetSnapshot(snap)

	after, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	if after.InputFingerprint == before.InputFingerprint {
		t.Error("snapshot change must change the fingerprint")
	}
	if !after.Pools.CurrentUsd.Equal(dec("1300")) {
		t.Errorf("expected refreshed position value 1300, got %s", after.Pools.CurrentUsd)
	}
}

func TestService_PriceHistoryArrivalRecomputes(t *testing.T) {
	svc := New("GWALLET", nil, domain.Preferences{UseHistoricalBlndPrices: true}, nil)
	svc.SetEvents(testEvents())
	svc.SetSnapshot(testSnapshot(ts1 + 3600000))

	// No history yet: the deposit is valued at the live $0.125 price.
	before, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	if !before.TotalDepositedUsd.Equal(dec("1250")) {
		t.Fatalf("live-valued deposited: expected 1250, got %s", before.TotalDepositedUsd)
	}

	// Historical prices arriving later must not be swallowed by the memo.
	svc.SetPrices(testPrices())

	after, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	if !after.TotalDepositedUsd.Equal(dec("1000")) {
		t.Errorf("deposited after price load: expected 1000, got %s", after.TotalDepositedUsd)
	}
	if after.InputFingerprint == before.InputFingerprint {
		t.Error("price history change must change the fingerprint")
	}
}

func TestService_MemoizesUnchangedInputs(t *testing.T) {
	svc := New("GWALLET", nil, domain.Preferences{UseHistoricalBlndPrices: true}, nil)
	svc.SetEvents(testEvents())
	svc.SetSnapshot(testSnapshot(ts1 + 3600000))

	first, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}

	// Same inputs again: the cached result is reused, not rebuilt.
	svc.SetEvents(testEvents())
	svc.SetSnapshot(testSnapshot(ts1 + 3600000))

	second, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("identical inputs must reuse the cached result")
	}
}

func TestService_PreferenceFlip(t *testing.T) {
	svc := New("GWALLET", nil, domain.Preferences{UseHistoricalBlndPrices: true}, nil)
	events := append(testEvents(), &domain.RawEvent{
		EventID: "e2", Account: "GWALLET", PoolID: "p1", PoolName: "Main",
		AssetAddress: "BLND-ADDR", AssetSymbol: "BLND", AssetDecimals: 7,
		Action: domain.ActionClaim, ClaimAmount: ptr(500000000),
		LedgerClosedAt: ts1, TxHash: "t2",
	})
	svc.SetEvents(events)
	svc.SetSnapshot(testSnapshot(ts1 + 3600000))
	svc.SetPrices(append(testPrices(), &domain.PricePoint{
		AssetAddress: "BLND-ADDR", Day: "2024-03-15", PriceUsd: dec("0.50"),
	}))

	hist, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	// 50 BLND at the $0.50 claim-day price
	if !hist.RealizedPnlUsd.Equal(dec("25")) {
		t.Fatalf("historical realized: expected 25, got %s", hist.RealizedPnlUsd)
	}

	svc.SetPreferences(domain.Preferences{UseHistoricalBlndPrices: false})

	live, err := svc.Result()
	if err != nil {
		t.Fatal(err)
	}
	// 50 BLND at the snapshot's $0.08 live price
	if !live.RealizedPnlUsd.Equal(dec("4")) {
		t.Errorf("live realized: expected 4, got %s", live.RealizedPnlUsd)
	}
}

func TestService_StaleSnapshotRequestsRefresh(t *testing.T) {
	now := time.UnixMilli(ts1 + 120000) // two minutes past the snapshot
	svc := New("GWALLET", nil, domain.Preferences{UseHistoricalBlndPrices: true}, nil,
		WithClock(func() time.Time { return now }),
		WithSnapshotMaxLag(30*time.Second),
	)

	svc.SetSnapshot(testSnapshot(ts1))

	// An event newer than the stale snapshot triggers a refresh request.
	events := testEvents()
	events[0].LedgerClosedAt = ts1 + 60000
	svc.SetEvents(events)

	select {
	case <-svc.RefreshRequests():
	default:
		t.Fatal("expected a refresh request")
	}

	// The channel is buffered at one: repeated staleness does not pile up.
	svc.SetEvents(events)
	svc.SetEvents(events)
	select {
	case <-svc.RefreshRequests():
	default:
		t.Fatal("expected a second refresh request after draining")
	}
	select {
	case <-svc.RefreshRequests():
		t.Fatal("refresh requests must not pile up")
	default:
	}
}

func TestService_FreshSnapshotNoRefresh(t *testing.T) {
	now := time.UnixMilli(ts1 + 10000)
	svc := New("GWALLET", nil, domain.Preferences{UseHistoricalBlndPrices: true}, nil,
		WithClock(func() time.Time { return now }),
		WithSnapshotMaxLag(30*time.Second),
	)

	svc.SetSnapshot(testSnapshot(ts1))
	events := testEvents()
	events[0].LedgerClosedAt = ts1 + 5000
	svc.SetEvents(events)

	select {
	case <-svc.RefreshRequests():
		t.Fatal("snapshot within the staleness bound must not request a refresh")
	default:
	}
}
