package valuation

import (
	"testing"

	"github.com/shopspring/decimal"

	"blend-pnl-lab/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestHumanAmount_DefaultDecimals(t *testing.T) {
	// Decimals 0 means unknown → chain default of 7
	got := HumanAmount(10000000, 0)
	if !got.Equal(dec("1")) {
		t.Errorf("expected 1, got %s", got)
	}
}

func TestHumanAmount_ExplicitDecimals(t *testing.T) {
	got := HumanAmount(1500000, 6)
	if !got.Equal(dec("1.5")) {
		t.Errorf("expected 1.5, got %s", got)
	}
}

func TestDay_UTC(t *testing.T) {
	// 2024-03-15T23:30:00Z in ms
	got := Day(1710545400000)
	if got != "2024-03-15" {
		t.Errorf("expected 2024-03-15, got %s", got)
	}
}

func TestPriceAt_ExactDay(t *testing.T) {
	r := NewResolver([]*domain.PricePoint{
		{AssetAddress: "XLM", Day: "2024-03-14", PriceUsd: dec("0.10")},
		{AssetAddress: "XLM", Day: "2024-03-15", PriceUsd: dec("0.12")},
	}, nil, nil)

	p, ok := r.PriceAt("XLM", 1710545400000, ModeHistorical) // 2024-03-15
	if !ok {
		t.Fatal("expected a price")
	}
	if !p.Equal(dec("0.12")) {
		t.Errorf("expected 0.12, got %s", p)
	}
}

func TestPriceAt_FallsBackToEarlierDay(t *testing.T) {
	// No price on 2024-03-15; closest earlier day wins
	r := NewResolver([]*domain.PricePoint{
		{AssetAddress: "XLM", Day: "2024-03-10", PriceUsd: dec("0.10")},
		{AssetAddress: "XLM", Day: "2024-03-20", PriceUsd: dec("0.20")},
	}, nil, nil)

	p, ok := r.PriceAt("XLM", 1710545400000, ModeHistorical)
	if !ok {
		t.Fatal("expected a price")
	}
	if !p.Equal(dec("0.10")) {
		t.Errorf("expected 0.10 (closest earlier day), got %s", p)
	}
}

func TestPriceAt_FallsBackToLive(t *testing.T) {
	// No historical series at all → live price
	r := NewResolver(nil, map[string]decimal.Decimal{"XLM": dec("0.13")}, nil)

	p, ok := r.PriceAt("XLM", 1710545400000, ModeHistorical)
	if !ok {
		t.Fatal("expected a price")
	}
	if !p.Equal(dec("0.13")) {
		t.Errorf("expected live 0.13, got %s", p)
	}
}

func TestPriceAt_LiveModeIgnoresHistory(t *testing.T) {
	r := NewResolver([]*domain.PricePoint{
		{AssetAddress: "BLND", Day: "2024-03-15", PriceUsd: dec("0.50")},
	}, map[string]decimal.Decimal{"BLND": dec("0.08")}, nil)

	p, ok := r.PriceAt("BLND", 1710545400000, ModeLive)
	if !ok {
		t.Fatal("expected a price")
	}
	if !p.Equal(dec("0.08")) {
		t.Errorf("expected live 0.08, got %s", p)
	}
}

func TestPriceAt_Unknown(t *testing.T) {
	r := NewResolver(nil, nil, nil)

	if _, ok := r.PriceAt("XLM", 1710545400000, ModeHistorical); ok {
		t.Error("expected no price for unknown asset")
	}
}

func TestPriceAt_PeggedAsset(t *testing.T) {
	// Pegged assets are face value regardless of any price series
	r := NewResolver([]*domain.PricePoint{
		{AssetAddress: "USDC", Day: "2024-03-15", PriceUsd: dec("0.97")},
	}, nil, []string{"USDC"})

	p, ok := r.PriceAt("USDC", 1710545400000, ModeHistorical)
	if !ok {
		t.Fatal("expected a price")
	}
	if !p.Equal(dec("1")) {
		t.Errorf("expected 1 for pegged asset, got %s", p)
	}
}

func TestResolveUsdValue_ZeroAmount(t *testing.T) {
	// Zero raw amount yields no value, not a zero value
	r := NewResolver(nil, map[string]decimal.Decimal{"XLM": dec("0.13")}, nil)

	_, ok := r.ResolveUsdValue(0, "XLM", 7, 1710545400000, ModeHistorical)
	if ok {
		t.Error("expected no value for zero amount")
	}
}

func TestResolveUsdValue_NoPrice(t *testing.T) {
	r := NewResolver(nil, nil, nil)

	_, ok := r.ResolveUsdValue(10000000, "XLM", 7, 1710545400000, ModeHistorical)
	if ok {
		t.Error("expected no value when no price is known")
	}
}

func TestResolveUsdValue_Pegged(t *testing.T) {
	r := NewResolver(nil, nil, []string{"USDC"})

	v, ok := r.ResolveUsdValue(2500000, "USDC", 6, 1710545400000, ModeHistorical)
	if !ok {
		t.Fatal("expected a value")
	}
	if !v.Equal(dec("2.5")) {
		t.Errorf("expected 2.5, got %s", v)
	}
}

func TestResolveUsdValue_Historical(t *testing.T) {
	r := NewResolver([]*domain.PricePoint{
		{AssetAddress: "XLM", Day: "2024-03-15", PriceUsd: dec("0.12")},
	}, nil, nil)

	v, ok := r.ResolveUsdValue(10000000, "XLM", 7, 1710545400000, ModeHistorical)
	if !ok {
		t.Fatal("expected a value")
	}
	if !v.Equal(dec("0.12")) {
		t.Errorf("expected 0.12, got %s", v)
	}
}
