package aggregate

import (
	"blend-pnl-lab/internal/domain"
)

// seriesBuilder folds transactions into one chart point per unique day.
// Multiple transactions on the same day collapse into a single point; the
// running sums are monotonic, so last-wins within a day is exact.
type seriesBuilder struct {
	result  []*domain.CumulativePoint
	current *domain.CumulativePoint
	running domain.CumulativePoint
}

func newSeriesBuilder() *seriesBuilder {
	return &seriesBuilder{}
}

// apply adds one transaction. Transactions must arrive in ascending date
// order. Realized in the chart series is cumulative emissions claimed
// only: withdrawing principal is not profit.
func (b *seriesBuilder) apply(day string, tx *domain.NormalizedTransaction) {
	switch tx.Type {
	case domain.TxDeposit:
		b.running.DepositedUsd = b.running.DepositedUsd.Add(tx.ValueUsd)
	case domain.TxWithdraw:
		b.running.WithdrawnUsd = b.running.WithdrawnUsd.Add(tx.ValueUsd)
	case domain.TxClaim:
		b.running.RealizedUsd = b.running.RealizedUsd.Add(tx.ValueUsd)
	}

	if b.current == nil || b.current.Day != day {
		b.current = &domain.CumulativePoint{Day: day}
		b.result = append(b.result, b.current)
	}
	b.current.DepositedUsd = b.running.DepositedUsd
	b.current.WithdrawnUsd = b.running.WithdrawnUsd
	b.current.RealizedUsd = b.running.RealizedUsd
}

func (b *seriesBuilder) points() []*domain.CumulativePoint {
	return b.result
}
