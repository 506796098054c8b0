package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"blend-pnl-lab/internal/domain"
	"blend-pnl-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	event_id, account, pool_id, pool_name,
	asset_address, asset_symbol, asset_decimals, action,
	amount_underlying, claim_amount, lp_tokens,
	ledger_closed_at, tx_hash, created_at
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.RawEvent) error {
	query := `
		INSERT INTO ledger_events (` + eventColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14
		)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EventID, e.Account, e.PoolID, e.PoolName,
		e.AssetAddress, e.AssetSymbol, e.AssetDecimals, string(e.Action),
		e.AmountUnderlying, e.ClaimAmount, e.LPTokens,
		e.LedgerClosedAt, e.TxHash, e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO ledger_events (` + eventColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14
		)
	`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.EventID, e.Account, e.PoolID, e.PoolName,
			e.AssetAddress, e.AssetSymbol, e.AssetDecimals, string(e.Action),
			e.AmountUnderlying, e.ClaimAmount, e.LPTokens,
			e.LedgerClosedAt, e.TxHash, e.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert ledger event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByAccount retrieves all events for a wallet, ordered by ledger_closed_at ASC.
func (s *EventStore) GetByAccount(ctx context.Context, account string) ([]*domain.RawEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE account = $1
		ORDER BY ledger_closed_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents scans multiple rows.
func scanEvents(rows pgx.Rows) ([]*domain.RawEvent, error) {
	var events []*domain.RawEvent

	for rows.Next() {
		var e domain.RawEvent
		var action string
		err := rows.Scan(
			&e.EventID, &e.Account, &e.PoolID, &e.PoolName,
			&e.AssetAddress, &e.AssetSymbol, &e.AssetDecimals, &action,
			&e.AmountUnderlying, &e.ClaimAmount, &e.LPTokens,
			&e.LedgerClosedAt, &e.TxHash, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		e.Action = domain.ActionType(action)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}
