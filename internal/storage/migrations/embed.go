// Package migrations applies the embedded schema for both stores: the
// ledger event log in Postgres and the daily price history in ClickHouse.
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
