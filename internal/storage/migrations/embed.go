package migrations

import "embed"

// PostgresFS embeds the run store schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the price store schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
