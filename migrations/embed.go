// Package migrations embeds the warehouse DDL applied by cmd/migrate.
package migrations

import "embed"

// BigQuery holds bigquery/NNNN_name.sql files.
//
//go:embed bigquery/*.sql
var BigQuery embed.FS
