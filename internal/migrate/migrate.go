// Package migrate copies a sandbox SQLite database into a target
// database, usually Postgres. The target schema is rebuilt from
// scratch, so repeated runs are safe.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsamit27/ava/internal/store"
)

// tableCopy describes how one table moves. Tables referenced by
// foreign keys keep their ids; pure mapping tables get fresh ones from
// the target's sequence.
type tableCopy struct {
	name       string
	preserveID bool
	idColumn   string
	// serial marks tables whose id column is SERIAL on Postgres, so
	// the sequence needs a reset after ids were inserted explicitly.
	serial bool
}

// Copy order follows the dependency graph so foreign keys resolve.
var copyOrder = []tableCopy{
	{name: "leads", preserveID: true, idColumn: "id", serial: true},
	{name: "buyers", preserveID: true, idColumn: "id", serial: true},
	{name: "cars", preserveID: true, idColumn: "id"},
	{name: "lead_buyer_map", idColumn: "id", serial: true},
	{name: "pickup", preserveID: true, idColumn: "pick_up_id"},
	{name: "buyer_schedule", idColumn: "id", serial: true},
}

// Run copies every table from the source database into the target,
// dropping and recreating the target schema first. It returns per-table
// row counts.
func Run(ctx context.Context, fromDSN, toDSN string) (map[string]int, error) {
	src, err := store.Open(fromDSN)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close() //nolint:errcheck

	dst, err := store.Open(toDSN)
	if err != nil {
		return nil, fmt.Errorf("open target: %w", err)
	}
	defer dst.Close() //nolint:errcheck

	if err := dst.DropSchema(ctx); err != nil {
		return nil, err
	}
	if err := dst.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(copyOrder))
	for _, tc := range copyOrder {
		n, err := copyTable(ctx, src, dst, tc)
		if err != nil {
			return counts, fmt.Errorf("copy %s: %w", tc.name, err)
		}
		counts[tc.name] = n
		slog.Info("Table copied", "table", tc.name, "rows", n)

		if tc.serial && tc.preserveID && dst.Flavor() == store.FlavorPostgres && n > 0 {
			if err := resetSequence(ctx, dst, tc.name, tc.idColumn); err != nil {
				return counts, fmt.Errorf("reset %s sequence: %w", tc.name, err)
			}
		}
	}
	return counts, nil
}

func copyTable(ctx context.Context, src, dst *store.DB, tc tableCopy) (int, error) {
	rows, err := src.Query(ctx, "SELECT * FROM "+tc.name)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		columns := make([]string, 0, len(row.Columns()))
		values := make([]any, 0, len(row.Columns()))
		for _, col := range row.Columns() {
			if col == tc.idColumn && !tc.preserveID {
				continue
			}
			v, _ := row.Get(col)
			columns = append(columns, col)
			values = append(values, v)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			tc.name,
			strings.Join(columns, ", "),
			placeholders(len(columns)))
		if _, err := dst.Exec(ctx, query, values...); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// resetSequence moves a SERIAL sequence past the explicitly inserted
// ids so future inserts do not collide.
func resetSequence(ctx context.Context, dst *store.DB, table, idColumn string) error {
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE(MAX(%s), 1)) FROM %s",
		table, idColumn, idColumn, table)
	_, err := dst.Query(ctx, query)
	return err
}

func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return strings.Join(marks, ", ")
}
