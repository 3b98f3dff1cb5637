package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jsamit27/ava/internal/store"
)

// Writable columns per table, in canonical order. Per-field updates
// iterate this order so failures are deterministic.
var (
	carFields = []string{
		"vin", "year", "make", "model", "trim", "mileage",
		"interior_condition", "exterior_condition",
		"seller_ask_cents", "buyer_offer_cents",
		"created_at", "lead_id",
	}
	pickupFields = []string{
		"car_id", "address", "contact_phone", "pick_up_info",
		"created_at", "dropoff_time",
	}
)

// whitelistPatch keeps only the allowed columns from a patch.
func whitelistPatch(patch map[string]any, allowed []string) map[string]any {
	out := map[string]any{}
	for _, f := range allowed {
		if v, ok := patch[f]; ok {
			out[f] = v
		}
	}
	return out
}

func sortedCopy(fields []string) []string {
	out := append([]string(nil), fields...)
	sort.Strings(out)
	return out
}

// applyFieldUpdates writes one column at a time inside a transaction,
// counting the fields whose update touched a row. Any failure rolls
// back every field so a patch lands whole or not at all.
func applyFieldUpdates(ctx context.Context, db *store.DB, table, idColumn string, id int64, order []string, patch map[string]any) (int64, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, err
	}

	var updated int64
	for _, field := range order {
		value, ok := patch[field]
		if !ok {
			continue
		}
		rows, err := tx.Exec(ctx,
			fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table, field, idColumn),
			value, id)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if rows > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// nextTempID allocates the next negative id for rows created from chat;
// seeded data keeps the positive range.
func nextTempID(ctx context.Context, db *store.DB, query string) (int64, error) {
	row, err := db.QueryOne(ctx, query)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return -1, nil
	}
	minID, ok := row.Int("min_id")
	if !ok || minID > 0 {
		return -1, nil
	}
	return minID - 1, nil
}

// normalizeVIN trims a string VIN, mapping blank to nil. Non-string
// values pass through untouched.
func normalizeVIN(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		return trimmed
	}
	return nil
}
