package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/store"
)

// carPriority orders the identifying fields; only the highest-priority
// field present is used for the lookup, the rest are recorded and
// ignored rather than combined into a compound filter.
var carPriority = []string{"car_id", "vin", "model", "make", "year"}

const (
	carMissingMsg    = "Provide car_id, vin, model, make, or year."
	pickupMissingMsg = "Provide pick_up_id, car_id, vin, model, make, or year."
)

// carQuery is the single identifying field selected for resolution.
type carQuery struct {
	key     string
	value   any
	ignored []string
}

func (q *carQuery) meta() map[string]any {
	return map[string]any{
		"selected_key":   q.key,
		"selected_value": q.value,
		"ignored_keys":   q.ignored,
	}
}

// selectIdentifier validates the identifier set and picks the field the
// lookup will use. Runs before any database is opened.
func selectIdentifier(query map[string]any, missingMsg string) (*carQuery, *domain.ToolResult) {
	var provided []string
	for _, k := range carPriority {
		if v, ok := query[k]; ok && strings.TrimSpace(stringFrom(v)) != "" {
			provided = append(provided, k)
		}
	}
	if len(provided) == 0 {
		return nil, errResult(domain.CodeInvalidInput, missingMsg, nil)
	}

	q := &carQuery{key: provided[0], value: query[provided[0]], ignored: provided[1:]}

	if q.key == "car_id" || q.key == "year" {
		n, ok := intFrom(q.value)
		if !ok {
			return nil, errResult(domain.CodeInvalidInput,
				fmt.Sprintf("%s must be an integer.", q.key),
				map[string]any{"received": q.value})
		}
		q.value = n
	}
	return q, nil
}

func selectCarKey(query map[string]any) (*carQuery, *domain.ToolResult) {
	return selectIdentifier(query, carMissingMsg)
}

// lookupCar resolves the selected identifier to exactly one car row.
// Zero matches is NOT_FOUND and several are AMBIGUOUS with a candidate
// preview; it never silently picks among multiple matches.
func (t *Toolset) lookupCar(ctx context.Context, db *store.DB, q *carQuery) (*store.Row, map[string]any, *domain.ToolResult) {
	meta := q.meta()

	if q.key == "car_id" {
		row, err := db.QueryOne(ctx, "SELECT * FROM cars WHERE id = ?", q.value)
		if err != nil {
			return nil, nil, errResult(domain.CodeTxnFailed, fmt.Sprintf("Lookup failed: %v", err), nil)
		}
		if row == nil {
			return nil, nil, errResult(domain.CodeNotFound, "No matching car found.", meta)
		}
		return row, meta, nil
	}

	var (
		rows []store.Row
		err  error
	)
	switch q.key {
	case "vin":
		rows, err = db.Query(ctx, "SELECT * FROM cars WHERE vin = ?", strings.TrimSpace(stringFrom(q.value)))
	case "model":
		rows, err = db.Query(ctx, "SELECT * FROM cars WHERE LOWER(model) LIKE ?", likePattern(q.value))
	case "make":
		rows, err = db.Query(ctx, "SELECT * FROM cars WHERE LOWER(make) LIKE ?", likePattern(q.value))
	case "year":
		rows, err = db.Query(ctx, "SELECT * FROM cars WHERE year = ?", q.value)
	}
	if err != nil {
		return nil, nil, errResult(domain.CodeTxnFailed, fmt.Sprintf("Lookup failed: %v", err), nil)
	}

	if len(rows) == 0 {
		return nil, nil, errResult(domain.CodeNotFound, "No matching car found.", meta)
	}
	if len(rows) > 1 {
		limit := len(rows)
		if limit > 5 {
			limit = 5
		}
		candidates := make([]map[string]any, 0, limit)
		for _, r := range rows[:limit] {
			m := r.Map()
			candidates = append(candidates, map[string]any{
				"id": m["id"], "year": m["year"], "make": m["make"], "model": m["model"], "vin": m["vin"],
			})
		}
		meta["candidates"] = candidates
		return nil, nil, &domain.ToolResult{
			Status:  domain.StatusUnsure,
			Code:    domain.CodeAmbiguous,
			Message: "Multiple cars match—refine with VIN or car_id.",
			Data:    meta,
		}
	}

	return &rows[0], meta, nil
}

// resolvePickup addresses a pickup indirectly through its car: the car
// resolves first, then the pickups referencing it go through the same
// zero/one/many policy.
func (t *Toolset) resolvePickup(ctx context.Context, db *store.DB, q *carQuery) (*store.Row, *domain.ToolResult) {
	car, _, fail := t.lookupCar(ctx, db, q)
	if fail != nil {
		return nil, fail
	}
	carID, _ := car.Int("id")

	rows, err := db.Query(ctx, "SELECT * FROM pickup WHERE car_id = ?", carID)
	if err != nil {
		return nil, errResult(domain.CodeTxnFailed, fmt.Sprintf("Lookup failed: %v", err), nil)
	}
	if len(rows) == 0 {
		return nil, errResult(domain.CodeNotFound, "Pickup not found.", map[string]any{"car_id": carID})
	}
	if len(rows) > 1 {
		limit := len(rows)
		if limit > 5 {
			limit = 5
		}
		candidates := make([]map[string]any, 0, limit)
		for _, r := range rows[:limit] {
			m := r.Map()
			candidates = append(candidates, map[string]any{
				"pick_up_id": m["pick_up_id"], "car_id": m["car_id"], "address": m["address"], "dropoff_time": m["dropoff_time"],
			})
		}
		return nil, &domain.ToolResult{
			Status:  domain.StatusUnsure,
			Code:    domain.CodeAmbiguous,
			Message: "Multiple pickups match—refine with pick_up_id.",
			Data:    map[string]any{"car_id": carID, "candidates": candidates},
		}
	}

	return &rows[0], nil
}

func likePattern(v any) string {
	return "%" + strings.ToLower(strings.TrimSpace(stringFrom(v))) + "%"
}
