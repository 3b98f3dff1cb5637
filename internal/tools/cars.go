package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/shared"
	"github.com/jsamit27/ava/internal/store"
)

// CarRetrieve looks up one car by a single identifying field, chosen by
// priority: car_id > vin > model > make > year.
func (t *Toolset) CarRetrieve(ctx context.Context, sess *domain.Session, args map[string]any) *domain.ToolResult {
	q, fail := selectCarKey(args)
	if fail != nil {
		return fail
	}

	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	row, meta, fail := t.lookupCar(ctx, db, q)
	if fail != nil {
		return fail
	}
	meta["car"] = row.Map()
	return okResult("Car retrieved.", meta)
}

// CarAdd inserts a car, or upserts when the VIN already exists. New
// rows take ids from the negative range so chat-created cars never
// collide with seeded inventory.
func (t *Toolset) CarAdd(ctx context.Context, sess *domain.Session, patch map[string]any) *domain.ToolResult {
	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	vin := normalizeVIN(patch["vin"])

	if vin != nil {
		existing, err := db.QueryOne(ctx, "SELECT id FROM cars WHERE vin = ?", vin)
		if err != nil {
			return carAddFailure(patch, err)
		}
		if existing != nil {
			carID, _ := existing.Int("id")
			return t.upsertExistingVIN(ctx, db, patch, carID, vin)
		}
	}

	tempID, err := nextTempID(ctx, db, "SELECT MIN(id) AS min_id FROM cars")
	if err != nil {
		return carAddFailure(patch, err)
	}

	_, err = db.Exec(ctx, `INSERT INTO cars (
			id, vin, year, make, model, trim, mileage,
			interior_condition, exterior_condition,
			seller_ask_cents, buyer_offer_cents,
			created_at, lead_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tempID, vin, patch["year"], patch["make"], patch["model"], patch["trim"],
		patch["mileage"], patch["interior_condition"], patch["exterior_condition"],
		patch["seller_ask_cents"], patch["buyer_offer_cents"],
		patch["created_at"], patch["lead_id"])
	if err != nil {
		return carAddFailure(patch, err)
	}

	return okResult("Car added.", map[string]any{"car": carSnapshot(ctx, db, tempID)})
}

// upsertExistingVIN patches the car that already carries the VIN
// instead of inserting a duplicate.
func (t *Toolset) upsertExistingVIN(ctx context.Context, db *store.DB, patch map[string]any, carID int64, vin any) *domain.ToolResult {
	sanitized := whitelistPatch(patch, carFields)
	if _, ok := sanitized["vin"]; ok {
		sanitized["vin"] = vin
	}

	if len(sanitized) == 0 {
		return okResult("Car upserted (existing VIN, no changes).",
			map[string]any{"car": carSnapshot(ctx, db, carID)})
	}

	updated, err := applyFieldUpdates(ctx, db, "cars", "id", carID, carFields, sanitized)
	if err != nil {
		return carAddFailure(patch, err)
	}

	msg := "No fields changed."
	if updated > 0 {
		msg = "Car upserted (existing VIN updated)."
	}
	return okResult(msg, map[string]any{
		"car":            carSnapshot(ctx, db, carID),
		"updated_fields": updated,
	})
}

// CarUpdate patches one car. The car resolves either directly by
// car_id or through the identifier chain; the field used for
// resolution is stripped from the patch so it is never written back.
func (t *Toolset) CarUpdate(ctx context.Context, sess *domain.Session, args map[string]any) *domain.ToolResult {
	patch := clonePatch(args)
	dropNulls(patch)

	if _, direct := args["car_id"]; direct {
		delete(patch, "car_id")
		if len(patch) == 0 {
			return errResult(domain.CodeInvalidInput, "patch must be a non-empty object.", nil)
		}
		carID, ok := intFrom(args["car_id"])
		if !ok {
			return errResult(domain.CodeInvalidInput, "car_id must be an integer.",
				map[string]any{"received": args["car_id"]})
		}

		sanitized := whitelistPatch(patch, carFields)
		if len(sanitized) == 0 {
			return errResult(domain.CodeInvalidInput, "No allowed fields to update.",
				map[string]any{"allowed_fields": sortedCopy(carFields)})
		}

		db, err := t.DB.Open(sess.StorageDSN)
		if err != nil {
			return dbUnavailable(err)
		}
		defer closeQuietly(db)

		exists, err := db.QueryOne(ctx, "SELECT 1 FROM cars WHERE id = ?", carID)
		if err != nil {
			return errResult(domain.CodeTxnFailed, fmt.Sprintf("Update failed: %v", err), nil)
		}
		if exists == nil {
			return errResult(domain.CodeNotFound, fmt.Sprintf("Car id %d not found.", carID), nil)
		}

		return t.applyCarPatch(ctx, db, carID, sanitized, patch)
	}

	q, fail := selectCarKey(args)
	if fail != nil {
		return fail
	}

	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	row, _, fail := t.lookupCar(ctx, db, q)
	if fail != nil {
		return fail
	}
	carID, _ := row.Int("id")

	delete(patch, q.key)
	if len(patch) == 0 {
		return errResult(domain.CodeInvalidInput, "patch must be a non-empty object.", nil)
	}
	sanitized := whitelistPatch(patch, carFields)
	if len(sanitized) == 0 {
		return errResult(domain.CodeInvalidInput, "No allowed fields to update.",
			map[string]any{"allowed_fields": sortedCopy(carFields)})
	}

	return t.applyCarPatch(ctx, db, carID, sanitized, patch)
}

func (t *Toolset) applyCarPatch(ctx context.Context, db *store.DB, carID int64, sanitized, patch map[string]any) *domain.ToolResult {
	updated, err := applyFieldUpdates(ctx, db, "cars", "id", carID, carFields, sanitized)
	if err != nil {
		if shared.IsUniqueViolation(err) && strings.Contains(strings.ToLower(err.Error()), "vin") {
			return errResult(domain.CodeConflictVIN, "VIN already exists.",
				map[string]any{"vin": patch["vin"]})
		}
		if shared.IsForeignKeyViolation(err) || shared.IsUniqueViolation(err) {
			return errResult(domain.CodePreconditionFailed, fmt.Sprintf("Integrity error: %v", err), nil)
		}
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Update failed: %v", err), nil)
	}

	msg := "No fields changed."
	if updated > 0 {
		msg = fmt.Sprintf("Car updated (%d fields).", updated)
	}
	return okResult(msg, map[string]any{"car_id": carID, "updated_fields": updated})
}

// AllCars returns the full inventory.
func (t *Toolset) AllCars(ctx context.Context, sess *domain.Session) *domain.ToolResult {
	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	rows, err := db.Query(ctx, "SELECT * FROM cars")
	if err != nil {
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Query failed: %v", err), nil)
	}
	cars := rowMaps(rows)
	return okResult(fmt.Sprintf("Retrieved %d car(s).", len(cars)),
		map[string]any{"cars": cars, "count": len(cars)})
}

func carSnapshot(ctx context.Context, db *store.DB, carID int64) map[string]any {
	row, err := db.QueryOne(ctx, "SELECT * FROM cars WHERE id = ?", carID)
	if err != nil || row == nil {
		return map[string]any{"id": carID}
	}
	return row.Map()
}

func carAddFailure(patch map[string]any, err error) *domain.ToolResult {
	slog.Error("car_add failed", "error", err)
	switch {
	case shared.IsForeignKeyViolation(err):
		return errResult(domain.CodePreconditionFailed, "Invalid reference (foreign key).",
			map[string]any{"lead_id": patch["lead_id"], "error": err.Error()})
	case shared.IsUniqueViolation(err):
		return errResult(domain.CodePreconditionFailed, fmt.Sprintf("Integrity error: %v", err),
			map[string]any{"error": err.Error()})
	case shared.IsNotNullViolation(err):
		return errResult(domain.CodeInvalidInput, fmt.Sprintf("Required field missing: %v", err),
			map[string]any{"error": err.Error()})
	default:
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Insert/upsert failed: %v", err),
			map[string]any{"error": err.Error()})
	}
}
