package tools

import (
	"context"
	"fmt"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/shared"
	"github.com/jsamit27/ava/internal/store"
)

// PickupRetrieve returns one pickup, addressed directly by pick_up_id
// or indirectly through the car it belongs to.
func (t *Toolset) PickupRetrieve(ctx context.Context, sess *domain.Session, args map[string]any) *domain.ToolResult {
	if _, direct := args["pick_up_id"]; direct {
		id, ok := intFrom(args["pick_up_id"])
		if !ok {
			return errResult(domain.CodeInvalidInput, "pick_up_id must be an integer.",
				map[string]any{"received": args["pick_up_id"]})
		}

		db, err := t.DB.Open(sess.StorageDSN)
		if err != nil {
			return dbUnavailable(err)
		}
		defer closeQuietly(db)

		row, err := db.QueryOne(ctx, "SELECT * FROM pickup WHERE pick_up_id = ?", id)
		if err != nil {
			return errResult(domain.CodeTxnFailed, fmt.Sprintf("Lookup failed: %v", err), nil)
		}
		if row == nil {
			return errResult(domain.CodeNotFound, "Pickup not found.",
				map[string]any{"pick_up_id": id})
		}
		return okResult("Pickup retrieved.", map[string]any{"pickup": row.Map()})
	}

	q, fail := selectIdentifier(args, pickupMissingMsg)
	if fail != nil {
		return fail
	}

	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	row, fail := t.resolvePickup(ctx, db, q)
	if fail != nil {
		return fail
	}
	return okResult("Pickup retrieved.", map[string]any{"pickup": row.Map()})
}

// PickupAdd schedules a new pickup. When a car_id is supplied the car
// must already exist; the row takes an id from the negative range.
func (t *Toolset) PickupAdd(ctx context.Context, sess *domain.Session, args map[string]any) *domain.ToolResult {
	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	var carID any
	if raw, ok := args["car_id"]; ok && raw != nil {
		n, ok := intFrom(raw)
		if !ok {
			return errResult(domain.CodeInvalidInput, "car_id must be an integer.",
				map[string]any{"received": raw})
		}
		exists, err := db.QueryOne(ctx, "SELECT 1 FROM cars WHERE id = ?", n)
		if err != nil {
			return errResult(domain.CodeTxnFailed, fmt.Sprintf("Insert failed: %v", err), nil)
		}
		if exists == nil {
			return errResult(domain.CodePreconditionFailed, "Invalid car_id (no such car).",
				map[string]any{"car_id": n})
		}
		carID = n
	}

	tempID, err := nextTempID(ctx, db, "SELECT MIN(pick_up_id) AS min_id FROM pickup")
	if err != nil {
		return pickupAddFailure(args, err)
	}

	_, err = db.Exec(ctx, `INSERT INTO pickup (
			pick_up_id, car_id, address, contact_phone, pick_up_info, created_at, dropoff_time
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tempID, carID, args["address"], args["contact_phone"],
		args["pick_up_info"], args["created_at"], args["dropoff_time"])
	if err != nil {
		return pickupAddFailure(args, err)
	}

	return okResult("Pickup added.", map[string]any{"pickup": pickupSnapshot(ctx, db, tempID)})
}

// PickupUpdate patches one pickup, addressed directly by pick_up_id or
// through the car chain. The resolving field never writes back.
func (t *Toolset) PickupUpdate(ctx context.Context, sess *domain.Session, args map[string]any) *domain.ToolResult {
	patch := clonePatch(args)
	dropNulls(patch)

	if _, direct := args["pick_up_id"]; direct {
		delete(patch, "pick_up_id")
		if len(patch) == 0 {
			return errResult(domain.CodeInvalidInput, "patch must be a non-empty object.", nil)
		}
		id, ok := intFrom(args["pick_up_id"])
		if !ok {
			return errResult(domain.CodeInvalidInput, "pick_up_id must be an integer.",
				map[string]any{"received": args["pick_up_id"]})
		}

		sanitized := whitelistPatch(patch, pickupFields)
		if len(sanitized) == 0 {
			return errResult(domain.CodeInvalidInput, "No allowed fields to update.",
				map[string]any{"allowed_fields": sortedCopy(pickupFields)})
		}

		db, err := t.DB.Open(sess.StorageDSN)
		if err != nil {
			return dbUnavailable(err)
		}
		defer closeQuietly(db)

		exists, err := db.QueryOne(ctx, "SELECT 1 FROM pickup WHERE pick_up_id = ?", id)
		if err != nil {
			return errResult(domain.CodeTxnFailed, fmt.Sprintf("Update failed: %v", err), nil)
		}
		if exists == nil {
			return errResult(domain.CodeNotFound, fmt.Sprintf("Pickup id %d not found.", id), nil)
		}

		return t.applyPickupPatch(ctx, db, id, sanitized, patch)
	}

	q, fail := selectIdentifier(args, pickupMissingMsg)
	if fail != nil {
		return fail
	}

	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	row, fail := t.resolvePickup(ctx, db, q)
	if fail != nil {
		return fail
	}
	id, _ := row.Int("pick_up_id")

	delete(patch, q.key)
	if len(patch) == 0 {
		return errResult(domain.CodeInvalidInput, "patch must be a non-empty object.", nil)
	}
	sanitized := whitelistPatch(patch, pickupFields)
	if len(sanitized) == 0 {
		return errResult(domain.CodeInvalidInput, "No allowed fields to update.",
			map[string]any{"allowed_fields": sortedCopy(pickupFields)})
	}

	return t.applyPickupPatch(ctx, db, id, sanitized, patch)
}

func (t *Toolset) applyPickupPatch(ctx context.Context, db *store.DB, pickupID int64, sanitized, patch map[string]any) *domain.ToolResult {
	updated, err := applyFieldUpdates(ctx, db, "pickup", "pick_up_id", pickupID, pickupFields, sanitized)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return errResult(domain.CodePreconditionFailed, "Invalid reference (foreign key).",
				map[string]any{"car_id": patch["car_id"]})
		}
		if shared.IsUniqueViolation(err) {
			return errResult(domain.CodePreconditionFailed, fmt.Sprintf("Integrity error: %v", err), nil)
		}
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Update failed: %v", err), nil)
	}

	msg := "No fields changed."
	if updated > 0 {
		msg = fmt.Sprintf("Pickup updated (%d fields).", updated)
	}
	return okResult(msg, map[string]any{"pick_up_id": pickupID, "updated_fields": updated})
}

// AllPickups returns every scheduled pickup.
func (t *Toolset) AllPickups(ctx context.Context, sess *domain.Session) *domain.ToolResult {
	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	rows, err := db.Query(ctx, "SELECT * FROM pickup")
	if err != nil {
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Query failed: %v", err), nil)
	}
	pickups := rowMaps(rows)
	return okResult(fmt.Sprintf("Retrieved %d pickup(s).", len(pickups)),
		map[string]any{"pickups": pickups, "count": len(pickups)})
}

func pickupSnapshot(ctx context.Context, db *store.DB, pickupID int64) map[string]any {
	row, err := db.QueryOne(ctx, "SELECT * FROM pickup WHERE pick_up_id = ?", pickupID)
	if err != nil || row == nil {
		return map[string]any{"pick_up_id": pickupID}
	}
	return row.Map()
}

func pickupAddFailure(args map[string]any, err error) *domain.ToolResult {
	if shared.IsForeignKeyViolation(err) {
		return errResult(domain.CodePreconditionFailed, "Invalid reference (foreign key).",
			map[string]any{"car_id": args["car_id"]})
	}
	if shared.IsUniqueViolation(err) {
		return errResult(domain.CodePreconditionFailed, fmt.Sprintf("Integrity error: %v", err), nil)
	}
	return errResult(domain.CodeTxnFailed, fmt.Sprintf("Insert failed: %v", err), nil)
}
