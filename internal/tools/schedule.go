package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/shared"
)

var (
	priorities       = map[string]bool{"Low": true, "Medium": true, "High": true}
	prioritiesSorted = []string{"High", "Low", "Medium"}
)

var scheduleTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04-07:00",
}

// BuyerAvailability returns every schedule row for the session's buyer,
// ordered by schedule_time. A missing buyer is distinct from a buyer
// with an empty schedule.
func (t *Toolset) BuyerAvailability(ctx context.Context, sess *domain.Session) *domain.ToolResult {
	buyerID, ok := intFrom(sess.BuyerID)
	if !ok {
		return errResult(domain.CodeInvalidInput, "buyer_id must be an integer.",
			map[string]any{"received": sess.BuyerID})
	}

	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	buyer, err := db.QueryOne(ctx, "SELECT 1 FROM buyers WHERE id = ?", buyerID)
	if err != nil {
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Lookup failed: %v", err), nil)
	}
	if buyer == nil {
		return errResult(domain.CodeNotFound, fmt.Sprintf("Buyer id %d not found.", buyerID), nil)
	}

	rows, err := db.Query(ctx, `SELECT id, buyer_id, description, schedule_time, priority
		FROM buyer_schedule
		WHERE buyer_id = ?
		ORDER BY schedule_time ASC`, buyerID)
	if err != nil {
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Lookup failed: %v", err), nil)
	}

	schedules := rowMaps(rows)
	msg := "No schedules found."
	if len(schedules) > 0 {
		msg = "Availability retrieved."
	}
	return okResult(msg, map[string]any{"buyer_id": buyerID, "schedules": schedules})
}

// AddBuyerSchedule books a slot for the session's buyer. An exact
// schedule_time collision for the same buyer is rejected rather than
// double-booked.
func (t *Toolset) AddBuyerSchedule(ctx context.Context, sess *domain.Session, patch map[string]any) *domain.ToolResult {
	buyerID, ok := intFrom(sess.BuyerID)
	if !ok {
		return errResult(domain.CodeInvalidInput, "buyer_id must be an integer.",
			map[string]any{"received": sess.BuyerID})
	}
	if len(patch) == 0 {
		return errResult(domain.CodeInvalidInput, "patch must be a non-empty object.", nil)
	}

	desc := strings.TrimSpace(stringFrom(patch["description"]))
	if desc == "" {
		return errResult(domain.CodeInvalidInput, "description is required.", nil)
	}

	priority := stringFrom(patch["priority"])
	if priority == "" {
		priority = "Medium"
	}
	priority = titleCase(strings.TrimSpace(priority))
	if !priorities[priority] {
		return errResult(domain.CodeInvalidInput,
			fmt.Sprintf("priority must be one of %v", prioritiesSorted),
			map[string]any{"received": patch["priority"]})
	}

	scheduleTime := normalizeDateTime(patch["schedule_time"])
	if scheduleTime == "" {
		return errResult(domain.CodeInvalidInput, "schedule_time is invalid.",
			map[string]any{"received": patch["schedule_time"]})
	}

	db, err := t.DB.Open(sess.StorageDSN)
	if err != nil {
		return dbUnavailable(err)
	}
	defer closeQuietly(db)

	buyer, err := db.QueryOne(ctx, "SELECT 1 FROM buyers WHERE id = ?", buyerID)
	if err != nil {
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Insert failed: %v", err), nil)
	}
	if buyer == nil {
		return errResult(domain.CodeNotFound, fmt.Sprintf("Buyer id %d not found.", buyerID), nil)
	}

	existing, err := db.QueryOne(ctx, `SELECT id, description, schedule_time, priority
		FROM buyer_schedule
		WHERE buyer_id = ? AND schedule_time = ?`, buyerID, scheduleTime)
	if err != nil {
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Insert failed: %v", err), nil)
	}
	if existing != nil {
		return errResult(domain.CodeTimeAlreadyBooked,
			fmt.Sprintf("The buyer is already booked at %s. Please choose another time.", scheduleTime),
			map[string]any{"existing_schedule": existing.Map(), "requested_time": scheduleTime})
	}

	scheduleID, err := db.InsertID(ctx, `INSERT INTO buyer_schedule (buyer_id, description, schedule_time, priority)
		VALUES (?, ?, ?, ?)`, "id", buyerID, desc, scheduleTime, priority)
	if err != nil {
		if shared.IsForeignKeyViolation(err) || strings.Contains(strings.ToLower(err.Error()), "integrity") {
			return errResult(domain.CodePreconditionFailed, "Invalid reference (foreign key).",
				map[string]any{"buyer_id": buyerID})
		}
		return errResult(domain.CodeTxnFailed, fmt.Sprintf("Insert failed: %v", err), nil)
	}

	row, err := db.QueryOne(ctx,
		"SELECT id, buyer_id, description, schedule_time, priority FROM buyer_schedule WHERE id = ?",
		scheduleID)
	if err != nil || row == nil {
		return okResult("Schedule added.", map[string]any{"schedule": map[string]any{"id": scheduleID}})
	}
	return okResult("Schedule added.", map[string]any{"schedule": row.Map()})
}

// normalizeDateTime canonicalizes schedule times to
// "2006-01-02 15:04:05". ISO-ish inputs are reformatted; anything
// unparseable passes through verbatim so the conflict check still
// compares like against like.
func normalizeDateTime(v any) string {
	s := strings.TrimSpace(stringFrom(v))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "T", " ")
	s = strings.TrimRight(s, "Z")

	trimmed := s
	if i := strings.Index(trimmed, "."); i >= 0 {
		trimmed = trimmed[:i]
	}
	for _, layout := range scheduleTimeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return s
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
