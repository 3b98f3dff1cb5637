package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/geo"
	"github.com/jsamit27/ava/internal/store"
)

// ClosestFinder locates the nearest drop-off point for an address.
type ClosestFinder interface {
	Closest(ctx context.Context, userAddress, state string) (*geo.Match, error)
}

// Escalator delivers urgent internal SMS messages.
type Escalator interface {
	Send(ctx context.Context, receiverNumber, messageText string) error
}

// Toolset holds the collaborators the operations need. Database handles
// are opened per call from the session's storage descriptor and always
// closed before returning.
type Toolset struct {
	DB  store.Opener
	Geo ClosestFinder
	SMS Escalator
}

// New creates a Toolset backed by real connections.
func New(geoFinder ClosestFinder, sms Escalator) *Toolset {
	return &Toolset{
		DB:  store.OpenerFunc(store.Open),
		Geo: geoFinder,
		SMS: sms,
	}
}

// Dispatch maps a validated tool plan onto exactly one operation,
// injecting the session-owned values the model is forbidden to supply.
// Mutations that try to set the company's offer are rejected before any
// storage is touched.
func (t *Toolset) Dispatch(ctx context.Context, sess *domain.Session, name string, args map[string]any) *domain.ToolResult {
	switch name {
	case "car_retrieve":
		return t.CarRetrieve(ctx, sess, args)

	case "car_add":
		if _, found := args["buyer_offer_cents"]; found {
			return forbiddenOffer()
		}
		patch := clonePatch(args)
		if _, found := patch["lead_id"]; !found {
			patch["lead_id"] = leadValue(sess.LeadID)
		}
		return t.CarAdd(ctx, sess, patch)

	case "car_update":
		if _, found := args["buyer_offer_cents"]; found {
			return forbiddenOffer()
		}
		return t.CarUpdate(ctx, sess, args)

	case "get_all_cars":
		return t.AllCars(ctx, sess)

	case "get_buyer_availability":
		return t.BuyerAvailability(ctx, sess)

	case "add_buyer_schedule":
		return t.AddBuyerSchedule(ctx, sess, args)

	case "pickup_retrieve":
		return t.PickupRetrieve(ctx, sess, args)

	case "pickup_add":
		return t.PickupAdd(ctx, sess, args)

	case "pickup_update":
		return t.PickupUpdate(ctx, sess, args)

	case "get_all_pickups":
		return t.AllPickups(ctx, sess)

	case "get_closest":
		return t.Closest(ctx, args)

	case "send_escalate_message":
		return t.Escalate(ctx, sess, args)

	default:
		// unreachable after validation, handled anyway
		return &domain.ToolResult{Status: domain.StatusError, Message: fmt.Sprintf("Unknown tool '%s'.", name)}
	}
}

// Closest finds the nearest drop-off location to the user's address.
func (t *Toolset) Closest(ctx context.Context, args map[string]any) *domain.ToolResult {
	address := stringFrom(args["user_address"])
	state := stringFrom(args["state"])

	match, err := t.Geo.Closest(ctx, address, state)
	if err != nil {
		slog.Warn("drop-off search failed", "state", state, "error", err)
	}
	if err != nil || match == nil {
		return &domain.ToolResult{Status: domain.StatusError, Message: "No nearby locations found."}
	}
	return &domain.ToolResult{
		Status:  domain.StatusSuccess,
		Message: "Closest drop-off found.",
		Data:    match.Map(),
	}
}

// Escalate sends an urgent SMS to the session's escalation number.
func (t *Toolset) Escalate(ctx context.Context, sess *domain.Session, args map[string]any) *domain.ToolResult {
	text := stringFrom(args["message_text"])
	if err := t.SMS.Send(ctx, sess.EscalationPhone, text); err != nil {
		return &domain.ToolResult{Status: domain.StatusError, Message: fmt.Sprintf("Failed to send: %v", err)}
	}
	return &domain.ToolResult{Status: domain.StatusSuccess, Message: "Escalation SMS sent."}
}

func forbiddenOffer() *domain.ToolResult {
	return &domain.ToolResult{
		Status:  domain.StatusError,
		Code:    domain.CodeForbidden,
		Message: "Ava cannot set buyer_offer_cents. Only GMTV employees can set the company's offer.",
	}
}

func errResult(code, message string, data map[string]any) *domain.ToolResult {
	return &domain.ToolResult{Status: domain.StatusError, Code: code, Message: message, Data: data}
}

func okResult(message string, data map[string]any) *domain.ToolResult {
	return &domain.ToolResult{Status: domain.StatusSuccess, Message: message, Data: data}
}

func dbUnavailable(err error) *domain.ToolResult {
	return errResult(domain.CodeDBUnavailable, fmt.Sprintf("Could not open database: %v", err), nil)
}

func closeQuietly(db *store.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// intFrom converts the values JSON decoding produces into an int64.
// Numeric strings are accepted, anything else is rejected.
func intFrom(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func stringFrom(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// leadValue converts an all-digit lead id into a number so it binds to
// the integer column; anything else passes through untouched.
func leadValue(s string) any {
	if s == "" {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return n
}

func clonePatch(args map[string]any) map[string]any {
	patch := make(map[string]any, len(args))
	for k, v := range args {
		patch[k] = v
	}
	return patch
}

// dropNulls removes null-valued fields so they are never written as
// column values.
func dropNulls(patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(patch, k)
		}
	}
}

func rowMaps(rows []store.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i := range rows {
		out[i] = rows[i].Map()
	}
	return out
}
