// Package tools implements the backend operations the planner can
// invoke: car and pickup records, buyer scheduling, drop-off location
// search, and escalation SMS.
package tools

import "strings"

type catalogEntry struct {
	name        string
	args        []string
	description string
}

// Catalog order matters: it is the order the planner sees the tools in.
var catalogEntries = []catalogEntry{
	{
		name:        "get_buyer_availability",
		description: "Return all schedule rows for a buyer, ordered by schedule_time.",
	},
	{
		name:        "add_buyer_schedule",
		args:        []string{"description", "schedule_time", "priority"},
		description: "Schedule a meeting or appointment for a buyer. Use this when a user wants to schedule, book, or set up a meeting/appointment. Requires description and schedule_time. The system will automatically check if the time is already booked and reject duplicate bookings.",
	},
	{
		name:        "car_retrieve",
		args:        []string{"car_id", "vin", "model", "make", "year"},
		description: "Get car details. Provide any of: car_id, vin, model, make, year.",
	},
	{
		name:        "car_update",
		args:        []string{"car_id", "vin", "year", "make", "model", "trim", "mileage", "interior_condition", "exterior_condition", "seller_ask_cents", "created_at", "lead_id"},
		description: "Update a car by ID; supply only fields you want to change. You can update seller_ask_cents (what the customer wants to sell for), but you CANNOT set buyer_offer_cents (GMTV's offer - only employees can set that).",
	},
	{
		name:        "car_add",
		args:        []string{"vin", "year", "make", "model", "trim", "mileage", "interior_condition", "exterior_condition", "seller_ask_cents", "created_at", "lead_id"},
		description: "Create a new car listing in the database. Use this when a user wants to sell a car or is providing car information for a new listing (upserts by VIN if present). You can set seller_ask_cents (what the customer wants to sell for), but you CANNOT set buyer_offer_cents (GMTV's offer - only employees can set that).",
	},
	{
		name:        "get_all_cars",
		description: "Retrieve all cars from the database. Returns all car records with all their details.",
	},
	{
		name:        "pickup_retrieve",
		args:        []string{"pick_up_id", "car_id", "vin", "model", "make", "year"},
		description: "Get details of an existing pickup by ID, or by identifying its car (car_id, vin, model, make, year).",
	},
	{
		name:        "pickup_update",
		args:        []string{"pick_up_id", "car_id", "address", "contact_phone", "pick_up_info", "created_at", "dropoff_time"},
		description: "Update a pickup by ID; supply only fields you want to change.",
	},
	{
		name:        "pickup_add",
		args:        []string{"car_id", "address", "contact_phone", "pick_up_info", "created_at", "dropoff_time"},
		description: "Create a new pickup request.",
	},
	{
		name:        "get_all_pickups",
		description: "Retrieve all pickups from the database. Returns all pickup records with all their details.",
	},
	{
		name:        "get_closest",
		args:        []string{"user_address", "state"},
		description: "Find nearest drop-off to the user-provided address (state = 2-letter).",
	},
	{
		name:        "send_escalate_message",
		args:        []string{"message_text"},
		description: "Urgent internal SMS to escalation phone number (RingCentral-backed). Use this when a user is frustrated, angry, or needs immediate human intervention.",
	},
}

var knownNames = func() map[string]bool {
	m := make(map[string]bool, len(catalogEntries))
	for _, e := range catalogEntries {
		m[e.name] = true
	}
	return m
}()

// Catalog renders the tool list for the planner prompt.
func Catalog() string {
	var b strings.Builder
	for i, e := range catalogEntries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(e.name)
		if len(e.args) > 0 {
			b.WriteString(" (args: ")
			b.WriteString(strings.Join(e.args, ", "))
			b.WriteString(")")
		}
		b.WriteString(": ")
		b.WriteString(e.description)
	}
	return b.String()
}

// Names returns the allowed tool names in catalog order.
func Names() []string {
	names := make([]string, len(catalogEntries))
	for i, e := range catalogEntries {
		names[i] = e.name
	}
	return names
}

// Known reports whether name is one of the allowed tools.
func Known(name string) bool { return knownNames[name] }
