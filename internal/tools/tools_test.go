package tools

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/geo"
	"github.com/jsamit27/ava/internal/store"
)

type stubGeo struct {
	match *geo.Match
	err   error
}

func (s stubGeo) Closest(ctx context.Context, userAddress, state string) (*geo.Match, error) {
	return s.match, s.err
}

type stubSMS struct {
	to   string
	text string
	err  error
}

func (s *stubSMS) Send(ctx context.Context, receiverNumber, messageText string) error {
	s.to = receiverNumber
	s.text = messageText
	return s.err
}

type countingOpener struct {
	opens int
}

func (c *countingOpener) Open(dsn string) (*store.DB, error) {
	c.opens++
	return store.Open(dsn)
}

func newTestToolset(t *testing.T) (*Toolset, *domain.Session) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ava.db")
	db, err := store.Open(dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	seed := []struct {
		query string
		args  []any
	}{
		{"INSERT INTO leads (id, first_name, last_name, phone, email) VALUES (?, ?, ?, ?, ?)",
			[]any{7, "Dana", "Mills", "+15550142", "dana@example.com"}},
		{"INSERT INTO buyers (id, first_name, last_name, phone_number) VALUES (?, ?, ?, ?)",
			[]any{1, "Gabe", "Torres", "+15550107"}},
		{"INSERT INTO cars (id, vin, year, make, model, trim, mileage, seller_ask_cents, lead_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			[]any{1, "1HGCM82633A004352", 2018, "Honda", "Accord", "EX", 82000, 1450000, 7}},
		{"INSERT INTO cars (id, vin, year, make, model, mileage, lead_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
			[]any{2, "5YJ3E1EA7KF317000", 2021, "Tesla", "Model 3", 30500, 7}},
		{"INSERT INTO cars (id, vin, year, make, model, mileage, lead_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
			[]any{3, "5YJ3E1EA7KF317001", 2022, "Tesla", "Model 3", 12000, 7}},
		{"INSERT INTO pickup (pick_up_id, car_id, address, contact_phone) VALUES (?, ?, ?, ?)",
			[]any{1, 1, "12 Oak St, Austin, TX", "+15550142"}},
		{"INSERT INTO pickup (pick_up_id, car_id, address, contact_phone) VALUES (?, ?, ?, ?)",
			[]any{2, 2, "88 Pine Ave, Dallas, TX", "+15550142"}},
		{"INSERT INTO pickup (pick_up_id, car_id, address, contact_phone) VALUES (?, ?, ?, ?)",
			[]any{3, 2, "90 Pine Ave, Dallas, TX", "+15550142"}},
	}
	for _, s := range seed {
		if _, err := db.Exec(context.Background(), s.query, s.args...); err != nil {
			t.Fatalf("Failed to seed test data: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close seed connection: %v", err)
	}

	ts := &Toolset{
		DB:  store.OpenerFunc(store.Open),
		Geo: stubGeo{},
		SMS: &stubSMS{},
	}
	sess := &domain.Session{
		SessionID:       "test-session",
		LeadID:          "7",
		BuyerID:         "1",
		EscalationPhone: "+15550100",
		StorageDSN:      dsn,
	}
	return ts, sess
}

func TestDispatchRejectsBuyerOfferWithoutOpeningDB(t *testing.T) {
	opener := &countingOpener{}
	ts := &Toolset{DB: opener, Geo: stubGeo{}, SMS: &stubSMS{}}
	sess := &domain.Session{StorageDSN: "unused.db"}

	for _, name := range []string{"car_add", "car_update"} {
		res := ts.Dispatch(context.Background(), sess, name, map[string]any{
			"car_id": 1, "buyer_offer_cents": 990000,
		})
		if res.Code != domain.CodeForbidden {
			t.Errorf("%s: Expected code FORBIDDEN, got %q", name, res.Code)
		}
		if res.Message != "Ava cannot set buyer_offer_cents. Only GMTV employees can set the company's offer." {
			t.Errorf("%s: unexpected message %q", name, res.Message)
		}
	}
	if opener.opens != 0 {
		t.Errorf("Expected no database opens for forbidden plans, got %d", opener.opens)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	ts := &Toolset{DB: &countingOpener{}, Geo: stubGeo{}, SMS: &stubSMS{}}
	res := ts.Dispatch(context.Background(), &domain.Session{}, "bogus", nil)
	if res.Status != domain.StatusError {
		t.Errorf("Expected status error, got %q", res.Status)
	}
	if res.Message != "Unknown tool 'bogus'." {
		t.Errorf("Expected unknown tool message, got %q", res.Message)
	}
}

func TestCarRetrieveByID(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarRetrieve(context.Background(), sess, map[string]any{"car_id": 1})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	car, ok := res.Data["car"].(map[string]any)
	if !ok {
		t.Fatalf("Expected car object in data, got %T", res.Data["car"])
	}
	if car["vin"] != "1HGCM82633A004352" {
		t.Errorf("Expected VIN 1HGCM82633A004352, got %v", car["vin"])
	}
	if res.Data["selected_key"] != "car_id" {
		t.Errorf("Expected selected_key car_id, got %v", res.Data["selected_key"])
	}
}

func TestCarRetrievePriorityIgnoresLowerKeys(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarRetrieve(context.Background(), sess, map[string]any{
		"car_id": 2, "make": "Honda",
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	car := res.Data["car"].(map[string]any)
	if car["make"] != "Tesla" {
		t.Errorf("Expected car_id to win over make, got make %v", car["make"])
	}
	ignored, ok := res.Data["ignored_keys"].([]string)
	if !ok || len(ignored) != 1 || ignored[0] != "make" {
		t.Errorf("Expected ignored_keys [make], got %v", res.Data["ignored_keys"])
	}
}

func TestCarRetrieveCaseInsensitiveModel(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarRetrieve(context.Background(), sess, map[string]any{"model": "accord"})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	car := res.Data["car"].(map[string]any)
	if car["model"] != "Accord" {
		t.Errorf("Expected Accord, got %v", car["model"])
	}
}

func TestCarRetrieveAmbiguous(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarRetrieve(context.Background(), sess, map[string]any{"make": "Tesla"})
	if res.Status != domain.StatusUnsure {
		t.Fatalf("Expected status unsure, got %q (%s)", res.Status, res.Message)
	}
	if res.Code != domain.CodeAmbiguous {
		t.Errorf("Expected code AMBIGUOUS, got %q", res.Code)
	}
	if res.Message != "Multiple cars match—refine with VIN or car_id." {
		t.Errorf("Unexpected message %q", res.Message)
	}
	candidates, ok := res.Data["candidates"].([]map[string]any)
	if !ok || len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %v", res.Data["candidates"])
	}
}

func TestCarRetrieveValidation(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarRetrieve(context.Background(), sess, map[string]any{})
	if res.Code != domain.CodeInvalidInput || res.Message != "Provide car_id, vin, model, make, or year." {
		t.Errorf("Expected missing identifier error, got %q / %q", res.Code, res.Message)
	}

	res = ts.CarRetrieve(context.Background(), sess, map[string]any{"car_id": "abc"})
	if res.Code != domain.CodeInvalidInput || res.Message != "car_id must be an integer." {
		t.Errorf("Expected integer validation error, got %q / %q", res.Code, res.Message)
	}

	res = ts.CarRetrieve(context.Background(), sess, map[string]any{"vin": "NOPE123"})
	if res.Code != domain.CodeNotFound || res.Message != "No matching car found." {
		t.Errorf("Expected not found, got %q / %q", res.Code, res.Message)
	}
}

func TestCarAddAssignsNegativeIDs(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarAdd(context.Background(), sess, map[string]any{
		"vin": "JL1993XKCD000001", "year": 2015, "make": "Subaru", "model": "Outback", "lead_id": 7,
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	car := res.Data["car"].(map[string]any)
	if id, _ := car["id"].(int64); id != -1 {
		t.Errorf("Expected first chat-created car to take id -1, got %v", car["id"])
	}

	res = ts.CarAdd(context.Background(), sess, map[string]any{
		"vin": "JL1993XKCD000002", "year": 2016, "make": "Subaru", "model": "Forester", "lead_id": 7,
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	car = res.Data["car"].(map[string]any)
	if id, _ := car["id"].(int64); id != -2 {
		t.Errorf("Expected second chat-created car to take id -2, got %v", car["id"])
	}
}

func TestCarAddUpsertsOnExistingVIN(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarAdd(context.Background(), sess, map[string]any{
		"vin": " 1HGCM82633A004352 ", "mileage": 90000,
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	if res.Message != "Car upserted (existing VIN updated)." {
		t.Errorf("Unexpected message %q", res.Message)
	}
	car := res.Data["car"].(map[string]any)
	if id, _ := car["id"].(int64); id != 1 {
		t.Errorf("Expected upsert to keep id 1, got %v", car["id"])
	}
	if mileage, _ := car["mileage"].(int64); mileage != 90000 {
		t.Errorf("Expected mileage 90000 after upsert, got %v", car["mileage"])
	}
}

func TestCarAddInjectsLeadID(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.Dispatch(context.Background(), sess, "car_add", map[string]any{
		"vin": "JL1993XKCD000003", "year": 2019, "make": "Mazda", "model": "CX-5",
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	car := res.Data["car"].(map[string]any)
	if leadID, _ := car["lead_id"].(int64); leadID != 7 {
		t.Errorf("Expected injected lead_id 7, got %v", car["lead_id"])
	}
}

func TestCarUpdateByID(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarUpdate(context.Background(), sess, map[string]any{
		"car_id": 1, "mileage": 60000,
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	if updated, _ := res.Data["updated_fields"].(int64); updated != 1 {
		t.Errorf("Expected 1 updated field, got %v", res.Data["updated_fields"])
	}

	check := ts.CarRetrieve(context.Background(), sess, map[string]any{"car_id": 1})
	car := check.Data["car"].(map[string]any)
	if mileage, _ := car["mileage"].(int64); mileage != 60000 {
		t.Errorf("Expected mileage 60000 after update, got %v", car["mileage"])
	}
}

func TestCarUpdateUnknownID(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarUpdate(context.Background(), sess, map[string]any{
		"car_id": 999, "mileage": 60000,
	})
	if res.Code != domain.CodeNotFound {
		t.Errorf("Expected code NOT_FOUND, got %q", res.Code)
	}
	if res.Message != "Car id 999 not found." {
		t.Errorf("Unexpected message %q", res.Message)
	}
}

func TestCarUpdateRejectsEmptyPatch(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarUpdate(context.Background(), sess, map[string]any{"car_id": 1})
	if res.Code != domain.CodeInvalidInput || res.Message != "patch must be a non-empty object." {
		t.Errorf("Expected empty patch error, got %q / %q", res.Code, res.Message)
	}

	res = ts.CarUpdate(context.Background(), sess, map[string]any{"car_id": 1, "favorite_color": "red"})
	if res.Code != domain.CodeInvalidInput || res.Message != "No allowed fields to update." {
		t.Errorf("Expected whitelist error, got %q / %q", res.Code, res.Message)
	}
}

func TestCarUpdateThroughIdentifierChain(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarUpdate(context.Background(), sess, map[string]any{
		"vin": "1HGCM82633A004352", "trim": "Touring",
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}

	check := ts.CarRetrieve(context.Background(), sess, map[string]any{"car_id": 1})
	car := check.Data["car"].(map[string]any)
	if car["trim"] != "Touring" {
		t.Errorf("Expected trim Touring, got %v", car["trim"])
	}
	if car["vin"] != "1HGCM82633A004352" {
		t.Errorf("Resolver key must not be written back, vin now %v", car["vin"])
	}
}

func TestCarUpdateDuplicateVIN(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.CarUpdate(context.Background(), sess, map[string]any{
		"car_id": 1, "vin": "5YJ3E1EA7KF317000",
	})
	if res.Code != domain.CodeConflictVIN {
		t.Fatalf("Expected code CONFLICT_VIN, got %q (%s)", res.Code, res.Message)
	}
	if res.Message != "VIN already exists." {
		t.Errorf("Unexpected message %q", res.Message)
	}

	// the failed patch must not leave partial writes behind
	check := ts.CarRetrieve(context.Background(), sess, map[string]any{"car_id": 1})
	car := check.Data["car"].(map[string]any)
	if car["vin"] != "1HGCM82633A004352" {
		t.Errorf("Expected original VIN after rollback, got %v", car["vin"])
	}
}

func TestCarUpdateRollsBackWholePatch(t *testing.T) {
	ts, sess := newTestToolset(t)

	// mileage precedes lead_id in the field order, so it is written
	// first and must be rolled back when the lead_id write fails
	res := ts.CarUpdate(context.Background(), sess, map[string]any{
		"car_id": 1, "mileage": 11111, "lead_id": 999,
	})
	if res.Code != domain.CodePreconditionFailed {
		t.Fatalf("Expected code PRECONDITION_FAILED, got %q (%s)", res.Code, res.Message)
	}

	check := ts.CarRetrieve(context.Background(), sess, map[string]any{"car_id": 1})
	car := check.Data["car"].(map[string]any)
	if mileage, _ := car["mileage"].(int64); mileage != 82000 {
		t.Errorf("Expected mileage 82000 after rollback, got %v", car["mileage"])
	}
}

func TestAllCars(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.AllCars(context.Background(), sess)
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	if count, _ := res.Data["count"].(int); count != 3 {
		t.Errorf("Expected 3 cars, got %v", res.Data["count"])
	}
	if res.Message != "Retrieved 3 car(s)." {
		t.Errorf("Unexpected message %q", res.Message)
	}
}

func TestPickupRetrieveByID(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.PickupRetrieve(context.Background(), sess, map[string]any{"pick_up_id": 1})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	pickup := res.Data["pickup"].(map[string]any)
	if pickup["address"] != "12 Oak St, Austin, TX" {
		t.Errorf("Unexpected address %v", pickup["address"])
	}

	res = ts.PickupRetrieve(context.Background(), sess, map[string]any{"pick_up_id": 99})
	if res.Code != domain.CodeNotFound || res.Message != "Pickup not found." {
		t.Errorf("Expected not found, got %q / %q", res.Code, res.Message)
	}
}

func TestPickupRetrieveThroughCar(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.PickupRetrieve(context.Background(), sess, map[string]any{"vin": "1HGCM82633A004352"})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	pickup := res.Data["pickup"].(map[string]any)
	if id, _ := pickup["pick_up_id"].(int64); id != 1 {
		t.Errorf("Expected pickup 1, got %v", pickup["pick_up_id"])
	}
}

func TestPickupRetrieveAmbiguousCar(t *testing.T) {
	ts, sess := newTestToolset(t)

	// car 2 has two pickups scheduled
	res := ts.PickupRetrieve(context.Background(), sess, map[string]any{"car_id": 2})
	if res.Status != domain.StatusUnsure || res.Code != domain.CodeAmbiguous {
		t.Fatalf("Expected unsure/AMBIGUOUS, got %q/%q (%s)", res.Status, res.Code, res.Message)
	}
	if res.Message != "Multiple pickups match—refine with pick_up_id." {
		t.Errorf("Unexpected message %q", res.Message)
	}
}

func TestPickupRetrieveValidation(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.PickupRetrieve(context.Background(), sess, map[string]any{})
	if res.Message != "Provide pick_up_id, car_id, vin, model, make, or year." {
		t.Errorf("Expected pickup identifier message, got %q", res.Message)
	}
}

func TestPickupAdd(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.PickupAdd(context.Background(), sess, map[string]any{
		"car_id": 3, "address": "500 Elm St, Houston, TX", "dropoff_time": "2025-04-01 09:00:00",
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	pickup := res.Data["pickup"].(map[string]any)
	if id, _ := pickup["pick_up_id"].(int64); id != -1 {
		t.Errorf("Expected chat-created pickup id -1, got %v", pickup["pick_up_id"])
	}

	res = ts.PickupAdd(context.Background(), sess, map[string]any{
		"car_id": 999, "address": "nowhere",
	})
	if res.Code != domain.CodePreconditionFailed || res.Message != "Invalid car_id (no such car)." {
		t.Errorf("Expected precondition failure, got %q / %q", res.Code, res.Message)
	}
}

func TestPickupUpdateByID(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.PickupUpdate(context.Background(), sess, map[string]any{
		"pick_up_id": 1, "contact_phone": "+15550199",
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}

	res = ts.PickupUpdate(context.Background(), sess, map[string]any{
		"pick_up_id": 42, "contact_phone": "+15550199",
	})
	if res.Code != domain.CodeNotFound || res.Message != "Pickup id 42 not found." {
		t.Errorf("Expected not found, got %q / %q", res.Code, res.Message)
	}
}

func TestPickupUpdateThroughCarChain(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.PickupUpdate(context.Background(), sess, map[string]any{
		"model": "Accord", "pick_up_info": "gate code 4411",
	})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}

	check := ts.PickupRetrieve(context.Background(), sess, map[string]any{"pick_up_id": 1})
	pickup := check.Data["pickup"].(map[string]any)
	if pickup["pick_up_info"] != "gate code 4411" {
		t.Errorf("Expected pick_up_info to update, got %v", pickup["pick_up_info"])
	}
}

func TestAllPickups(t *testing.T) {
	ts, sess := newTestToolset(t)

	res := ts.AllPickups(context.Background(), sess)
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	if res.Message != "Retrieved 3 pickup(s)." {
		t.Errorf("Unexpected message %q", res.Message)
	}
}

func TestClosestDelegatesToFinder(t *testing.T) {
	ts := &Toolset{DB: &countingOpener{}, SMS: &stubSMS{}, Geo: stubGeo{match: &geo.Match{
		Address:       "100 Main St, Austin",
		State:         "TX",
		DistanceMiles: 12.5,
		Layer:         "in_state",
	}}}

	res := ts.Closest(context.Background(), map[string]any{"user_address": "12 Oak St", "state": "TX"})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	if res.Data["address"] != "100 Main St, Austin" {
		t.Errorf("Unexpected address %v", res.Data["address"])
	}

	ts.Geo = stubGeo{err: errors.New("no locations directory")}
	res = ts.Closest(context.Background(), map[string]any{"user_address": "12 Oak St"})
	if res.Status != domain.StatusError || res.Message != "No nearby locations found." {
		t.Errorf("Expected no-locations error, got %q / %q", res.Status, res.Message)
	}
}

func TestEscalateSendsToSessionNumber(t *testing.T) {
	sms := &stubSMS{}
	ts := &Toolset{DB: &countingOpener{}, Geo: stubGeo{}, SMS: sms}
	sess := &domain.Session{EscalationPhone: "+15550100"}

	res := ts.Escalate(context.Background(), sess, map[string]any{"message_text": "Customer needs a human"})
	if !res.OK() {
		t.Fatalf("Expected success, got %q (%s)", res.Status, res.Message)
	}
	if sms.to != "+15550100" {
		t.Errorf("Expected SMS to session escalation number, got %q", sms.to)
	}
	if sms.text != "Customer needs a human" {
		t.Errorf("Unexpected SMS text %q", sms.text)
	}

	sms.err = errors.New("no sms-capable number")
	res = ts.Escalate(context.Background(), sess, map[string]any{"message_text": "again"})
	if res.Status != domain.StatusError || res.Message != "Failed to send: no sms-capable number" {
		t.Errorf("Expected send failure, got %q / %q", res.Status, res.Message)
	}
}
