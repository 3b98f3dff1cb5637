// Package geo locates the closest vehicle drop-off point to a seller's
// address. The search walks outward: the seller's own state first, then
// its bordering states, and nationally only when nothing closer than
// the mileage threshold exists.
package geo

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Match layers.
const (
	LayerInState  = "in_state"
	LayerNeighbor = "neighbor"
	LayerNational = "national"
)

const defaultMaxMiles = 100.0

// Match is the selected drop-off location with the driving distance
// from the seller's address.
type Match struct {
	Address           string
	DurationText      string
	State             string
	StateCSV          string
	DistanceMiles     float64
	Layer             string
	NeighborsChecked  []string
	ThresholdExceeded bool
}

// Map renders the match in the wire shape tool results carry.
func (m *Match) Map() map[string]any {
	return map[string]any{
		"address":            m.Address,
		"duration_text":      m.DurationText,
		"state":              m.State,
		"state_csv":          m.StateCSV,
		"distance_miles":     m.DistanceMiles,
		"layer":              m.Layer,
		"neighbors_checked":  m.NeighborsChecked,
		"threshold_exceeded": m.ThresholdExceeded,
	}
}

// Finder answers closest-location queries from per-state CSV files and
// the Google Distance Matrix API.
type Finder struct {
	APIKey    string
	Dir       string
	MaxMiles  float64
	MatrixURL string
	Client    *http.Client
}

// NewFinder creates a Finder reading location CSVs from locationsDir.
func NewFinder(apiKey, locationsDir string) *Finder {
	return &Finder{
		APIKey:    apiKey,
		Dir:       locationsDir,
		MaxMiles:  defaultMaxMiles,
		MatrixURL: "https://maps.googleapis.com/maps/api/distancematrix/json",
		Client:    &http.Client{Timeout: 20 * time.Second},
	}
}

// Closest picks the nearest drop-off location for the address. In-state
// and neighbor results within MaxMiles win outright; otherwise the
// absolute nearest across the whole CSV set is returned with
// ThresholdExceeded flagging distances past the limit. A nil match with
// a nil error means no location could be ranked at all.
func (f *Finder) Closest(ctx context.Context, userAddress, state string) (*Match, error) {
	state = strings.ToUpper(strings.TrimSpace(state))

	available, err := f.availableStates()
	if err != nil {
		return nil, err
	}
	availSet := make(map[string]bool, len(available))
	for _, s := range available {
		availSet[s] = true
	}

	var inState *Match
	if availSet[state] {
		inState = f.bestInState(ctx, userAddress, state)
	}

	neighbors := []string{}
	for _, s := range stateNeighbors[state] {
		if availSet[s] {
			neighbors = append(neighbors, s)
		}
	}
	var neighborBest *Match
	if len(neighbors) > 0 {
		neighborBest = f.bestAmongStates(ctx, userAddress, neighbors)
	}

	if best := nearestUnder(f.MaxMiles, inState, neighborBest); best != nil {
		if best == neighborBest {
			best.Layer = LayerNeighbor
		} else {
			best.Layer = LayerInState
		}
		best.NeighborsChecked = neighbors
		best.ThresholdExceeded = false
		return best, nil
	}

	excluded := map[string]bool{state: true}
	for _, s := range neighbors {
		excluded[s] = true
	}
	var remaining []string
	for _, s := range available {
		if !excluded[s] {
			remaining = append(remaining, s)
		}
	}
	national := f.bestAmongStates(ctx, userAddress, remaining)

	best := nearest(inState, neighborBest, national)
	if best == nil {
		return nil, nil
	}
	switch best {
	case national:
		best.Layer = LayerNational
	case neighborBest:
		best.Layer = LayerNeighbor
	default:
		best.Layer = LayerInState
	}
	best.NeighborsChecked = neighbors
	best.ThresholdExceeded = best.DistanceMiles > f.MaxMiles
	return best, nil
}

// bestInState ranks one state's locations. The state code is appended
// to the origin when the address does not already carry it, which keeps
// geocoding from wandering into same-named towns elsewhere.
func (f *Finder) bestInState(ctx context.Context, userAddress, state string) *Match {
	dests, err := f.stateAddresses(state)
	if err != nil || len(dests) == 0 {
		return nil
	}

	origin := userAddress
	if state != "" && !strings.Contains(strings.ToUpper(userAddress), state) {
		origin = userAddress + ", " + state
	}

	best, err := f.matrixBest(ctx, origin, dests)
	if err != nil || best == nil {
		return nil
	}
	return &Match{
		Address:       best.address,
		DurationText:  best.durationText,
		State:         state,
		StateCSV:      filepath.Join(f.Dir, state+".csv"),
		DistanceMiles: metersToMiles(best.distanceMeters),
	}
}

func (f *Finder) bestAmongStates(ctx context.Context, userAddress string, states []string) *Match {
	var overall *Match
	for _, st := range states {
		res := f.bestInState(ctx, userAddress, st)
		if res != nil && (overall == nil || res.DistanceMiles < overall.DistanceMiles) {
			overall = res
		}
	}
	return overall
}

func nearestUnder(maxMiles float64, matches ...*Match) *Match {
	var best *Match
	for _, m := range matches {
		if m == nil || m.DistanceMiles > maxMiles {
			continue
		}
		if best == nil || m.DistanceMiles < best.DistanceMiles {
			best = m
		}
	}
	return best
}

func nearest(matches ...*Match) *Match {
	var best *Match
	for _, m := range matches {
		if m == nil {
			continue
		}
		if best == nil || m.DistanceMiles < best.DistanceMiles {
			best = m
		}
	}
	return best
}
