package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
)

type matrixElement struct {
	address        string
	distanceMeters float64
	durationText   string
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// matrixBest asks the Distance Matrix API for driving distances from
// one origin to every destination and returns the nearest. A nil
// element with nil error means no destination could be ranked.
func (f *Finder) matrixBest(ctx context.Context, origin string, dests []string) (*matrixElement, error) {
	if f.APIKey == "" {
		return nil, errors.New("no maps api key configured")
	}
	if len(dests) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", strings.Join(dests, "|"))
	params.Set("mode", "driving")
	params.Set("key", f.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.MatrixURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var data matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.Status != "OK" || len(data.Rows) == 0 {
		return nil, fmt.Errorf("distance matrix status %q", data.Status)
	}

	elements := data.Rows[0].Elements
	bestIdx := -1
	bestDist := math.Inf(1)
	for i, e := range elements {
		if e.Status != "OK" {
			continue
		}
		if e.Distance.Value < bestDist {
			bestIdx, bestDist = i, e.Distance.Value
		}
	}
	if bestIdx < 0 {
		return nil, nil
	}
	return &matrixElement{
		address:        dests[bestIdx],
		distanceMeters: bestDist,
		durationText:   elements[bestIdx].Duration.Text,
	}, nil
}

func metersToMiles(m float64) float64 {
	return math.Round(m/1609.344*100) / 100
}
