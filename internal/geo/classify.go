package geo

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// stateNameToAbbr maps full state names to their two-letter codes for
// addresses that spell the state out.
var stateNameToAbbr = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT",
	"delaware": "DE", "district of columbia": "DC", "florida": "FL",
	"georgia": "GA", "hawaii": "HI", "idaho": "ID", "illinois": "IL",
	"indiana": "IN", "iowa": "IA", "kansas": "KS", "kentucky": "KY",
	"louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT",
	"nebraska": "NE", "nevada": "NV", "new hampshire": "NH",
	"new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
	"puerto rico": "PR", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

var stateAbbrs = func() map[string]bool {
	m := make(map[string]bool, len(stateNameToAbbr))
	for _, abbr := range stateNameToAbbr {
		m[abbr] = true
	}
	return m
}()

// cityStateZip matches "Street..., City, ST 12345" with either a
// two-letter code or a spelled-out state name before the zip.
var cityStateZip = regexp.MustCompile(
	`^\s*(?P<street>.+?),\s*` +
		`(?P<city>[A-Za-z0-9 .'\-]+?),\s*` +
		`(?P<state>[A-Z]{2}|[A-Za-z .'\-]{3,}?),?\s+` +
		`(?P<zip>\d{5}(?:-\d{3,4})?)\s*$`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// parsedAddress is one location row split into the columns the finder
// reads.
type parsedAddress struct {
	Street string
	City   string
	State  string
	Zip    string
}

// parseAddress splits a raw scraped address string into street, city,
// state code, and zip. Addresses that do not fit the pattern, or whose
// state cannot be recognized, are reported as unparseable.
func parseAddress(raw string) (*parsedAddress, bool) {
	addr := cleanAddress(raw)
	m := cityStateZip.FindStringSubmatch(addr)
	if m == nil {
		return nil, false
	}

	state := strings.TrimSpace(m[3])
	if !stateAbbrs[state] {
		abbr, ok := stateNameToAbbr[strings.ToLower(state)]
		if !ok {
			return nil, false
		}
		state = abbr
	}
	return &parsedAddress{
		Street: strings.TrimSpace(m[1]),
		City:   strings.TrimSpace(m[2]),
		State:  state,
		Zip:    strings.TrimSpace(m[4]),
	}, true
}

// cleanAddress undoes HTML escaping and whitespace noise left by
// scraping.
func cleanAddress(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.Trim(s, " ,;\t\r\n")
}

// SplitByState reads a master locations CSV (any file with an
// "address" column) and writes one <ST>.csv per recognized state into
// outDir, in the shape the finder consumes. It returns per-state row
// counts; unparseable rows are counted under the empty key.
func SplitByState(inputPath, outDir string) (map[string]int, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	addrCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "address") {
			addrCol = i
			break
		}
	}
	if addrCol < 0 {
		return nil, fmt.Errorf("no address column in %s", inputPath)
	}

	byState := make(map[string][]*parsedAddress)
	counts := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if addrCol >= len(record) {
			counts[""]++
			continue
		}
		parsed, ok := parseAddress(record[addrCol])
		if !ok {
			counts[""]++
			continue
		}
		byState[parsed.State] = append(byState[parsed.State], parsed)
		counts[parsed.State]++
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	states := make([]string, 0, len(byState))
	for state := range byState {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		if err := writeStateCSV(filepath.Join(outDir, state+".csv"), byState[state]); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func writeStateCSV(path string, rows []*parsedAddress) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	w := csv.NewWriter(file)
	if err := w.Write(addressColumns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write([]string{row.Street, row.City, row.State, row.Zip}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
