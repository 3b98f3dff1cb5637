package geo

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// addressLimit caps how many rows one state contributes; the Distance
// Matrix API bills per origin-destination pair.
const addressLimit = 25

var addressColumns = []string{"address_street", "city", "state", "zip"}

// availableStates lists the two-letter state codes that have a CSV file
// in the locations directory.
func (f *Finder) availableStates() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}

	var states []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		stem := strings.TrimSuffix(name, ".csv")
		if len(stem) != 2 {
			continue
		}
		states = append(states, strings.ToUpper(stem))
	}
	sort.Strings(states)
	return states, nil
}

// stateAddresses reads up to addressLimit full addresses from a state's
// CSV. Blank and "nan" cells (pandas exports) are skipped.
func (f *Finder) stateAddresses(state string) ([]string, error) {
	path := filepath.Join(f.Dir, strings.ToUpper(strings.TrimSpace(state))+".csv")
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	var addrs []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var parts []string
		for _, name := range addressColumns {
			i, ok := col[name]
			if !ok || i >= len(record) {
				continue
			}
			v := strings.TrimSpace(record[i])
			if v == "" || strings.EqualFold(v, "nan") {
				continue
			}
			parts = append(parts, v)
		}
		if len(parts) > 0 {
			addrs = append(addrs, strings.Join(parts, ", "))
		}
		if len(addrs) >= addressLimit {
			break
		}
	}
	return addrs, nil
}
