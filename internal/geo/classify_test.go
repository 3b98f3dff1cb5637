package geo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *parsedAddress
	}{
		{
			name: "two letter state",
			raw:  "3901 Jackson Rd, Ann Arbor, MI 48103",
			want: &parsedAddress{Street: "3901 Jackson Rd", City: "Ann Arbor", State: "MI", Zip: "48103"},
		},
		{
			name: "spelled out state",
			raw:  "100 Auction Way, Fresno, California 93725",
			want: &parsedAddress{Street: "100 Auction Way", City: "Fresno", State: "CA", Zip: "93725"},
		},
		{
			name: "zip plus four",
			raw:  "1 Main St, Dallas, TX 75201-1234",
			want: &parsedAddress{Street: "1 Main St", City: "Dallas", State: "TX", Zip: "75201-1234"},
		},
		{
			name: "html entities and nbsp",
			raw:  "O&#39;Brien&nbsp;Rd, Tampa, FL 33610",
			want: &parsedAddress{Street: "O'Brien Rd", City: "Tampa", State: "FL", Zip: "33610"},
		},
		{
			name: "no zip",
			raw:  "somewhere in Texas",
		},
		{
			name: "unknown state",
			raw:  "1 Main St, Springfield, Zz 12345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseAddress(tt.raw)
			if tt.want == nil {
				if ok {
					t.Fatalf("Expected parse failure, got %+v", got)
				}
				return
			}
			if !ok {
				t.Fatal("Expected parse success")
			}
			if *got != *tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestSplitByState(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "locations.csv")
	csvData := "name,address,website\n" +
		"Manheim Detroit,\"29500 Gateway Blvd, Brownstown, MI 48134\",x\n" +
		"Manheim Metro,\"3901 Jackson Rd, Ann Arbor, MI 48103\",x\n" +
		"Manheim Texas,\"1 Auction Ln, Dallas, TX 75201\",x\n" +
		"Broken,\"not an address\",x\n"
	if err := os.WriteFile(input, []byte(csvData), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	outDir := filepath.Join(dir, "by_state")
	counts, err := SplitByState(input, outDir)
	if err != nil {
		t.Fatalf("SplitByState failed: %v", err)
	}
	if counts["MI"] != 2 || counts["TX"] != 1 || counts[""] != 1 {
		t.Errorf("Unexpected counts %v", counts)
	}

	// the output must be readable by the finder's state loader
	f := NewFinder("key", outDir)
	states, err := f.availableStates()
	if err != nil {
		t.Fatalf("availableStates failed: %v", err)
	}
	if len(states) != 2 || states[0] != "MI" || states[1] != "TX" {
		t.Errorf("Expected [MI TX], got %v", states)
	}

	addrs, err := f.stateAddresses("MI")
	if err != nil {
		t.Fatalf("stateAddresses failed: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("Expected 2 MI addresses, got %d", len(addrs))
	}
	if addrs[1] != "3901 Jackson Rd, Ann Arbor, MI, 48103" {
		t.Errorf("Unexpected address %q", addrs[1])
	}
}
