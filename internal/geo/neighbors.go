package geo

// stateNeighbors maps each state to the states it shares a land border
// with. AK, HI, and PR have none.
var stateNeighbors = map[string][]string{
	"AL": {"TN", "GA", "FL", "MS"},
	"AK": {},
	"AZ": {"CA", "NV", "UT", "CO", "NM"},
	"AR": {"MO", "TN", "MS", "LA", "TX", "OK"},
	"CA": {"OR", "NV", "AZ"},
	"CO": {"WY", "NE", "KS", "OK", "NM", "AZ", "UT"},
	"CT": {"NY", "MA", "RI"},
	"DE": {"MD", "PA", "NJ"},
	"FL": {"AL", "GA"},
	"GA": {"FL", "AL", "TN", "NC", "SC"},
	"HI": {},
	"ID": {"WA", "MT", "WY", "UT", "NV", "OR"},
	"IL": {"WI", "IA", "MO", "KY", "IN"},
	"IN": {"MI", "OH", "KY", "IL"},
	"IA": {"MN", "SD", "NE", "MO", "IL", "WI"},
	"KS": {"NE", "MO", "OK", "CO"},
	"KY": {"IL", "IN", "OH", "WV", "VA", "TN", "MO"},
	"LA": {"TX", "AR", "MS"},
	"ME": {"NH"},
	"MD": {"VA", "WV", "PA", "DE"},
	"MA": {"NY", "VT", "NH", "CT", "RI"},
	"MI": {"OH", "IN", "WI"},
	"MN": {"ND", "SD", "IA", "WI"},
	"MS": {"TN", "AL", "LA", "AR"},
	"MO": {"IA", "IL", "KY", "TN", "AR", "OK", "KS", "NE"},
	"MT": {"ND", "SD", "WY", "ID"},
	"NE": {"SD", "IA", "MO", "KS", "CO", "WY"},
	"NV": {"OR", "ID", "UT", "AZ", "CA"},
	"NH": {"ME", "VT", "MA"},
	"NJ": {"NY", "PA", "DE"},
	"NM": {"AZ", "UT", "CO", "OK", "TX"},
	"NY": {"PA", "NJ", "CT", "MA", "VT"},
	"NC": {"VA", "TN", "GA", "SC"},
	"ND": {"MT", "SD", "MN"},
	"OH": {"MI", "PA", "WV", "KY", "IN"},
	"OK": {"CO", "KS", "MO", "AR", "TX", "NM"},
	"OR": {"WA", "ID", "NV", "CA"},
	"PA": {"NY", "NJ", "DE", "MD", "WV", "OH"},
	"RI": {"CT", "MA"},
	"SC": {"NC", "GA"},
	"SD": {"ND", "MT", "WY", "NE", "IA", "MN"},
	"TN": {"KY", "VA", "NC", "GA", "AL", "MS", "AR", "MO"},
	"TX": {"NM", "OK", "AR", "LA"},
	"UT": {"ID", "WY", "CO", "NM", "AZ", "NV"},
	"VT": {"NY", "NH", "MA"},
	"VA": {"NC", "TN", "KY", "WV", "MD"},
	"WA": {"OR", "ID"},
	"WV": {"OH", "PA", "MD", "VA", "KY"},
	"WI": {"MN", "IA", "IL", "MI"},
	"WY": {"MT", "SD", "NE", "CO", "UT", "ID"},
	"PR": {},
}
