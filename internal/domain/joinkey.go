package domain

import (
	"fmt"
	"strings"
)

// countySuffixes are removed from county names before building a join key.
// Facts rows say "Harris County" or "Orleans Parish" where events say "Harris".
var countySuffixes = []string{"County", "Parish", "Municipality"}

// JoinKey builds the fallback merge key "<state>, <county>" used when the
// spatial join cannot place an event. The county suffixes are removed, then
// the key is trimmed and lower-cased. Naming drift beyond these substitutions
// (e.g. "St." vs "Saint") is not handled.
func JoinKey(state, county string) string {
	for _, s := range countySuffixes {
		county = strings.ReplaceAll(county, s, "")
	}
	return NormalizeKey(fmt.Sprintf("%s, %s", state, county))
}

// NormalizeKey trims surrounding whitespace and lower-cases a key.
// It is idempotent and leaves keys produced by JoinKey unchanged.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// StripLeadingZeros normalizes a county identifier for comparison across
// sources: "01001" and "1001" are the same county.
func StripLeadingZeros(fips string) string {
	return strings.TrimLeft(strings.TrimSpace(fips), "0")
}
