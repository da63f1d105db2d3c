package geo

import "github.com/qwyt/wp-police-shooting/internal/domain"

// Chain consults several boundary vintages in order. County lines and
// identifiers drift between vintages, so a point missed by the newest file
// can still fall inside an older polygon.
type Chain []domain.CountyLocator

// Locate returns the first match across the chain.
func (c Chain) Locate(lat, lon float64) (string, bool) {
	for _, loc := range c {
		if id, ok := loc.Locate(lat, lon); ok {
			return id, true
		}
	}
	return "", false
}
