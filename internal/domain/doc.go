// Package domain models the police-shootings study data and the pure
// transformations that reconcile it.
//
// # Data Sources
//
// Fatal encounters come from the Washington Post "Fatal Force" v2 CSV. Each row
// is one person shot and killed by an on-duty officer, with the agency-reported
// state, county and city, and (usually) the latitude/longitude of the incident.
//
// County facts come from the Census QuickFacts extract (county_facts.csv). The
// table mixes three kinds of rows:
//
//	fips 0      "United States"        no state_abbreviation
//	fips 1000   "Alabama"              no state_abbreviation (state summary row)
//	fips 1001   "Autauga County"       state_abbreviation "AL"
//
// Values are keyed by QuickFacts column codes such as PST045214 (2014
// population estimate) or INC110213 (median household income, 2009-2013).
// Race columns (RHI125214 etc.) are percentages of the total population.
//
// County polygons come from the ACS county boundary files (one file per
// vintage). Their GEOID is zero-padded to five digits ("01001") while the
// facts table stores plain integers ("1001"), so identifiers are compared with
// leading zeros stripped. See [StripLeadingZeros].
//
// # Reconciliation
//
// Events are tied to a county in two passes:
//
//	spatial  point (lon, lat) within a county polygon
//	key      "<state>, <county>" normalized on both sides, see [JoinKey]
//	none     neither pass matched; Fips stays nil
//
// Coordinates that are missing or exactly zero never take the spatial path.
// Unmatched events are kept, not dropped, and carry nil values through every
// later join.
//
// # Derived Features
//
// Age brackets are right-closed bins, so 17 is "17 or younger" and 18 is
// "18-24". Weapon lists such as "knife;gun" are collapsed to one alternative
// by a [Chooser]; an unseeded chooser makes that step non-reproducible.
package domain
