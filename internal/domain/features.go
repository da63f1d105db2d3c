package domain

import (
	"math/rand/v2"
	"strings"
)

var (
	ageEdges  = []float64{0, 17, 24, 34, 49, 64, 999}
	ageLabels = []string{"17 or younger", "18-24", "25-34", "35-49", "50-64", "65 or older"}

	ageShortEdges  = []float64{0, 25, 35, 45, 9999}
	ageShortLabels = []string{"25 or younger", "25-35", "35-45", "45+"}

	raceLabels = map[string]string{
		"W":   "White",
		"B":   "Black",
		"A":   "Asian",
		"N":   "Native American",
		"H":   "Hispanic",
		"O":   "Other",
		"B;H": "Other",
	}

	threatLabels = map[string]string{
		"shoot":  "Shoot",
		"threat": "Weapon Visible",
		"point":  "Pointing Weapon",
		"attack": "Attacked",
	}
)

const (
	groupOther       = "Other"
	threatOtherLabel = "Other/No"
	weaponSeparator  = ";"
)

// Chooser picks one alternative from a multi-valued weapon field.
// options always has at least two elements.
type Chooser func(options []string) string

// NewRandomChooser returns a uniform Chooser backed by a PCG source seeded
// with seed. The same seed yields the same sequence of choices.
func NewRandomChooser(seed uint64) Chooser {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(options []string) string {
		return options[rng.IntN(len(options))]
	}
}

// NewUnseededChooser seeds a random Chooser from the enrichment clock, so
// repeated runs may group the same event differently.
func NewUnseededChooser() Chooser {
	return NewRandomChooser(uint64(clock.Now().UnixNano()))
}

// FirstChooser always picks the first listed weapon.
func FirstChooser(options []string) string {
	return options[0]
}

// AgeBracket maps an age to one of six right-closed bins:
// [0,17] (17,24] (24,34] (34,49] (49,64] (64,999].
// Returns "" for a nil age or one outside every bin.
func AgeBracket(age *float64) string {
	return cut(age, ageEdges, ageLabels)
}

// AgeBracketShort maps an age to one of four coarse bins:
// [0,25] (25,35] (35,45] (45,9999].
func AgeBracketShort(age *float64) string {
	return cut(age, ageShortEdges, ageShortLabels)
}

// cut assigns v to the bin (edges[i-1], edges[i]]. The lowest edge is
// inclusive so that age 0 still has a bracket.
func cut(v *float64, edges []float64, labels []string) string {
	if v == nil || *v < edges[0] || *v > edges[len(edges)-1] {
		return ""
	}
	for i := 1; i < len(edges); i++ {
		if *v <= edges[i] {
			return labels[i-1]
		}
	}
	return ""
}

// RaceLabel expands a single-letter race code. Unknown codes map to "".
func RaceLabel(code string) string {
	return raceLabels[strings.TrimSpace(code)]
}

// RaceGroup keeps "White" and "Black" and collapses every other label,
// including a missing one, into "Other".
func RaceGroup(label string) string {
	if label == "White" || label == "Black" {
		return label
	}
	return groupOther
}

// ThreatGroup maps the raw threat_type code to a display label.
func ThreatGroup(threatType string) string {
	if label, ok := threatLabels[threatType]; ok {
		return label
	}
	return threatOtherLabel
}

// WeaponGroup collapses unknown markers into "Other" and reduces a
// ";"-separated list of weapons to one entry picked by choose.
func WeaponGroup(armedWith string, choose Chooser) string {
	switch armedWith {
	case "", "nan", "unknown", "undetermined", "other":
		return groupOther
	}
	if strings.Contains(armedWith, weaponSeparator) {
		return choose(strings.Split(armedWith, weaponSeparator))
	}
	return armedWith
}

// DeriveFeatures computes every categorical column for one event.
func DeriveFeatures(event Event, choose Chooser) Features {
	return Features{
		AgeBracket:      AgeBracket(event.Age),
		AgeBracketShort: AgeBracketShort(event.Age),
		RaceGroup:       RaceGroup(RaceLabel(event.Race)),
		ThreatGroup:     ThreatGroup(event.ThreatType),
		WeaponGroup:     WeaponGroup(event.ArmedWith, choose),
	}
}
