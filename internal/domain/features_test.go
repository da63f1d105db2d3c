package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestAgeBracket(t *testing.T) {
	tests := []struct {
		age      *float64
		detailed string
		coarse   string
	}{
		{ptr(0.0), "17 or younger", "25 or younger"},
		{ptr(16.0), "17 or younger", "25 or younger"},
		{ptr(17.0), "17 or younger", "25 or younger"},
		{ptr(18.0), "18-24", "25 or younger"},
		{ptr(24.0), "18-24", "25 or younger"},
		{ptr(25.0), "25-34", "25 or younger"},
		{ptr(26.0), "25-34", "25-35"},
		{ptr(34.0), "25-34", "25-35"},
		{ptr(35.0), "35-49", "25-35"},
		{ptr(36.0), "35-49", "35-45"},
		{ptr(45.0), "35-49", "35-45"},
		{ptr(46.0), "35-49", "45+"},
		{ptr(49.0), "35-49", "45+"},
		{ptr(50.0), "50-64", "45+"},
		{ptr(64.0), "50-64", "45+"},
		{ptr(65.0), "65 or older", "45+"},
		{ptr(91.0), "65 or older", "45+"},
		{nil, "", ""},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.age != nil {
			name = fmt.Sprintf("%g", *tt.age)
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.detailed, AgeBracket(tt.age))
			assert.Equal(t, tt.coarse, AgeBracketShort(tt.age))
		})
	}
}

func TestAgeBracket_TotalOnNonNegativeAges(t *testing.T) {
	for age := 0.0; age <= 120; age += 0.5 {
		a := age
		assert.NotEmpty(t, AgeBracket(&a), "age %v", age)
		assert.NotEmpty(t, AgeBracketShort(&a), "age %v", age)
	}
	assert.Empty(t, AgeBracket(ptr(-1.0)))
}

func TestRaceLabelAndGroup(t *testing.T) {
	tests := []struct {
		code  string
		label string
		group string
	}{
		{"W", "White", "White"},
		{"B", "Black", "Black"},
		{"A", "Asian", "Other"},
		{"N", "Native American", "Other"},
		{"H", "Hispanic", "Other"},
		{"O", "Other", "Other"},
		{"B;H", "Other", "Other"},
		{"", "", "Other"},
		{"X", "", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.label, RaceLabel(tt.code))
			assert.Equal(t, tt.group, RaceGroup(RaceLabel(tt.code)))
		})
	}
}

func TestThreatGroup(t *testing.T) {
	assert.Equal(t, "Shoot", ThreatGroup("shoot"))
	assert.Equal(t, "Weapon Visible", ThreatGroup("threat"))
	assert.Equal(t, "Pointing Weapon", ThreatGroup("point"))
	assert.Equal(t, "Attacked", ThreatGroup("attack"))
	assert.Equal(t, "Other/No", ThreatGroup("dance"))
	assert.Equal(t, "Other/No", ThreatGroup(""))
	assert.Equal(t, "Other/No", ThreatGroup("Shoot"))
}

func TestWeaponGroup(t *testing.T) {
	for _, v := range []string{"unknown", "undetermined", "other", "nan", ""} {
		assert.Equal(t, "Other", WeaponGroup(v, FirstChooser), "value %q", v)
	}
	assert.Equal(t, "gun", WeaponGroup("gun", FirstChooser))
	assert.Equal(t, "knife", WeaponGroup("knife;gun", FirstChooser))
}

func TestWeaponGroup_MultipleWeaponsPicksListedAlternative(t *testing.T) {
	choose := NewRandomChooser(42)
	seen := map[string]bool{}
	for range 200 {
		got := WeaponGroup("knife;gun", choose)
		require.Contains(t, []string{"knife", "gun"}, got)
		seen[got] = true
	}
	assert.Len(t, seen, 2, "both alternatives should appear over 200 draws")
}

func TestNewRandomChooser_SeedIsReproducible(t *testing.T) {
	a := NewRandomChooser(7)
	b := NewRandomChooser(7)
	opts := []string{"gun", "knife", "vehicle", "blunt_object"}
	for range 50 {
		assert.Equal(t, a(opts), b(opts))
	}
}

func TestNewUnseededChooser_UsesClock(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	a := NewUnseededChooser()
	b := NewUnseededChooser()
	opts := []string{"gun", "knife", "vehicle"}
	for range 20 {
		assert.Equal(t, a(opts), b(opts))
	}
}

func TestDeriveFeatures(t *testing.T) {
	event := Event{
		ID:         "1",
		Age:        ptr(17.0),
		Race:       "H",
		ThreatType: "point",
		ArmedWith:  "gun;knife",
	}

	got := DeriveFeatures(event, FirstChooser)

	assert.Equal(t, Features{
		AgeBracket:      "17 or younger",
		AgeBracketShort: "25 or younger",
		RaceGroup:       "Other",
		ThreatGroup:     "Pointing Weapon",
		WeaponGroup:     "gun",
	}, got)
}
