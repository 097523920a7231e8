package types

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile() UserProfile {
	return UserProfile{
		Basic: BasicData{
			Age:          30,
			HeightCm:     175,
			WeightKg:     80,
			Country:      "Argentina",
			Province:     "Buenos Aires",
			Objective:    "Pérdida de grasa",
			Supplements:  []string{"Creatina"},
			Restrictions: []string{"Lácteos"},
		},
		Activity: ActivityData{
			Types:          []string{"Musculación"},
			DaysPerWeek:    5,
			SessionMinutes: 60,
			Intensity:      "Alta",
		},
	}
}

func TestNewUserProfile(t *testing.T) {
	p, err := NewUserProfile(validProfile())
	require.NoError(t, err)

	assert.Equal(t, DefaultMainMeals, p.Basic.MainMeals)
	assert.Equal(t, ObjectiveFatLoss, p.ObjectiveKind())
	assert.Equal(t, IntensityHigh, p.IntensityKind())
	assert.Equal(t, "Argentina, Buenos Aires", p.Location())
	assert.True(t, p.Excludes("lacteos"))
	assert.True(t, p.HasSupplement("CREATINA"))
	assert.False(t, p.HasSupplement("Proteína"))
}

func TestNewUserProfile_RejectsMissingAndUnknown(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UserProfile)
		field  string
	}{
		{"missing weight", func(p *UserProfile) { p.Basic.WeightKg = 0 }, "UserProfile.Basic.WeightKg"},
		{"unknown objective", func(p *UserProfile) { p.Basic.Objective = "Volar" }, "UserProfile.Basic.Objective"},
		{"unknown intensity", func(p *UserProfile) { p.Activity.Intensity = "Extrema" }, "UserProfile.Activity.Intensity"},
		{"no activity", func(p *UserProfile) { p.Activity.Types = nil }, "UserProfile.Activity.Types"},
		{"cycle without compound", func(p *UserProfile) { p.Anabolic.OnCycle = true; p.Anabolic.Weeks = 8 }, "UserProfile.Anabolic.Compound"},
		{"bad sport snack", func(p *UserProfile) { p.Basic.SportSnacks = []string{"Merienda"} }, "UserProfile.Basic.SportSnacks[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(&p)
			_, err := NewUserProfile(p)
			require.Error(t, err)

			var vErr ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.Errors, tt.field)
		})
	}
}

func TestNewUserProfile_DropsNonePlaceholders(t *testing.T) {
	p := validProfile()
	p.Basic.Restrictions = []string{"Ninguna restricción"}
	p.Basic.Supplements = []string{"Ninguna"}

	got, err := NewUserProfile(p)
	require.NoError(t, err)
	assert.Empty(t, got.Basic.Restrictions)
	assert.Empty(t, got.Basic.Supplements)
}

func TestDecodeUserProfile_UnknownField(t *testing.T) {
	body := `{"basic":{"age":30,"edad":30},"activity":{}}`
	_, err := DecodeUserProfile(strings.NewReader(body))

	var vErr ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Errors["body"], "unknown field")
}

func TestParseLabels(t *testing.T) {
	o, err := ParseObjective("ganancia MUSCULAR")
	require.NoError(t, err)
	assert.Equal(t, ObjectiveMuscleGain, o)

	i, err := ParseIntensity("Muy alta")
	require.NoError(t, err)
	assert.Equal(t, IntensityVeryHigh, i)

	_, err = ParseIntensity("???")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFoldLabel(t *testing.T) {
	assert.Equal(t, "media manana", FoldLabel(" Media MAÑANA "))
	assert.Equal(t, "lacteos", FoldLabel("Lácteos"))
	assert.Equal(t, "pinon", FoldLabel("piñón"))
}
