package render

import (
	"testing"

	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		override Mode
		chars    Characteristics
		api      int
		want     Mode
	}{
		{"override hardware wins over dash", Hardware, Characteristics{HasDashPattern: true}, 19, Hardware},
		{"override software wins on modern", Software, Characteristics{}, 33, Software},
		{"dash on old paths", Automatic, Characteristics{HasDashPattern: true}, 27, Software},
		{"dash on modern paths", Automatic, Characteristics{HasDashPattern: true}, 28, Hardware},
		{"many masks on old paths", Automatic, Characteristics{MaskAndMatteCount: 5}, 24, Software},
		{"four masks on old paths", Automatic, Characteristics{MaskAndMatteCount: 4}, 24, Hardware},
		{"many masks on modern paths", Automatic, Characteristics{MaskAndMatteCount: 50}, 30, Hardware},
		{"below gpu baseline", Automatic, Characteristics{}, 19, Software},
		{"plain composition", Automatic, Characteristics{}, 21, Hardware},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.override, tt.chars, Platform{APILevel: tt.api}))
		})
	}
}

func TestCharacteristicsOf(t *testing.T) {
	assert.Equal(t, Characteristics{}, CharacteristicsOf(nil))

	c := &composition.Composition{HasDashPattern: true, MaskAndMatteCount: 3}
	assert.Equal(t, Characteristics{HasDashPattern: true, MaskAndMatteCount: 3}, CharacteristicsOf(c))
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": Automatic, "Hardware": Hardware, "sw": Software} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("gpu")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}
