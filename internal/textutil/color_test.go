package textutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColorText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *RGB
		wantNil bool
	}{
		{"hex literal", "декор #ff0000", &RGB{255, 0, 0}, false},
		{"exact match", "белый", &RGB{255, 255, 255}, false},
		{"exact match with spaces", "  Светлый   дуб ", &RGB{222, 193, 146}, false},
		{"slash separated", "серый/графит", &RGB{55, 60, 65}, false},
		{"no match", "перламутровый", nil, true},
		{"empty", "", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseColorText(tc.text)
			if tc.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestParseColorText_SubstringMatch(t *testing.T) {
	// The dictionary has no exact entry; the дуб family resolves via substring.
	got := ParseColorText("Дуб светлый натуральный")
	require.NotNil(t, got)
}

func TestColorDistance(t *testing.T) {
	white := &RGB{255, 255, 255}
	black := &RGB{0, 0, 0}

	assert.InDelta(t, 441.67, ColorDistance(white, black), 0.01)
	assert.Zero(t, ColorDistance(white, white))
}

func TestColorDistance_NilIsInfinite(t *testing.T) {
	x := &RGB{10, 20, 30}

	assert.True(t, math.IsInf(ColorDistance(nil, x), 1))
	assert.True(t, math.IsInf(ColorDistance(x, nil), 1))
	assert.True(t, math.IsInf(ColorDistance(nil, nil), 1))
}
