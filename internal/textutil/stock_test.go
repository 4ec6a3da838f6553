package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStock(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		inStock bool
		qty     *int
	}{
		{"empty string", "", false, nil},
		{"zero", "0", false, nil},
		{"absent word", "нет на складе", false, nil},
		{"missing word", "отсутствует", false, nil},
		{"more than keyword", "более 12", true, nil},
		{"more than symbol", "> 5", true, nil},
		{"available no digits", "в наличии", true, nil},
		{"bare quantity with unit", "7 шт", true, intPtr(7)},
		{"bare quantity packs", "3 уп", true, intPtr(3)},
		{"bare quantity", "42", true, intPtr(42)},
		{"digit run fallback", "осталось 15 на складе", true, intPtr(15)},
		{"digit run zero", "осталось 0 позиций", false, intPtr(0)},
		{"garbage", "уточняйте", false, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseStock(tc.text)
			assert.Equal(t, tc.inStock, got.InStock, "InStock mismatch for %q", tc.text)
			if tc.qty == nil {
				assert.Nil(t, got.Qty, "Qty should be nil for %q", tc.text)
			} else {
				require.NotNil(t, got.Qty, "Qty should be set for %q", tc.text)
				assert.Equal(t, *tc.qty, *got.Qty)
			}
		})
	}
}

func TestParseStock_MoreThanDisplay(t *testing.T) {
	got := ParseStock("более 12")
	assert.True(t, got.InStock)
	assert.Nil(t, got.Qty)
	assert.Contains(t, got.DisplayText, "≥12")
}

func TestParseStock_MoreThanBeatsBareNumber(t *testing.T) {
	// "более 5" must not fall through to the bare-number rule.
	got := ParseStock("более 5")
	assert.Nil(t, got.Qty)
	assert.Contains(t, got.DisplayText, "≥5")
}

func intPtr(v int) *int { return &v }
