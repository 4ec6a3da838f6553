package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArticleCode(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"explicit prefix", "артикул AB123", "AB123"},
		{"code in sentence", "сколько стоит ламинат LM-450 в упаковке", "LM-450"},
		{"trailing punctuation", "есть ли QS850?", "QS850"},
		{"first of several", "сравните AB12 и CD34", "AB12"},
		{"too short", "а1 б2", ""},
		{"digits only", "сколько стоит 12345", ""},
		{"letters only", "сколько стоит ламинат", ""},
		{"cyrillic code", "плинтус ПЛ-220 в наличии", "ПЛ-220"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractArticleCode(tc.message))
		})
	}
}

func TestIsKnowledgeBaseRequest(t *testing.T) {
	assert.True(t, IsKnowledgeBaseRequest("покажите текстуру AB123"))
	assert.True(t, IsKnowledgeBaseRequest("Как выглядит QS850 в интерьере"))
	assert.True(t, IsKnowledgeBaseRequest("инструкция по укладке LM-450"))
	assert.False(t, IsKnowledgeBaseRequest("цена AB123"))
	assert.False(t, IsKnowledgeBaseRequest("артикул AB123"))
}

func TestFindExact(t *testing.T) {
	index := BuildIndex([]Product{
		{Name: "Ламинат Дуб", VendorCode: "AB123"},
		{Name: "Ламинат Дуб (вторая позиция)", VendorCode: "ab123"},
	})

	p := FindExact(index, "Ab123")
	require.NotNil(t, p)
	assert.Equal(t, "Ламинат Дуб", p.Name)

	assert.Nil(t, FindExact(index, "ZZZ999"))
}

func TestFindSimilar(t *testing.T) {
	p1 := Product{Name: "P1", VendorCode: "AB12"}
	p2 := Product{Name: "P2", VendorCode: "AB123"}
	p3 := Product{Name: "P3", VendorCode: "XAB12Y"}
	index := Index{
		"ab12":   {p1},
		"ab123":  {p2},
		"xab12y": {p3},
	}

	got := FindSimilar(index, "ab12", 10)

	require.Len(t, got, 2, "exact key must be excluded")
	assert.Equal(t, "AB123", got[0].VendorCode)
	assert.Equal(t, "XAB12Y", got[1].VendorCode)
}

func TestFindSimilar_PrefixKey(t *testing.T) {
	index := Index{
		"ab12": {{Name: "base", VendorCode: "AB12"}},
	}

	got := FindSimilar(index, "ab123", 10)
	require.Len(t, got, 1, "key that is a strict prefix of the query matches")
	assert.Equal(t, "AB12", got[0].VendorCode)
}

func TestFindSimilar_DedupeAndLimit(t *testing.T) {
	index := Index{
		"lm1":  {{VendorCode: "LM100"}, {VendorCode: "LM100"}},
		"lm10": {{VendorCode: "LM100"}, {VendorCode: "LM101"}, {VendorCode: "LM102"}},
	}

	got := FindSimilar(index, "lm", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "LM100", got[0].VendorCode)
	assert.Equal(t, "LM101", got[1].VendorCode)
}

func TestSortByColor(t *testing.T) {
	products := []Product{
		{VendorCode: "V1", Params: map[string]string{"цвет": "венге"}},
		{VendorCode: "V2"},
		{VendorCode: "V3", Params: map[string]string{"цвет": "светлый дуб"}},
		{VendorCode: "V4", Params: map[string]string{"цвет": "графит"}},
	}

	SortByColor(products, "нужен ламинат светлый дуб")

	assert.Equal(t, "V3", products[0].VendorCode, "exact color match first")
	assert.Equal(t, "V2", products[3].VendorCode, "product without a color ranks last")
}

func TestSortByColor_NoColorInText(t *testing.T) {
	products := []Product{
		{VendorCode: "V1", Params: map[string]string{"цвет": "графит"}},
		{VendorCode: "V2", Params: map[string]string{"цвет": "белый"}},
	}

	SortByColor(products, "сколько стоит доставка")

	assert.Equal(t, "V1", products[0].VendorCode)
	assert.Equal(t, "V2", products[1].VendorCode)
}

func TestFormatPrice(t *testing.T) {
	price := 990.0
	assert.Equal(t, "990 ₽", FormatPrice(&price))

	fractional := 1249.5
	assert.Equal(t, "1249.5 ₽", FormatPrice(&fractional))

	assert.Equal(t, "не указана", FormatPrice(nil))
}

func TestSuggestionMessage(t *testing.T) {
	products := make([]Product, 20)
	for i := range products {
		products[i] = Product{Name: "Ламинат", VendorCode: "LM1" + string(rune('A'+i))}
	}

	msg := SuggestionMessage("lm1", products)
	assert.Contains(t, msg, "LM1", "vendor codes listed")
	assert.Contains(t, msg, "не найден, но есть похожие")
	assert.Contains(t, msg, "...и ещё 5 товаров")
	assert.Equal(t, maxSuggestionsShown, strings.Count(msg, "•"))
}

func TestNotFoundMessage(t *testing.T) {
	msg := NotFoundMessage("zzz999")
	assert.Contains(t, msg, "ZZZ999")
	assert.Contains(t, msg, "не найден")
}
