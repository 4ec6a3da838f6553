package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorservicemsk/dealerchat/internal/knowledge"
)

func TestParseSelectedTitles(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{"bare array", `["Укладка ламината", "Каталог 2026"]`, []string{"Укладка ламината", "Каталог 2026"}},
		{"fenced block", "```json\n[\"Логотипы\"]\n```", []string{"Логотипы"}},
		{"with prose", `Подходят следующие: ["Сертификаты"] из списка.`, []string{"Сертификаты"}},
		{"empty array", `[]`, nil},
		{"no array", `ничего не подходит`, nil},
		{"malformed", `[не json]`, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseSelectedTitles(tc.answer)
			if tc.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestSelectByTitles(t *testing.T) {
	items := []knowledge.Item{
		{Title: "Укладка ламината"},
		{Title: "Каталог 2026"},
		{Title: "Логотипы"},
	}

	selected := selectByTitles(items, []string{" каталог 2026 ", "ЛОГОТИПЫ", "несуществующий"})
	require.Len(t, selected, 2)
	assert.Equal(t, "Каталог 2026", selected[0].Title)
	assert.Equal(t, "Логотипы", selected[1].Title)
}

func TestPostFilterItems(t *testing.T) {
	items := []knowledge.Item{
		{Title: "Логотип компании", Type: "файл"},
		{Title: "Каталог продукции 2026", Type: "файл"},
		{Title: "Укладка паркета", Type: "статья"},
	}

	t.Run("single keyword narrows", func(t *testing.T) {
		got := postFilterItems("пришлите логотип", items)
		require.Len(t, got, 1)
		assert.Equal(t, "Логотип компании", got[0].Title)
	})

	t.Run("first matched keyword wins", func(t *testing.T) {
		// логотип is checked before каталог, so the catalog item drops out.
		got := postFilterItems("нужен логотип и каталог", items)
		require.Len(t, got, 1)
		assert.Equal(t, "Логотип компании", got[0].Title)
	})

	t.Run("no keyword keeps all", func(t *testing.T) {
		got := postFilterItems("как укладывать паркет", items)
		assert.Len(t, got, 3)
	})

	t.Run("keyword without matching items keeps all", func(t *testing.T) {
		got := postFilterItems("нужен брендбук", items)
		assert.Len(t, got, 3)
	})
}

func TestWantsDownload(t *testing.T) {
	assert.True(t, wantsDownload("скачать каталог"))
	assert.True(t, wantsDownload("пришлите файл с логотипом"))
	assert.False(t, wantsDownload("чем отличается паркет от ламината"))
}

func TestBuildAnswerPrompt_IncludesLinksAndProduct(t *testing.T) {
	card := ProductCard{Name: "Ламинат Дуб", VendorCode: "AB123", Price: "990 ₽"}
	items := []knowledge.Item{
		{Title: "Укладка ламината", Content: "Кладите на подложку.", FileURL: "https://disk.yandex.ru/d/guide"},
	}

	prompt := buildAnswerPrompt("как укладывать AB123?", items, &card)
	assert.Contains(t, prompt, "AB123")
	assert.Contains(t, prompt, "[Укладка ламината](https://disk.yandex.ru/d/guide)")
	assert.Contains(t, prompt, "Вопрос дилера: как укладывать AB123?")
}
