package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_ProductInfoRoundTrip(t *testing.T) {
	payload := NewProductInfoPayload(ProductCard{
		Name:       "Ламинат Дуб",
		VendorCode: "AB123",
		Price:      "990 ₽",
		Params:     map[string]string{"класс": "33"},
	})

	content, err := payload.Encode()
	require.NoError(t, err)

	decoded, ok := DecodePayload(content)
	require.True(t, ok)
	assert.Equal(t, PayloadProductInfo, decoded.Type)
	require.NotNil(t, decoded.Product)
	assert.Equal(t, "AB123", decoded.Product.VendorCode)
	assert.Equal(t, "33", decoded.Product.Params["класс"])
}

func TestPayload_DownloadRoundTrip(t *testing.T) {
	single := NewDownloadPayload(DownloadLink{Title: "Каталог 2026", URL: "https://disk.yandex.ru/d/cat"})
	content, err := single.Encode()
	require.NoError(t, err)

	decoded, ok := DecodePayload(content)
	require.True(t, ok)
	assert.Equal(t, PayloadDownloadLink, decoded.Type)
	require.NotNil(t, decoded.Link)
	assert.Equal(t, "Каталог 2026", decoded.Link.Title)

	multi := NewMultiDownloadPayload([]DownloadLink{
		{Title: "Логотип PNG", URL: "https://disk.yandex.ru/d/png"},
		{Title: "Логотип SVG", URL: "https://disk.yandex.ru/d/svg"},
	})
	content, err = multi.Encode()
	require.NoError(t, err)

	decoded, ok = DecodePayload(content)
	require.True(t, ok)
	assert.Equal(t, PayloadMultiDownloadLinks, decoded.Type)
	assert.Len(t, decoded.Links, 2)
}

func TestDecodePayload_RejectsPlainContent(t *testing.T) {
	for _, content := range []string{
		"Обычный markdown ответ",
		"{не json",
		`{"type":"unknown","data":{}}`,
		`{"foo":"bar"}`,
		"",
	} {
		_, ok := DecodePayload(content)
		assert.False(t, ok, "content %q must not decode", content)
	}
}
