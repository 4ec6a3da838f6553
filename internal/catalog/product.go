// Package catalog maintains the product index built from the supplier
// feed and resolves article-code lookups. Lookups are pure functions
// over an immutable index snapshot; Service adds feed refresh and
// response caching on top.
package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/floorservicemsk/dealerchat/internal/textutil"
)

// Product is one feed entry. A vendor code (артикул) identifies a
// concrete flooring variant.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	VendorCode  string            `json:"vendorCode"`
	Price       *float64          `json:"price,omitempty"`
	Description string            `json:"description,omitempty"`
	Picture     string            `json:"picture,omitempty"`
	Vendor      string            `json:"vendor,omitempty"`
	Stock       string            `json:"stock,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Documents   []string          `json:"documents,omitempty"`
}

// Index maps lower-cased vendor codes to products. It is rebuilt
// wholesale on feed refresh and never mutated in place.
type Index map[string][]Product

// BuildIndex groups products by lower-cased vendor code.
func BuildIndex(products []Product) Index {
	index := make(Index, len(products))
	for _, p := range products {
		if p.VendorCode == "" {
			continue
		}
		key := strings.ToLower(p.VendorCode)
		index[key] = append(index[key], p)
	}
	return index
}

var tokenTrimRe = regexp.MustCompile(`^[^\p{L}\p{N}]+|[^\p{L}\p{N}]+$`)

// ExtractArticleCode finds the first token that looks like a product
// code: at least one digit, at least one letter, length 3 or more.
// Only the first such token counts.
func ExtractArticleCode(message string) string {
	for _, token := range strings.Fields(message) {
		token = tokenTrimRe.ReplaceAllString(token, "")
		if len([]rune(token)) < 3 {
			continue
		}
		hasDigit, hasLetter := false, false
		for _, r := range token {
			switch {
			case unicode.IsDigit(r):
				hasDigit = true
			case unicode.IsLetter(r):
				hasLetter = true
			}
		}
		if hasDigit && hasLetter {
			return token
		}
	}
	return ""
}

// kbIntentKeywords signal interest in texture, photo, design or
// installation content. A product question carrying one of these is
// answered from the knowledge base, not the bare product card.
var kbIntentKeywords = []string{
	"текстур",
	"фото",
	"изображени",
	"картинк",
	"как выглядит",
	"дизайн",
	"интерьер",
	"укладк",
	"монтаж",
	"установк",
}

// IsKnowledgeBaseRequest reports whether the message asks for richer
// knowledge-base content alongside a product code.
func IsKnowledgeBaseRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range kbIntentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FindExact returns the first product stored under the code, or nil.
func FindExact(index Index, code string) *Product {
	products := index[strings.ToLower(code)]
	if len(products) == 0 {
		return nil
	}
	p := products[0]
	return &p
}

// FindSimilar collects products whose index key is a strict prefix of
// the code or contains the code as a substring, excluding the exact
// key. Results are deduplicated by vendor code, sorted by vendor code
// and truncated to limit.
func FindSimilar(index Index, code string, limit int) []Product {
	if limit <= 0 {
		limit = 10
	}
	lower := strings.ToLower(code)

	var matched []Product
	for key, products := range index {
		if key == lower {
			continue
		}
		if strings.HasPrefix(lower, key) || strings.Contains(key, lower) {
			matched = append(matched, products...)
		}
	}

	seen := make(map[string]bool, len(matched))
	unique := matched[:0]
	for _, p := range matched {
		if seen[p.VendorCode] {
			continue
		}
		seen[p.VendorCode] = true
		unique = append(unique, p)
	}

	sort.Slice(unique, func(i, j int) bool {
		return unique[i].VendorCode < unique[j].VendorCode
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

// SortByColor reorders products by how close their color parameter is
// to a color named in the text. Products without a recognizable color
// keep their relative order at the end. No color in the text means no
// reordering.
func SortByColor(products []Product, text string) {
	wanted := textutil.ParseColorText(text)
	if wanted == nil {
		return
	}

	sort.SliceStable(products, func(i, j int) bool {
		return colorDistanceOf(products[i], wanted) < colorDistanceOf(products[j], wanted)
	})
}

func colorDistanceOf(p Product, wanted *textutil.RGB) float64 {
	return textutil.ColorDistance(textutil.ParseColorText(p.Params["цвет"]), wanted)
}

// FormatPrice renders a price for the product card.
func FormatPrice(price *float64) string {
	if price == nil {
		return "не указана"
	}
	return strconv.FormatFloat(*price, 'f', -1, 64) + " ₽"
}

const maxSuggestionsShown = 15

// SuggestionMessage formats a "did you mean" list for similar vendor
// codes when the exact one is missing.
func SuggestionMessage(code string, products []Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Товар с артикулом %s не найден, но есть похожие:\n\n", strings.ToUpper(code))

	shown := products
	if len(shown) > maxSuggestionsShown {
		shown = shown[:maxSuggestionsShown]
	}
	for _, p := range shown {
		fmt.Fprintf(&b, "• %s (артикул: %s)\n", p.Name, p.VendorCode)
	}
	if rest := len(products) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n...и ещё %d товаров", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NotFoundMessage is the fixed negative result for an unknown code.
// Not an error: the caller returns it as a normal answer.
func NotFoundMessage(code string) string {
	return fmt.Sprintf("Товар с артикулом %s не найден. Проверьте написание артикула или уточните вопрос у менеджера.", strings.ToUpper(code))
}
