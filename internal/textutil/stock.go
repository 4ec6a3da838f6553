// Package textutil provides text normalization helpers for product data:
// stock quantity parsing and color name resolution.
package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StockInfo is the parsed availability of a product.
type StockInfo struct {
	InStock     bool
	DisplayText string
	Qty         *int
}

var (
	moreThanRe  = regexp.MustCompile(`(?:более|больше|>|≥)\s*(\d+)`)
	bareQtyRe   = regexp.MustCompile(`^\s*(\d+)\s*(?:шт|уп|ед|pcs|упак)?\.?\s*$`)
	digitRunRe  = regexp.MustCompile(`\d+`)
	hasDigitRe  = regexp.MustCompile(`\d`)
)

// ParseStock interprets free-form stock text from the product feed.
// The rules are evaluated in a fixed order; "более 5" must be recognized
// before the bare-number rule sees the 5.
func ParseStock(text string) StockInfo {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if trimmed == "" || trimmed == "0" ||
		strings.Contains(lower, "нет") || strings.Contains(lower, "отсутствует") {
		return StockInfo{InStock: false, DisplayText: "Нет в наличии"}
	}

	if m := moreThanRe.FindStringSubmatch(lower); m != nil {
		return StockInfo{InStock: true, DisplayText: "≥" + m[1]}
	}

	if strings.Contains(lower, "в наличии") && !hasDigitRe.MatchString(lower) {
		return StockInfo{InStock: true, DisplayText: "В наличии"}
	}

	if m := bareQtyRe.FindStringSubmatch(lower); m != nil {
		qty, err := strconv.Atoi(m[1])
		if err == nil {
			return StockInfo{
				InStock:     qty > 0,
				DisplayText: fmt.Sprintf("%d шт", qty),
				Qty:         &qty,
			}
		}
	}

	if m := digitRunRe.FindString(lower); m != "" {
		qty, err := strconv.Atoi(m)
		if err == nil {
			return StockInfo{
				InStock:     qty > 0,
				DisplayText: fmt.Sprintf("%d шт", qty),
				Qty:         &qty,
			}
		}
	}

	return StockInfo{InStock: false, DisplayText: "Нет в наличии"}
}
