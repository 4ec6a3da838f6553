package textutil

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// RGB is a color in RGB space.
type RGB struct {
	R, G, B int
}

// colorDict maps normalized Russian color names to RGB values.
// Flooring decors lean heavily on wood tones, hence the дуб family.
var colorDict = map[string]RGB{
	"белый":          {255, 255, 255},
	"черный":         {0, 0, 0},
	"серый":          {128, 128, 128},
	"светло-серый":   {200, 200, 200},
	"темно-серый":    {74, 74, 74},
	"бежевый":        {222, 202, 164},
	"коричневый":     {139, 90, 43},
	"темно-коричневый": {92, 58, 30},
	"красный":        {200, 30, 30},
	"синий":          {40, 70, 180},
	"зеленый":        {50, 140, 60},
	"желтый":         {240, 210, 50},
	"дуб":            {196, 160, 110},
	"светлый дуб":    {222, 193, 146},
	"темный дуб":     {128, 96, 56},
	"дуб натуральный": {205, 170, 120},
	"венге":          {75, 50, 35},
	"орех":           {120, 80, 50},
	"ясень":          {215, 200, 170},
	"махагон":        {110, 45, 35},
	"вишня":          {150, 60, 55},
	"графит":         {55, 60, 65},
	"серебристый":    {192, 192, 198},
	"золотой":        {212, 175, 55},
	"слоновая кость": {245, 240, 220},
	"песочный":       {226, 205, 160},
	"ольха":          {180, 130, 90},
	"бук":            {205, 165, 120},
	"сосна":          {222, 184, 135},
}

var (
	hexColorRe   = regexp.MustCompile(`#([0-9a-fA-F]{6})`)
	wsCollapseRe = regexp.MustCompile(`\s+`)
	tokenSplitRe = regexp.MustCompile(`[\s/-]+`)
)

// ParseColorText resolves a free-form color description to an RGB value.
// Resolution order: embedded hex literal, exact dictionary match, substring
// match in both directions, then a dictionary match on the first token.
// Returns nil when nothing matches.
func ParseColorText(text string) *RGB {
	if m := hexColorRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseUint(m[1], 16, 32)
		if err == nil {
			return &RGB{
				R: int(v >> 16 & 0xff),
				G: int(v >> 8 & 0xff),
				B: int(v & 0xff),
			}
		}
	}

	norm := normalizeColorName(text)
	if norm == "" {
		return nil
	}

	if rgb, ok := colorDict[norm]; ok {
		return &rgb
	}

	// Longest names first so "светлый дуб" wins over "дуб".
	for _, name := range colorDictNames() {
		if strings.Contains(norm, name) || strings.Contains(name, norm) {
			rgb := colorDict[name]
			return &rgb
		}
	}

	if tokens := tokenSplitRe.Split(norm, -1); len(tokens) > 0 {
		if rgb, ok := colorDict[tokens[0]]; ok {
			return &rgb
		}
	}

	return nil
}

// ColorDistance returns the Euclidean distance between two colors.
// A nil input yields +Inf so non-colored products rank last without
// a separate filter pass.
func ColorDistance(a, b *RGB) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}
	dr := float64(a.R - b.R)
	dg := float64(a.G - b.G)
	db := float64(a.B - b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

var dictNames = buildDictNames()

func colorDictNames() []string {
	return dictNames
}

func buildDictNames() []string {
	names := make([]string, 0, len(colorDict))
	for name := range colorDict {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

func normalizeColorName(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	return wsCollapseRe.ReplaceAllString(lower, " ")
}
