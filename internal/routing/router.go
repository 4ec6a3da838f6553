// Package routing classifies inbound chat messages before any cache or
// LLM work happens: a routing decision selects the model tier, and a
// small canned-reply table short-circuits trivial greetings entirely.
package routing

import (
	"regexp"
	"sort"
	"strings"
)

// ModelTier selects the completion model class for a message.
type ModelTier string

const (
	ModelFast     ModelTier = "fast"
	ModelStandard ModelTier = "standard"
	ModelAdvanced ModelTier = "advanced"
)

// Routing reasons.
const (
	ReasonSimpleGreeting  = "simple_greeting"
	ReasonProductLookup   = "product_lookup"
	ReasonFileRequest     = "file_request"
	ReasonComplexAnalysis = "complex_analysis"
	ReasonLongQuestion    = "long_question"
	ReasonSimpleQuestion  = "simple_question"
	ReasonGeneralQuestion = "general_question"
)

// Decision is the routing outcome for a message.
type Decision struct {
	UseAI      bool
	Model      ModelTier
	Reason     string
	Confidence float64
}

var (
	greetingRe = regexp.MustCompile(`(?i)^(привет|здравствуй|здравствуйте|добрый\s+(день|вечер|утро)|доброе\s+утро|спасибо|благодарю|ок|окей|да|нет|хорошо|понятно|пока|до\s+свидания)\b`)

	articlePrefixRe = regexp.MustCompile(`(?i)артикул[:\s]`)
	codeTokenRe     = regexp.MustCompile(`(?i)\b(?:[a-zа-я]+\d|\d+[a-zа-я])[a-zа-я\d-]+\b`)
	productInfoRe   = regexp.MustCompile(`(?i)(цена|стоимость|сколько\s+стоит|наличие|остат(ок|ки)|в\s+наличии|характеристик)`)

	fileRequestRe = regexp.MustCompile(`(?i)(скача(ть|й)|документ|сертификат|каталог|прайс|инструкци|презентаци|логотип|брендбук)`)

	complexRe = regexp.MustCompile(`(?i)(сравн|что\s+лучше|отлич|разниц|посоветуй|порекоменд|рекоменд|подбер|объясн|почему|как\s+выбрать)`)
)

// rule is a (predicate, decision) pair. Rules are evaluated strictly in
// order; several patterns overlap and the precedence is load-bearing.
type rule struct {
	match  func(text string, words int) bool
	result Decision
}

var rules = []rule{
	{
		match: func(text string, words int) bool {
			return words <= 3 && greetingRe.MatchString(text)
		},
		result: Decision{UseAI: false, Model: ModelFast, Reason: ReasonSimpleGreeting, Confidence: 0.95},
	},
	{
		match: func(text string, words int) bool {
			if articlePrefixRe.MatchString(text) {
				return true
			}
			if codeTokenRe.MatchString(text) {
				return true
			}
			return productInfoRe.MatchString(text)
		},
		result: Decision{UseAI: false, Model: ModelFast, Reason: ReasonProductLookup, Confidence: 0.9},
	},
	{
		match: func(text string, words int) bool {
			return fileRequestRe.MatchString(text)
		},
		result: Decision{UseAI: true, Model: ModelFast, Reason: ReasonFileRequest, Confidence: 0.85},
	},
	{
		match: func(text string, words int) bool {
			return complexRe.MatchString(text)
		},
		result: Decision{UseAI: true, Model: ModelAdvanced, Reason: ReasonComplexAnalysis, Confidence: 0.8},
	},
	{
		match: func(text string, words int) bool {
			return words > 20
		},
		result: Decision{UseAI: true, Model: ModelAdvanced, Reason: ReasonLongQuestion, Confidence: 0.7},
	},
	{
		match: func(text string, words int) bool {
			return greetingRe.MatchString(text)
		},
		result: Decision{UseAI: true, Model: ModelFast, Reason: ReasonSimpleQuestion, Confidence: 0.85},
	},
}

var defaultDecision = Decision{UseAI: true, Model: ModelStandard, Reason: ReasonGeneralQuestion, Confidence: 0.6}

// AnalyzeQuestion classifies a message into a routing decision.
// First matching rule wins.
func AnalyzeQuestion(text string) Decision {
	trimmed := strings.TrimSpace(text)
	words := len(strings.Fields(trimmed))

	for _, r := range rules {
		if r.match(trimmed, words) {
			return r.result
		}
	}
	return defaultDecision
}

// instantResponses maps trivial phrases to canned replies with zero LLM cost.
var instantResponses = map[string]string{
	"привет":       "Здравствуйте! Чем могу помочь?",
	"здравствуйте": "Здравствуйте! Чем могу помочь?",
	"добрый день":  "Добрый день! Чем могу помочь?",
	"добрый вечер": "Добрый вечер! Чем могу помочь?",
	"доброе утро":  "Доброе утро! Чем могу помочь?",
	"спасибо":      "Пожалуйста! Обращайтесь, если появятся вопросы.",
	"благодарю":    "Пожалуйста! Обращайтесь, если появятся вопросы.",
	"пока":         "До свидания! Хорошего дня!",
	"до свидания":  "До свидания! Хорошего дня!",
}

// InstantResponse returns a canned reply for a trivial phrase: exact
// normalized match first, then prefix/substring. The orchestrator calls
// this before any routing or cache work.
func InstantResponse(message string) (string, bool) {
	norm := normalizePhrase(message)
	if norm == "" {
		return "", false
	}

	if reply, ok := instantResponses[norm]; ok {
		return reply, true
	}

	// Prefix/substring match on whole-word boundaries, longest phrase
	// first, so "пока" never fires inside "показать".
	padded := " " + norm + " "
	for _, phrase := range instantPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return instantResponses[phrase], true
		}
	}

	return "", false
}

var instantPhrases = buildInstantPhrases()

func buildInstantPhrases() []string {
	phrases := make([]string, 0, len(instantResponses))
	for phrase := range instantResponses {
		phrases = append(phrases, phrase)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})
	return phrases
}

var punctRe = regexp.MustCompile(`[!?.,:;)(]+`)

func normalizePhrase(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	lower = punctRe.ReplaceAllString(lower, "")
	return strings.Join(strings.Fields(lower), " ")
}
