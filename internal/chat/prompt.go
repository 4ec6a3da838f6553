package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/floorservicemsk/dealerchat/internal/knowledge"
)

// relevanceSystemPrompt constrains the selection call to a bare JSON
// array so the answer can be machine-parsed.
const relevanceSystemPrompt = `Ты ассистент дилерского портала по напольным покрытиям.
Тебе дан вопрос дилера и список материалов базы знаний.
Выбери ТОЛЬКО те материалы, которые помогают ответить на вопрос.
Ответь строго JSON-массивом точных названий выбранных материалов, например: ["Название 1", "Название 2"].
Если ничего не подходит, ответь пустым массивом: [].
Не добавляй пояснений, комментариев или форматирования вне JSON.`

// buildRelevancePrompt lists every candidate item with its title,
// description and article code for the selection call.
func buildRelevancePrompt(question string, items []knowledge.Item) string {
	var b strings.Builder
	b.WriteString("Вопрос дилера: ")
	b.WriteString(question)
	b.WriteString("\n\nМатериалы базы знаний:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. Название: %s", i+1, item.Title)
		if item.Description != "" {
			fmt.Fprintf(&b, " | Описание: %s", item.Description)
		}
		if item.ArticleCode != "" {
			fmt.Fprintf(&b, " | Артикул: %s", item.ArticleCode)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// parseSelectedTitles extracts the JSON array of titles from the model
// answer, tolerating fenced code blocks and surrounding prose.
func parseSelectedTitles(answer string) []string {
	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		return nil
	}

	var titles []string
	if err := json.Unmarshal([]byte(answer[start:end+1]), &titles); err != nil {
		return nil
	}
	return titles
}

// selectByTitles keeps items whose title was named by the model,
// preserving knowledge-base order.
func selectByTitles(items []knowledge.Item, titles []string) []knowledge.Item {
	wanted := make(map[string]bool, len(titles))
	for _, title := range titles {
		wanted[strings.ToLower(strings.TrimSpace(title))] = true
	}

	var selected []knowledge.Item
	for _, item := range items {
		if wanted[strings.ToLower(strings.TrimSpace(item.Title))] {
			selected = append(selected, item)
		}
	}
	return selected
}

// postFilterItems narrows the model's selection when the message names
// a specific resource kind. Only the first matching keyword applies,
// so a message naming both a logo and a catalog filters by logo only.
func postFilterItems(message string, items []knowledge.Item) []knowledge.Item {
	lower := strings.ToLower(message)

	var keyword string
	if strings.Contains(lower, "логотип") {
		keyword = "логотип"
	} else if strings.Contains(lower, "презентаци") {
		keyword = "презентаци"
	} else if strings.Contains(lower, "каталог") {
		keyword = "каталог"
	} else if strings.Contains(lower, "сертификат") {
		keyword = "сертификат"
	} else if strings.Contains(lower, "брендбук") {
		keyword = "брендбук"
	} else {
		return items
	}

	var filtered []knowledge.Item
	for _, item := range items {
		haystack := strings.ToLower(item.Title + " " + item.Description + " " + item.Type)
		if strings.Contains(haystack, keyword) {
			filtered = append(filtered, item)
		}
	}
	if len(filtered) == 0 {
		return items
	}
	return filtered
}

var downloadRequestKeywords = []string{"скача", "загруз", "файл", "ссылк", "пришли", "отправь"}

// wantsDownload reports whether the message explicitly asks for a file.
func wantsDownload(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range downloadRequestKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// answerSystemPrompt keeps the model grounded in the supplied context
// and forces file links into the visible answer.
const answerSystemPrompt = `Ты консультант дилерского портала по напольным покрытиям.
Отвечай ТОЛЬКО на основе предоставленного контекста. Не придумывай факты.
Если в контексте есть ссылки на файлы или ресурсы, ВСЕГДА включай их в ответ как markdown-ссылки: [название](url).
Отвечай по-русски, кратко и по делу.`

// buildAnswerPrompt assembles the context block and the user prompt
// for the final completion.
func buildAnswerPrompt(question string, items []knowledge.Item, product *ProductCard) string {
	var b strings.Builder
	b.WriteString("Контекст:\n")

	if product != nil {
		fmt.Fprintf(&b, "Товар: %s (артикул %s), цена: %s\n", product.Name, product.VendorCode, product.Price)
		if product.Description != "" {
			fmt.Fprintf(&b, "Описание товара: %s\n", product.Description)
		}
		b.WriteString("\n")
	}

	for _, item := range items {
		fmt.Fprintf(&b, "### %s\n", item.Title)
		if item.Description != "" {
			b.WriteString(item.Description + "\n")
		}
		if item.Content != "" {
			b.WriteString(item.Content + "\n")
		}
		if item.FileURL != "" {
			fmt.Fprintf(&b, "Файл: [%s](%s)\n", item.Title, item.FileURL)
		} else if item.URL != "" {
			fmt.Fprintf(&b, "Ссылка: [%s](%s)\n", item.Title, item.URL)
		}
		b.WriteString("\n")
	}

	b.WriteString("Вопрос дилера: ")
	b.WriteString(question)
	return b.String()
}

// clarificationSystemPrompt is used when the knowledge base is empty:
// instead of guessing, the model asks a narrowing question.
const clarificationSystemPrompt = `Ты консультант дилерского портала по напольным покрытиям.
По вопросу дилера у тебя нет материалов. НЕ отвечай по существу.
Вместо этого задай уточняющий вопрос и перечисли темы, по которым ты можешь помочь:
товары и артикулы, цены и наличие, укладка и монтаж, каталоги, сертификаты, маркетинговые материалы.`
