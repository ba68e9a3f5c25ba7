package summarize

import (
	"strings"

	"newsly/internal/core"
)

// System prompts are fixed strings. User content is never concatenated into
// them; it travels in its own message.
const (
	systemPromptEN = "You are a news summarization assistant. Produce a faithful, " +
		"neutral summary in English. 3-5 sentences. Do not invent facts."
	systemPromptKO = "당신은 뉴스 요약 도우미입니다. 기사 내용을 충실하고 중립적으로 " +
		"한국어 3-5문장으로 요약하세요. 사실을 지어내지 마세요."
)

// sentenceEnders are the boundaries the soft truncation cuts on. Korean
// sentences end in the same terminal punctuation once normalized, plus the
// ideographic full stop.
var sentenceEnders = []string{". ", "! ", "? ", "。", ".\n", "다. "}

func systemPrompt(language string) string {
	if language == core.LanguageKorean {
		return systemPromptKO
	}
	return systemPromptEN
}

// userPrompt assembles the user message: the optional custom prompt first,
// then the titled article content.
func userPrompt(article *core.Article, customPrompt string, softCap, hardCap int) string {
	var b strings.Builder
	if customPrompt != "" {
		b.WriteString(strings.TrimSpace(customPrompt))
		b.WriteString("\n\n")
	}
	b.WriteString("Title: ")
	b.WriteString(article.Title)
	b.WriteString("\n\nContent: ")
	b.WriteString(truncateBody(article.Body, softCap, hardCap))
	return b.String()
}

// truncateBody cuts the body at the last sentence boundary inside the soft
// cap. A body with no usable boundary (one enormous sentence) is cut at the
// hard cap instead.
func truncateBody(body string, softCap, hardCap int) string {
	runes := []rune(body)
	if len(runes) <= softCap {
		return body
	}

	window := string(runes[:softCap])
	cut := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(window, ender); idx > cut {
			cut = idx + len(ender)
		}
	}
	// A boundary in the first tenth of the window loses too much article;
	// prefer the hard cut.
	if cut > len(window)/10 {
		return strings.TrimSpace(window[:cut])
	}
	if len(runes) > hardCap {
		runes = runes[:hardCap]
	}
	return strings.TrimSpace(string(runes))
}

// leakWindow is the length of the sliding windows used by the prompt-leak
// guard.
const leakWindow = 20

// leaksSystemPrompt reports whether any 20-rune contiguous slice of the
// system prompt appears verbatim in the summary.
func leaksSystemPrompt(summary, prompt string) bool {
	runes := []rune(prompt)
	if len(runes) < leakWindow {
		return strings.Contains(summary, prompt)
	}
	for i := 0; i+leakWindow <= len(runes); i++ {
		if strings.Contains(summary, string(runes[i:i+leakWindow])) {
			return true
		}
	}
	return false
}
