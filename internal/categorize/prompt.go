package categorize

import (
	"strings"
	"unicode/utf8"
)

// MaxPromptChars bounds how much document text is sent to the model.
const MaxPromptChars = 4000

const systemPrompt = `You classify business documents.
Answer with exactly one of these labels and nothing else:
Finance
Security
Architecture
Compliance
Integrations`

// BuildPrompt returns the user message for a document. Text wins over the
// filename; the filename is only used when no text was extracted.
func BuildPrompt(text, fileName string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "Filename: " + strings.TrimSpace(fileName)
	}
	if utf8.RuneCountInString(trimmed) > MaxPromptChars {
		trimmed = string([]rune(trimmed)[:MaxPromptChars])
	}
	var b strings.Builder
	b.WriteString("Classify this document.\n\n")
	b.WriteString(trimmed)
	return b.String()
}
