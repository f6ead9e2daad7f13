package health

import (
	"regexp"
	"strings"
)

// AnswerPrefix opens every knowledge base answer.
const AnswerPrefix = "Based on my health verification:"

// NoMatch is returned when nothing relevant is indexed.
const NoMatch = "I couldn't find relevant health information for your query."

const maxPlainLength = 700

var sectionHeader = regexp.MustCompile(`\*\*([A-Za-z/&' ]+):\*\*`)

// sectionLabels maps label headings in the corpus to display headings, in display order.
var sectionLabels = []struct {
	keys  []string
	label string
}{
	{[]string{"indications", "indications and usage", "uses"}, "📋 Indications:"},
	{[]string{"contraindications", "do not use"}, "⛔ Do Not Use If:"},
	{[]string{"warnings", "warnings and precautions"}, "⚠️ Warnings:"},
	{[]string{"drug interactions", "interactions", "food interactions"}, "🔁 Drug/Food Interactions:"},
	{[]string{"dosage", "dosage and administration"}, "💊 Dosage:"},
}

// extractSections splits label text on its **Heading:** markers.
func extractSections(text string) map[string]string {
	matches := sectionHeader.FindAllStringSubmatchIndex(text, -1)
	sections := make(map[string]string, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		name := strings.ToLower(strings.TrimSpace(text[m[2]:m[3]]))
		body := strings.TrimSpace(text[m[1]:end])
		if body != "" {
			sections[name] = body
		}
	}
	return sections
}

// FormatDocument renders one retrieved document for chat. Label style documents are
// reduced to their known sections; anything else is shown as trimmed plain text.
func FormatDocument(doc Document) string {
	var b strings.Builder
	if title := strings.TrimSpace(doc.Title); title != "" {
		b.WriteString("**" + title + "**\n")
	}

	sections := extractSections(doc.Text)
	wrote := false
	for _, s := range sectionLabels {
		for _, key := range s.keys {
			body, ok := sections[key]
			if !ok {
				continue
			}
			b.WriteString(s.label + " " + body + "\n")
			wrote = true
			break
		}
	}
	if !wrote {
		plain := strings.TrimSpace(sectionHeader.ReplaceAllString(doc.Text, "$1:"))
		if len(plain) > maxPlainLength {
			cut := strings.LastIndex(plain[:maxPlainLength], " ")
			if cut <= 0 {
				cut = maxPlainLength
			}
			plain = plain[:cut] + "..."
		}
		b.WriteString(plain + "\n")
	}
	return strings.TrimSpace(b.String())
}

// FormatAnswer joins formatted documents under the standard prefix.
func FormatAnswer(docs []Document) string {
	if len(docs) == 0 {
		return NoMatch
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, FormatDocument(doc))
	}
	return AnswerPrefix + "\n" + strings.Join(parts, "\n\n")
}
