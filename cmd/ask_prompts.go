package cmd

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bimmerbailey/dmask/internal/masking"
)

// maskedDocument is one masked input included in an ask prompt.
type maskedDocument struct {
	Source  string
	Format  string
	Content string
}

// buildAskSystemPrompt creates the system prompt for the ask command.
func buildAskSystemPrompt() string {
	return `You are a helpful assistant answering questions about structured documents.
The documents have been masked before being shared with you: sensitive values
were replaced by placeholders such as "******", zeros, or [TYPE:xxxx] tokens,
and some fields were removed entirely.

Guidelines:
- Answer the user's specific question using only the provided documents
- Treat masked values as unknown; never guess or reconstruct them
- Do not ask for the original values
- Say so when the answer depends on data that was masked or removed
- Be concise but thorough`
}

// buildAskUserPrompt combines the question and the masked documents. The
// documents are cut so that their content fits in limit bytes; the second
// result reports whether anything was cut.
func buildAskUserPrompt(question string, docs []maskedDocument, limit int) (string, bool) {
	var sb strings.Builder
	truncated := false

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	remaining := limit
	for _, doc := range docs {
		content := doc.Content
		if len(content) > remaining {
			content = truncateUTF8(content, remaining) + "\n... [truncated]"
			truncated = true
		}
		remaining -= min(len(doc.Content), remaining)

		fmt.Fprintf(&sb, "Document %s (%s):\n", doc.Source, doc.Format)
		sb.WriteString("```\n")
		sb.WriteString(strings.TrimRight(content, "\n"))
		sb.WriteString("\n```\n\n")
	}

	return strings.TrimRight(sb.String(), "\n"), truncated
}

// buildAskContext describes the inputs and what masking did to them.
func buildAskContext(files []string, report masking.Report) string {
	var sb strings.Builder

	sb.WriteString("Context:\n")

	if len(files) > 1 {
		fmt.Fprintf(&sb, "- Documents from %d files: %s\n", len(files), strings.Join(files, ", "))
	} else if len(files) == 1 {
		fmt.Fprintf(&sb, "- Document from file: %s\n", files[0])
	}

	if report.Replaced > 0 {
		fmt.Fprintf(&sb, "- %d value(s) masked\n", report.Replaced)
	}
	if report.Removed > 0 {
		fmt.Fprintf(&sb, "- %d field(s) removed\n", report.Removed)
	}

	return sb.String()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

