package telegram

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage splits text into chunks of at most maxLen runes, preferring to
// cut after a newline, then after a space, in the second half of a chunk.
// Code fences cut in two are closed and reopened so every chunk renders.
func SplitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	inFence := false
	for len(runes) > 0 {
		prefix := ""
		if inFence {
			prefix = "```\n"
		}
		budget := maxLen - utf8.RuneCountInString(prefix)
		if len(runes) <= budget {
			parts = append(parts, prefix+string(runes))
			break
		}
		budget -= 4 // room for a closing fence

		splitAt := lastIndexRune(runes[:budget], '\n')
		if splitAt <= budget/2 {
			splitAt = lastIndexRune(runes[:budget], ' ')
		}
		if splitAt <= budget/2 {
			splitAt = budget
		} else {
			splitAt++
		}

		chunk := prefix + string(runes[:splitAt])
		if strings.Count(chunk, "```")%2 == 1 {
			chunk += "\n```"
			inFence = true
		} else {
			inFence = false
		}
		parts = append(parts, chunk)
		runes = runes[splitAt:]
	}

	return parts
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// FixMarkdown closes unterminated code blocks and inline code so partial or
// truncated replies still parse.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}
	return fixInlineCode(text)
}

func fixInlineCode(text string) string {
	var builder strings.Builder
	inCodeBlock := false
	inlineOpen := false

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && string(runes[i:i+3]) == "```" {
			if inlineOpen {
				builder.WriteRune('`')
				inlineOpen = false
			}
			inCodeBlock = !inCodeBlock
			builder.WriteString("```")
			i += 2
			continue
		}

		if !inCodeBlock && runes[i] == '`' {
			inlineOpen = !inlineOpen
		}

		builder.WriteRune(runes[i])
	}

	if inlineOpen {
		builder.WriteRune('`')
	}

	return builder.String()
}

// Truncate shortens text to at most maxLen runes, marking the cut.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	return string([]rune(text)[:maxLen-1]) + "…"
}
