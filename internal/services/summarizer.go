package services

import (
	"strings"

	"github.com/yungbote/treechat-backend/internal/clients/llm"
)

const (
	// compactionMaxKeep is the path length beyond which the prefix is
	// replaced with a synthetic summary message.
	compactionMaxKeep = 20

	compactionLineMaxChars = 120
)

// CompactPath keeps the most recent turns of an ordered path and folds the
// earlier prefix into one synthetic system message, so provider input stays
// bounded for deep branches. Paths at or under the keep limit pass through
// unchanged.
func CompactPath(msgs []llm.ChatMessage) []llm.ChatMessage {
	if len(msgs) <= compactionMaxKeep {
		return msgs
	}

	cut := len(msgs) - (compactionMaxKeep - 1)
	dropped := msgs[:cut]
	kept := msgs[cut:]

	var b strings.Builder
	b.WriteString("Previous context (summarized):")
	for _, m := range dropped {
		b.WriteString("\n- ")
		b.WriteString(m.Role)
		b.WriteString(": ")
		line := strings.Join(strings.Fields(m.Content), " ")
		if runes := []rune(line); len(runes) > compactionLineMaxChars {
			line = string(runes[:compactionLineMaxChars]) + "..."
		}
		b.WriteString(line)
	}

	out := make([]llm.ChatMessage, 0, len(kept)+1)
	out = append(out, llm.ChatMessage{Role: "system", Content: b.String()})
	out = append(out, kept...)
	return out
}
