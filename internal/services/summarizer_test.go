package services

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/yungbote/treechat-backend/internal/clients/llm"
)

func chatPath(n int) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msgs = append(msgs, llm.ChatMessage{Role: role, Content: fmt.Sprintf("message %d", i)})
	}
	return msgs
}

func TestCompactPathPassesShortPathsThrough(t *testing.T) {
	for _, n := range []int{0, 1, compactionMaxKeep} {
		msgs := chatPath(n)
		out := CompactPath(msgs)
		if len(out) != n {
			t.Fatalf("path of %d should pass through, got %d", n, len(out))
		}
		for i := range msgs {
			if out[i] != msgs[i] {
				t.Fatalf("message %d changed during pass-through", i)
			}
		}
	}
}

func TestCompactPathFoldsPrefixIntoSummary(t *testing.T) {
	msgs := chatPath(30)
	out := CompactPath(msgs)

	if len(out) != compactionMaxKeep {
		t.Fatalf("expected %d messages after compaction, got %d", compactionMaxKeep, len(out))
	}
	head := out[0]
	if head.Role != "system" || !strings.HasPrefix(head.Content, "Previous context (summarized):") {
		t.Fatalf("unexpected summary head %+v", head)
	}
	// 30 - (20-1) = 11 dropped messages, one bullet each.
	if got := strings.Count(head.Content, "\n- "); got != 11 {
		t.Fatalf("expected 11 summary lines, got %d", got)
	}
	if !strings.Contains(head.Content, "user: message 0") {
		t.Fatalf("summary should mention the dropped head: %s", head.Content)
	}
	// The most recent messages survive verbatim and in order.
	if out[1] != msgs[11] || out[len(out)-1] != msgs[29] {
		t.Fatalf("kept suffix mismatch")
	}
}

func TestCompactPathTruncatesLongSummaryLines(t *testing.T) {
	msgs := chatPath(25)
	msgs[0].Content = strings.Repeat("x ", 200)
	out := CompactPath(msgs)

	lines := strings.Split(out[0].Content, "\n")
	first := lines[1]
	if !strings.HasSuffix(first, "...") {
		t.Fatalf("long line should truncate with ellipsis: %q", first)
	}
	body := strings.TrimPrefix(first, "- user: ")
	if got := len(strings.TrimSuffix(body, "...")); got != compactionLineMaxChars {
		t.Fatalf("expected %d chars before ellipsis, got %d", compactionLineMaxChars, got)
	}
}

func TestCompactPathSummaryLinesStayValidUTF8(t *testing.T) {
	msgs := chatPath(25)
	msgs[0].Content = strings.Repeat("日", 200)
	out := CompactPath(msgs)

	if !utf8.ValidString(out[0].Content) {
		t.Fatalf("summary contains invalid UTF-8")
	}
	lines := strings.Split(out[0].Content, "\n")
	body := strings.TrimPrefix(lines[1], "- user: ")
	if got := len([]rune(strings.TrimSuffix(body, "..."))); got != compactionLineMaxChars {
		t.Fatalf("expected %d runes before ellipsis, got %d", compactionLineMaxChars, got)
	}
}
