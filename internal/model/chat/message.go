package chat

import (
	"strings"
	"time"
)

// Role 标识消息的作者。
type Role string

const (
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
	RoleSystem Role = "system"
)

// Message is a display-only chat record. It is never sent back to the backend
// except as the raw text of the next chat request.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Paragraphs returns the non-blank lines of the content. System messages are
// rendered as one block and keep their line structure untouched.
func (m Message) Paragraphs() []string {
	if m.Role == RoleSystem {
		return []string{m.Content}
	}

	lines := strings.Split(m.Content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
