package controller

import (
	"strings"

	"github.com/zhouzirui/paper-verify/internal/client"
	"github.com/zhouzirui/paper-verify/internal/model/chat"
)

func (c *Controller) renderUploadLocked(result *chat.UploadResult) {
	c.appendLocked(chat.RoleSystem, prefixUploaded+result.Filename)
	if result.Answer != "" {
		c.appendLocked(chat.RoleBot, result.Answer)
	}
	for _, tr := range result.ToolResults {
		if tr.Detail == nil {
			continue
		}
		c.appendLocked(chat.RoleSystem, DetailText(tr.Detail))
	}
}

// DetailText formats the paper fields that are present under a fixed header.
func DetailText(d *chat.PaperDetail) string {
	var b strings.Builder
	b.WriteString(detailHeader)
	if d.Title != "" {
		b.WriteString("\n标题：" + d.Title)
	}
	if d.DOI != "" {
		b.WriteString("\nDOI：" + d.DOI)
	}
	if d.Publisher != "" {
		b.WriteString("\n出版商：" + d.Publisher)
	}
	if d.MatchedAuthors != nil {
		b.WriteString("\n匹配作者：" + strings.Join(d.MatchedAuthors, ", "))
	}
	return b.String()
}

// failureText prefers the error text the backend sent over the local message.
func failureText(prefix string, err error) string {
	if detail := client.BackendDetail(err); detail != "" {
		return prefixError + detail
	}
	return prefix + err.Error()
}
