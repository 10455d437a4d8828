package ai

import (
	"fmt"
	"strings"
)

// systemPrompt 约束助手只讨论论文核验相关的话题。
const systemPrompt = `你是论文验证助手，帮助用户核实学术论文的真实性及作者归属。
回答规则：
- 只输出中文结论与理由，尽量简洁。
- 无法确认的信息要明确说明，不要编造 DOI、作者或出版商。
- 用户询问与论文核验无关的内容时，礼貌地引导回论文验证。`

// paperPrompt 是上传论文后的首轮提问。
func paperPrompt(filename string, size int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "文件：%s（%d 字节）\n", filename, size)
	b.WriteString("请识别这篇论文的关键信息，包括：标题、作者列表、DOI号（如果有）、发表日期。")
	b.WriteString("如果这是一篇学术论文，请给出是否可信的初步结论。")
	return b.String()
}
