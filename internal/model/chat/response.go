package chat

import "encoding/json"

// UploadResult 是 POST /upload 的响应。Raw 保留原始响应体。
type UploadResult struct {
	Success     bool            `json:"success,omitempty"`
	Filename    string          `json:"filename"`
	Answer      string          `json:"answer,omitempty"`
	Error       string          `json:"error,omitempty"`
	ToolResults []ToolResult    `json:"tool_results,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// ToolResult 是后端工具调用（论文核验）的单条结果。
type ToolResult struct {
	Status  string       `json:"status,omitempty"`
	Message string       `json:"message,omitempty"`
	Detail  *PaperDetail `json:"detail,omitempty"`
}

// PaperDetail 汇总了核验命中的论文信息，字段均可缺省。
type PaperDetail struct {
	Title           string   `json:"title,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	Journal         string   `json:"journal,omitempty"`
	MatchedAuthors  []string `json:"matched_authors,omitempty"`
	OfficialAuthors []string `json:"official_authors,omitempty"`
	ProvidedTitle   string   `json:"provided_title,omitempty"`
	OfficialTitle   string   `json:"official_title,omitempty"`
	OfficialDOI     string   `json:"official_doi,omitempty"`
}

// Reply 是 POST /chat 的响应，Reply 与 Error 二选一。
type Reply struct {
	Success bool            `json:"success,omitempty"`
	Reply   string          `json:"reply,omitempty"`
	Error   string          `json:"error,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// Failed reports whether the backend answered with an error variant.
func (r *Reply) Failed() bool {
	return r != nil && r.Error != ""
}

// Failed reports whether the backend answered with an error variant.
func (r *UploadResult) Failed() bool {
	return r != nil && r.Error != ""
}
