package submission

import "encoding/json"

// Status values reported by the backend for a submission.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// UploadedFile 是 POST /upload 的响应。
type UploadedFile struct {
	FileID   ID              `json:"file_id"`
	Filename string          `json:"filename"`
	Message  string          `json:"message,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// Created 是 POST /submissions 的响应。
type Created struct {
	SubmissionID ID              `json:"submission_id"`
	FileCount    int             `json:"file_count"`
	Message      string          `json:"message,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// VerifyAck 是开始验证（整体或单文件）的响应。
type VerifyAck struct {
	SubmissionID ID              `json:"submission_id"`
	Status       string          `json:"status"`
	Message      string          `json:"message,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// Status 是 GET /status/{id} 的响应。
type Status struct {
	SubmissionID ID              `json:"submission_id"`
	Status       string          `json:"status"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `json:"current_step"`
	Raw          json.RawMessage `json:"-"`
}

// Done reports whether the submission reached a terminal state.
func (s *Status) Done() bool {
	return s != nil && (s.Status == StatusCompleted || s.Status == StatusFailed)
}

// Results 是 GET /results/{id} 的响应。
type Results struct {
	SubmissionID ID                 `json:"submission_id"`
	Status       string             `json:"status"`
	Files        []FileVerification `json:"files"`
	Raw          json.RawMessage    `json:"-"`
}

// FileVerification 是单个文件的验证记录。
type FileVerification struct {
	FileID   ID         `json:"file_id"`
	Filename string     `json:"filename"`
	Status   string     `json:"status"`
	Result   FileResult `json:"result"`
}

// FileResult carries the backend conclusion; tool results are left undecoded
// because their shape depends on the tool.
type FileResult struct {
	FileID             ID                `json:"file_id"`
	Filename           string            `json:"filename"`
	VerificationStatus string            `json:"verification_status"`
	AIConclusion       string            `json:"ai_conclusion,omitempty"`
	ToolResults        []json.RawMessage `json:"tool_results"`
}

// FileRef 标识提交中的一个文件。
type FileRef struct {
	FileID   ID     `json:"file_id"`
	Filename string `json:"filename"`
}

// Summary 是历史记录列表中的一项。
type Summary struct {
	ID          ID              `json:"id"`
	Files       []FileRef       `json:"files"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"current_step"`
	Results     json.RawMessage `json:"results,omitempty"`
	Error       *string         `json:"error"`
	// 时间戳按原样保留，后端输出的 ISO 8601 不带时区。
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// SummaryList 是 GET /submissions 的响应。
type SummaryList struct {
	Items []Summary
	Raw   json.RawMessage
}

// ReplaceFileRequest 替换提交中的某个文件。
type ReplaceFileRequest struct {
	OldFileID ID     `json:"old_file_id"`
	NewFileID ID     `json:"new_file_id"`
	Filename  string `json:"filename,omitempty"`
}

// ReplaceFileAck 是替换文件的响应。
type ReplaceFileAck struct {
	Message      string          `json:"message"`
	SubmissionID ID              `json:"submission_id"`
	Files        []FileRef       `json:"files"`
	Raw          json.RawMessage `json:"-"`
}
