// Package submission is the typed client of the submission/verification API:
// one method per backend capability, one HTTP request per call.
package submission

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zhouzirui/paper-verify/internal/client"
	model "github.com/zhouzirui/paper-verify/internal/model/submission"
)

// DefaultListLimit is used by ListSubmissions when no positive limit is given.
const DefaultListLimit = 50

// 每个操作失败时返回的固定提示。
const (
	MsgUploadFailed      = "文件上传失败"
	MsgCreateFailed      = "创建提交失败"
	MsgVerifyFailed      = "开始验证失败"
	MsgVerifyFileFailed  = "开始单文件验证失败"
	MsgStatusFailed      = "获取状态失败"
	MsgResultsFailed     = "获取结果失败"
	MsgListFailed        = "获取历史记录失败"
	MsgReplaceFileFailed = "替换文件失败"
)

// Client talks to the submission API rooted at a base URL such as
// http://localhost:8000/api.
type Client struct {
	base *client.Base
}

// New creates a Client.
func New(baseURL string, opts ...client.Option) *Client {
	return &Client{base: client.NewBase(baseURL, opts...)}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.BaseURL()
}

// UploadFile uploads one file as multipart field "file".
func (c *Client) UploadFile(ctx context.Context, filename string, file io.Reader) (*model.UploadedFile, error) {
	req := client.Request{Op: "upload file", FailMessage: MsgUploadFailed, Method: http.MethodPost, Path: "/upload"}
	body, err := c.base.DoMultipart(ctx, req, filename, file, nil)
	if err != nil {
		return nil, err
	}

	var out model.UploadedFile
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// CreateSubmission groups previously uploaded files into a submission.
func (c *Client) CreateSubmission(ctx context.Context, fileIDs []model.ID) (*model.Created, error) {
	if fileIDs == nil {
		fileIDs = []model.ID{}
	}

	req := client.Request{Op: "create submission", FailMessage: MsgCreateFailed, Method: http.MethodPost, Path: "/submissions"}
	body, err := c.base.DoJSON(ctx, req, fileIDs)
	if err != nil {
		return nil, err
	}

	var out model.Created
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// VerifySubmission starts verification of every file in the submission.
func (c *Client) VerifySubmission(ctx context.Context, submissionID model.ID) (*model.VerifyAck, error) {
	req := client.Request{
		Op:          "verify submission",
		FailMessage: MsgVerifyFailed,
		Method:      http.MethodPost,
		Path:        "/verify/" + url.PathEscape(submissionID.String()),
	}
	return c.verify(ctx, req)
}

// VerifySubmissionFile starts verification of a single file of the submission.
func (c *Client) VerifySubmissionFile(ctx context.Context, submissionID, fileID model.ID) (*model.VerifyAck, error) {
	req := client.Request{
		Op:          "verify submission file",
		FailMessage: MsgVerifyFileFailed,
		Method:      http.MethodPost,
		Path:        "/verify/" + url.PathEscape(submissionID.String()) + "/file/" + url.PathEscape(fileID.String()),
	}
	return c.verify(ctx, req)
}

func (c *Client) verify(ctx context.Context, req client.Request) (*model.VerifyAck, error) {
	body, err := c.base.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var out model.VerifyAck
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// GetStatus fetches the progress of a submission.
func (c *Client) GetStatus(ctx context.Context, submissionID model.ID) (*model.Status, error) {
	req := client.Request{
		Op:          "get status",
		FailMessage: MsgStatusFailed,
		Method:      http.MethodGet,
		Path:        "/status/" + url.PathEscape(submissionID.String()),
	}
	body, err := c.base.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var out model.Status
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// GetResults fetches the verification results of a submission.
func (c *Client) GetResults(ctx context.Context, submissionID model.ID) (*model.Results, error) {
	req := client.Request{
		Op:          "get results",
		FailMessage: MsgResultsFailed,
		Method:      http.MethodGet,
		Path:        "/results/" + url.PathEscape(submissionID.String()),
	}
	body, err := c.base.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var out model.Results
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// ListSubmissions returns recent submissions, newest first. limit <= 0 means
// DefaultListLimit.
func (c *Client) ListSubmissions(ctx context.Context, limit int) (*model.SummaryList, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	req := client.Request{
		Op:          "list submissions",
		FailMessage: MsgListFailed,
		Method:      http.MethodGet,
		Path:        "/submissions?limit=" + strconv.Itoa(limit),
	}
	body, err := c.base.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &model.SummaryList{Raw: body}
	if err := client.Decode(req.Op, body, &out.Items); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceFile swaps one file of a submission for another uploaded file.
func (c *Client) ReplaceFile(ctx context.Context, submissionID model.ID, payload model.ReplaceFileRequest) (*model.ReplaceFileAck, error) {
	req := client.Request{
		Op:          "replace submission file",
		FailMessage: MsgReplaceFileFailed,
		Method:      http.MethodPost,
		Path:        "/submissions/" + url.PathEscape(submissionID.String()) + "/replace-file",
	}
	body, err := c.base.DoJSON(ctx, req, payload)
	if err != nil {
		return nil, err
	}

	var out model.ReplaceFileAck
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}
