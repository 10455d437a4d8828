// Package assistant is the client of the conversational verification
// assistant: PDF upload, chat turns and session reset.
package assistant

import (
	"context"
	"io"
	"net/http"

	"github.com/zhouzirui/paper-verify/internal/client"
	"github.com/zhouzirui/paper-verify/internal/model/chat"
)

// 每个操作失败时返回的固定提示。
const (
	MsgUploadFailed = "文件上传失败"
	MsgSendFailed   = "发送消息失败"
	MsgResetFailed  = "重置会话失败"
)

// Client talks to the assistant API rooted at a base URL such as
// http://localhost:5000. The session id is passed into every call.
type Client struct {
	base *client.Base
}

// New creates a Client.
func New(baseURL string, opts ...client.Option) *Client {
	return &Client{base: client.NewBase(baseURL, opts...)}
}

// Upload sends a paper for verification within the given session.
func (c *Client) Upload(ctx context.Context, sessionID chat.SessionID, filename string, file io.Reader) (*chat.UploadResult, error) {
	req := client.Request{Op: "upload paper", FailMessage: MsgUploadFailed, Method: http.MethodPost, Path: "/upload"}
	body, err := c.base.DoMultipart(ctx, req, filename, file, map[string]string{"session_id": sessionID.String()})
	if err != nil {
		return nil, err
	}

	var out chat.UploadResult
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// Send posts one chat turn.
func (c *Client) Send(ctx context.Context, sessionID chat.SessionID, message string) (*chat.Reply, error) {
	req := client.Request{Op: "send message", FailMessage: MsgSendFailed, Method: http.MethodPost, Path: "/chat"}
	payload := struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}{Message: message, SessionID: sessionID.String()}

	body, err := c.base.DoJSON(ctx, req, payload)
	if err != nil {
		return nil, err
	}

	var out chat.Reply
	if err := client.Decode(req.Op, body, &out); err != nil {
		return nil, err
	}
	out.Raw = body
	return &out, nil
}

// Reset clears the server-side history of the session. The response body is
// not interpreted.
func (c *Client) Reset(ctx context.Context, sessionID chat.SessionID) error {
	req := client.Request{Op: "reset session", FailMessage: MsgResetFailed, Method: http.MethodPost, Path: "/reset"}
	payload := struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID.String()}

	_, err := c.base.DoJSON(ctx, req, payload)
	return err
}
