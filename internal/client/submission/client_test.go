package submission

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/paper-verify/internal/client"
	model "github.com/zhouzirui/paper-verify/internal/model/submission"
)

type recordedRequest struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Body        []byte
}

// recorder is a scripted backend that records every request it sees.
type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, recordedRequest{
		Method:      req.Method,
		Path:        req.URL.EscapedPath(),
		RawQuery:    req.URL.RawQuery,
		ContentType: req.Header.Get("Content-Type"),
		Body:        body,
	})
	status, respBody := r.status, r.body
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(respBody))
}

func (r *recorder) calls() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

func newTestClient(t *testing.T, rec *recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api")
}

func TestOperationsUseDocumentedRoutes(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
	}{
		{
			name:       "verify",
			call:       func(c *Client) error { _, err := c.VerifySubmission(ctx, "s1"); return err },
			wantMethod: http.MethodPost,
			wantPath:   "/api/verify/s1",
		},
		{
			name:       "verify file",
			call:       func(c *Client) error { _, err := c.VerifySubmissionFile(ctx, "s1", "f9"); return err },
			wantMethod: http.MethodPost,
			wantPath:   "/api/verify/s1/file/f9",
		},
		{
			name:       "status",
			call:       func(c *Client) error { _, err := c.GetStatus(ctx, "s1"); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/api/status/s1",
		},
		{
			name:       "results",
			call:       func(c *Client) error { _, err := c.GetResults(ctx, "s1"); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/api/results/s1",
		},
		{
			name:       "escaped id",
			call:       func(c *Client) error { _, err := c.GetStatus(ctx, "a/b c"); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/api/status/a%2Fb%20c",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{body: `{}`}
			c := newTestClient(t, rec)

			require.NoError(t, tc.call(c))

			calls := rec.calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tc.wantMethod, calls[0].Method)
			assert.Equal(t, tc.wantPath, calls[0].Path)
			assert.Empty(t, calls[0].Body)
		})
	}
}

func TestListSubmissionsLimit(t *testing.T) {
	cases := []struct {
		limit int
		want  string
	}{
		{limit: 0, want: "limit=50"},
		{limit: -3, want: "limit=50"},
		{limit: 7, want: "limit=7"},
	}

	for _, tc := range cases {
		rec := &recorder{body: `[{"id":"s1","files":[],"status":"pending","progress":0,"current_step":"等待验证...","results":null,"error":null,"created_at":"2025-01-02T03:04:05.000001","updated_at":null}]`}
		c := newTestClient(t, rec)

		list, err := c.ListSubmissions(context.Background(), tc.limit)
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, model.ID("s1"), list.Items[0].ID)
		assert.Equal(t, "2025-01-02T03:04:05.000001", list.Items[0].CreatedAt)
		assert.Equal(t, tc.want, rec.calls()[0].RawQuery)
	}
}

func TestCreateSubmissionSendsJSONArray(t *testing.T) {
	rec := &recorder{body: `{"submission_id":"s1","file_count":2,"message":"提交创建成功"}`}
	c := newTestClient(t, rec)

	created, err := c.CreateSubmission(context.Background(), []model.ID{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, model.ID("s1"), created.SubmissionID)
	assert.Equal(t, 2, created.FileCount)

	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/api/submissions", calls[0].Path)
	assert.Equal(t, "application/json", calls[0].ContentType)
	assert.JSONEq(t, `["f1","f2"]`, string(calls[0].Body))
}

func TestCreateSubmissionFailureUsesFixedMessage(t *testing.T) {
	rec := &recorder{status: http.StatusNotFound, body: `{"detail":"文件 f2 不存在"}`}
	c := newTestClient(t, rec)

	created, err := c.CreateSubmission(context.Background(), []model.ID{"f1", "f2"})
	require.Error(t, err)
	assert.Nil(t, created)
	assert.Equal(t, "创建提交失败", err.Error())
	assert.True(t, errors.Is(err, client.ErrRequestFailed))

	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "文件 f2 不存在", apiErr.Detail)
	assert.Len(t, rec.calls(), 1)
}

func TestEveryOperationFailsWithItsOwnMessage(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		call func(c *Client) error
		want string
	}{
		{call: func(c *Client) error { _, err := c.UploadFile(ctx, "a.pdf", strings.NewReader("x")); return err }, want: MsgUploadFailed},
		{call: func(c *Client) error { _, err := c.CreateSubmission(ctx, nil); return err }, want: MsgCreateFailed},
		{call: func(c *Client) error { _, err := c.VerifySubmission(ctx, "s"); return err }, want: MsgVerifyFailed},
		{call: func(c *Client) error { _, err := c.VerifySubmissionFile(ctx, "s", "f"); return err }, want: MsgVerifyFileFailed},
		{call: func(c *Client) error { _, err := c.GetStatus(ctx, "s"); return err }, want: MsgStatusFailed},
		{call: func(c *Client) error { _, err := c.GetResults(ctx, "s"); return err }, want: MsgResultsFailed},
		{call: func(c *Client) error { _, err := c.ListSubmissions(ctx, 0); return err }, want: MsgListFailed},
		{call: func(c *Client) error {
			_, err := c.ReplaceFile(ctx, "s", model.ReplaceFileRequest{OldFileID: "a", NewFileID: "b"})
			return err
		}, want: MsgReplaceFileFailed},
	}

	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			rec := &recorder{status: http.StatusInternalServerError, body: `{"detail":"boom"}`}
			c := newTestClient(t, rec)

			err := tc.call(c)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
			assert.Len(t, rec.calls(), 1)
		})
	}
}

func TestSuccessKeepsBodyVerbatim(t *testing.T) {
	body := `{"submission_id":"s1","status":"completed","files":[{"file_id":"f1","filename":"a.pdf","status":"success","result":{"file_id":"f1","filename":"a.pdf","verification_status":"success","ai_conclusion":"验证通过","tool_results":[{"status":"success","unknown":1}]}}],"extra_field":true}`
	rec := &recorder{body: body}
	c := newTestClient(t, rec)

	results, err := c.GetResults(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, body, string(results.Raw))
	require.Len(t, results.Files, 1)
	assert.Equal(t, "验证通过", results.Files[0].Result.AIConclusion)
	require.Len(t, results.Files[0].Result.ToolResults, 1)
	assert.JSONEq(t, `{"status":"success","unknown":1}`, string(results.Files[0].Result.ToolResults[0]))
}

func TestUploadFileMultipart(t *testing.T) {
	rec := &recorder{body: `{"file_id":"f1","filename":"paper.pdf","message":"文件上传成功"}`}
	c := newTestClient(t, rec)

	uploaded, err := c.UploadFile(context.Background(), "paper.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, model.ID("f1"), uploaded.FileID)

	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].ContentType, "multipart/form-data"))
	assert.Contains(t, string(calls[0].Body), `name="file"; filename="paper.pdf"`)
}

func TestUploadFileRejectsEmptyPayload(t *testing.T) {
	rec := &recorder{body: `{}`}
	c := newTestClient(t, rec)

	_, err := c.UploadFile(context.Background(), "paper.pdf", strings.NewReader(""))
	require.ErrorIs(t, err, client.ErrEmptyFile)
	assert.Empty(t, rec.calls())
}

func TestReplaceFileBody(t *testing.T) {
	rec := &recorder{body: `{"message":"文件替换成功","submission_id":"s1","files":[{"file_id":"f3","filename":"new.pdf"}]}`}
	c := newTestClient(t, rec)

	ack, err := c.ReplaceFile(context.Background(), "s1", model.ReplaceFileRequest{OldFileID: "f1", NewFileID: "f3", Filename: "new.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []model.FileRef{{FileID: "f3", Filename: "new.pdf"}}, ack.Files)

	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/api/submissions/s1/replace-file", calls[0].Path)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(calls[0].Body, &sent))
	assert.Equal(t, map[string]string{"old_file_id": "f1", "new_file_id": "f3", "filename": "new.pdf"}, sent)
}

func TestNumericIDsAreAccepted(t *testing.T) {
	rec := &recorder{body: `{"submission_id":42,"file_count":2}`}
	c := newTestClient(t, rec)

	created, err := c.CreateSubmission(context.Background(), []model.ID{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, model.ID("42"), created.SubmissionID)
	assert.Equal(t, 2, created.FileCount)
	assert.JSONEq(t, `{"submission_id":42,"file_count":2}`, string(created.Raw))

	rec = &recorder{body: `[{"id":7,"files":[{"file_id":-1.5e3,"filename":"a.pdf"}],"status":"pending"}]`}
	c = newTestClient(t, rec)

	list, err := c.ListSubmissions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, model.ID("7"), list.Items[0].ID)
	assert.Equal(t, model.ID("-1.5e3"), list.Items[0].Files[0].FileID)
}

func TestMismatchedFieldTypesStillReturnBody(t *testing.T) {
	body := `{"submission_id":"s1","status":3,"progress":"half","current_step":"正在验证..."}`
	rec := &recorder{body: body}
	c := newTestClient(t, rec)

	status, err := c.GetStatus(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, body, string(status.Raw))
	assert.Equal(t, model.ID("s1"), status.SubmissionID)
	assert.Equal(t, "正在验证...", status.CurrentStep)
	assert.Empty(t, status.Status)
	assert.Zero(t, status.Progress)

	rec = &recorder{body: `{"file_id":true,"filename":"a.pdf"}`}
	c = newTestClient(t, rec)
	uploaded, err := c.UploadFile(context.Background(), "a.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Empty(t, uploaded.FileID)
	assert.Equal(t, "a.pdf", uploaded.Filename)
}

func TestMalformedJSONIsNotAPIError(t *testing.T) {
	rec := &recorder{body: `<html>`}
	c := newTestClient(t, rec)

	_, err := c.GetStatus(context.Background(), "s1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, client.ErrRequestFailed))
}

func TestWaitForCompletion(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()

		status := model.StatusProcessing
		if n >= 3 {
			status = model.StatusCompleted
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"submission_id": "s1", "status": status, "progress": n * 30, "current_step": "step"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	var seen []int
	status, err := c.WaitForCompletion(context.Background(), "s1", time.Millisecond, func(s *model.Status) {
		seen = append(seen, s.Progress)
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, status.Status)
	assert.Equal(t, []int{30, 60, 90}, seen)
}

func TestWaitForCompletionStopsOnContext(t *testing.T) {
	rec := &recorder{body: `{"submission_id":"s1","status":"processing","progress":10,"current_step":"x"}`}
	c := newTestClient(t, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	status, err := c.WaitForCompletion(ctx, "s1", 5*time.Millisecond, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, status)
	assert.Equal(t, model.StatusProcessing, status.Status)
}

func TestWaitForCompletionRejectsBadInterval(t *testing.T) {
	c := New("http://unused.test")
	_, err := c.WaitForCompletion(context.Background(), "s1", 0, nil)
	require.Error(t, err)
}
