package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/paper-verify/internal/client"
	"github.com/zhouzirui/paper-verify/internal/client/submission"
	"github.com/zhouzirui/paper-verify/internal/controller"
	"github.com/zhouzirui/paper-verify/internal/handler"
	aiservice "github.com/zhouzirui/paper-verify/internal/service/ai"
	chatservice "github.com/zhouzirui/paper-verify/internal/service/chat"
	submissionservice "github.com/zhouzirui/paper-verify/internal/service/submission"
)

type result struct {
	out    string
	errOut string
	err    error
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	aiSvc, err := aiservice.NewService(context.Background(), aiservice.NewEchoModel(), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(handler.NewRouter(submissionservice.NewService(nil), chatservice.NewService(), aiSvc, nil))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, stdin string, args ...string) result {
	t.Helper()
	t.Setenv("POLL_INTERVAL", "1ms")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(append([]string{"--api-url", srv.URL + "/api", "--assistant-url", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSubmissionRun(t *testing.T) {
	srv := newBackend(t)
	a := writeFile(t, "a.pdf", "%PDF-a")
	b := writeFile(t, "b.png", "png")

	res := run(t, srv, "", "submission", "run", a, b)
	require.NoError(t, res.err)

	var results struct {
		SubmissionID string `json:"submission_id"`
		Status       string `json:"status"`
		Files        []struct {
			Filename string `json:"filename"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &results))
	assert.Equal(t, "completed", results.Status)
	require.Len(t, results.Files, 2)
	assert.ElementsMatch(t, []string{"a.pdf", "b.png"}, []string{results.Files[0].Filename, results.Files[1].Filename})

	assert.Contains(t, res.errOut, "created with 2 files")
	assert.Contains(t, res.errOut, "[100%] completed")

	list := run(t, srv, "", "submission", "list", "--limit", "1")
	require.NoError(t, list.err)
	assert.Contains(t, list.out, results.SubmissionID)
}

func TestSubmissionStepByStep(t *testing.T) {
	srv := newBackend(t)
	path := writeFile(t, "paper.pdf", "%PDF-1.4")

	up := run(t, srv, "", "submission", "upload", path)
	require.NoError(t, up.err)
	var file struct {
		FileID string `json:"file_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(up.out), &file))
	require.NotEmpty(t, file.FileID)

	created := run(t, srv, "", "submission", "create", file.FileID)
	require.NoError(t, created.err)
	var sub struct {
		SubmissionID string `json:"submission_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(created.out), &sub))

	early := run(t, srv, "", "submission", "results", sub.SubmissionID)
	require.Error(t, early.err)
	assert.Equal(t, submission.MsgResultsFailed, early.err.Error())
	assert.Equal(t, "验证尚未完成", client.BackendDetail(early.err))

	verify := run(t, srv, "", "submission", "verify", sub.SubmissionID, "--file", file.FileID)
	require.NoError(t, verify.err)
	assert.Contains(t, verify.out, "文件验证已开始")

	status := run(t, srv, "", "submission", "status", "--wait", sub.SubmissionID)
	require.NoError(t, status.err)
	assert.Contains(t, status.out, `"progress": 100`)

	results := run(t, srv, "", "submission", "results", sub.SubmissionID)
	require.NoError(t, results.err)
	assert.Contains(t, results.out, "paper.pdf")
}

func TestSubmissionReplaceRequiresFlags(t *testing.T) {
	srv := newBackend(t)
	res := run(t, srv, "", "submission", "replace", "sub-1", "--old", "f1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "new")
}

func TestSubmissionCreateUnknownFile(t *testing.T) {
	srv := newBackend(t)
	res := run(t, srv, "", "submission", "create", "missing")
	require.Error(t, res.err)
	assert.Equal(t, submission.MsgCreateFailed, res.err.Error())
}

func TestAskPrintsReplyAndSession(t *testing.T) {
	srv := newBackend(t)

	res := run(t, srv, "", "ask", "--session", "session_cli", "hello", "there")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "> hello there")
	assert.Contains(t, res.out, "（第 1 轮）已收到：hello there")
	assert.NotContains(t, res.out, controller.WelcomeMessage)
	assert.Contains(t, res.errOut, "session: session_cli")

	again := run(t, srv, "", "ask", "--session", "session_cli", "again")
	require.NoError(t, again.err)
	assert.Contains(t, again.out, "（第 2 轮）")
}

func TestPaperRejectsNonPDF(t *testing.T) {
	srv := newBackend(t)
	path := writeFile(t, "notes.txt", "text")

	res := run(t, srv, "", "paper", path)
	require.ErrorIs(t, res.err, controller.ErrNotPDF)
	assert.Contains(t, res.out, "❌ 请选择PDF格式的文件")
}

func TestPaperUploads(t *testing.T) {
	srv := newBackend(t)
	path := writeFile(t, "paper.pdf", "%PDF-1.4")

	res := run(t, srv, "", "paper", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "✅ 已上传：paper.pdf")
}

func TestReset(t *testing.T) {
	srv := newBackend(t)

	res := run(t, srv, "", "reset")
	require.Error(t, res.err)

	declined := run(t, srv, "n\n", "reset", "--session", "session_cli")
	require.NoError(t, declined.err)
	assert.Contains(t, declined.out, controller.ResetPrompt)

	require.NoError(t, run(t, srv, "", "ask", "--session", "session_cli", "one").err)
	confirmed := run(t, srv, "", "reset", "--session", "session_cli", "--yes")
	require.NoError(t, confirmed.err)
	assert.NotContains(t, confirmed.out, controller.ResetPrompt)

	after := run(t, srv, "", "ask", "--session", "session_cli", "two")
	require.NoError(t, after.err)
	assert.Contains(t, after.out, "（第 1 轮）")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, []byte(`{"a":1}`)))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, printJSON(&buf, []byte(`not json`)))
	assert.Equal(t, "not json\n", buf.String())
}

func TestUploadMissingFileNamesPathOnce(t *testing.T) {
	srv := newBackend(t)
	path := filepath.Join(t.TempDir(), "missing.pdf")

	res := run(t, srv, "", "submission", "upload", path)
	require.ErrorIs(t, res.err, os.ErrNotExist)
	assert.Equal(t, 1, strings.Count(res.err.Error(), path))

	paper := run(t, srv, "", "paper", path)
	require.ErrorIs(t, paper.err, os.ErrNotExist)
	assert.Contains(t, paper.out, "❌ 上传失败：")
}
