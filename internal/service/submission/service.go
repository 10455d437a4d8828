// Package submission is an in-memory stand-in for the verification backend.
// It tracks uploads and submissions and walks them through the status
// lifecycle without verifying anything.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	model "github.com/zhouzirui/paper-verify/internal/model/submission"
)

const (
	// ProgressStep 是每次查询状态时推进的进度。
	ProgressStep = 50
	// DefaultListLimit mirrors the backend default for GET /submissions.
	DefaultListLimit = 50

	stepWaiting   = "等待验证..."
	stepPreparing = "准备中..."
	stepVerifying = "正在验证..."
	stepDone      = "验证完成"

	// isoLayout 与后端 datetime.isoformat() 的输出一致（无时区）。
	isoLayout = "2006-01-02T15:04:05.000000"

	placeholderConclusion = "开发服务器未执行真实验证"
	placeholderStatus     = "skipped"
)

var allowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".bmp", ".webp"}

type storedFile struct {
	filename   string
	data       []byte
	uploadedAt time.Time
}

type record struct {
	id          model.ID
	seq         uint64
	files       []model.FileRef
	status      string
	progress    int
	currentStep string
	target      model.ID
	results     []model.FileVerification
	err         *string
	createdAt   time.Time
	updatedAt   time.Time
}

// Service stores uploaded files and submissions in memory.
type Service struct {
	mu          sync.Mutex
	files       map[model.ID]storedFile
	submissions map[model.ID]*record
	seq         uint64
	now         func() time.Time
	logger      *zap.Logger
}

// NewService creates an empty store.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		files:       make(map[model.ID]storedFile),
		submissions: make(map[model.ID]*record),
		now:         time.Now,
		logger:      logger,
	}
}

// Upload stores one file. Only document and image formats are accepted.
func (s *Service) Upload(_ context.Context, filename string, data []byte) (model.UploadedFile, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowed(ext) {
		return model.UploadedFile{}, newError(ErrInvalid,
			fmt.Sprintf("不支持的文件格式。支持的格式：%s", strings.Join(allowedExtensions, ", ")))
	}

	id := model.ID(uuid.NewString())
	s.mu.Lock()
	s.files[id] = storedFile{filename: filename, data: data, uploadedAt: s.now()}
	s.mu.Unlock()

	s.logger.Debug("file stored", zap.Stringer("file_id", id), zap.String("filename", filename), zap.Int("bytes", len(data)))
	return model.UploadedFile{FileID: id, Filename: filename, Message: "文件上传成功"}, nil
}

// Create groups uploaded files into a pending submission.
func (s *Service) Create(_ context.Context, fileIDs []model.ID) (model.Created, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]model.FileRef, 0, len(fileIDs))
	for _, id := range fileIDs {
		f, ok := s.files[id]
		if !ok {
			return model.Created{}, newError(ErrNotFound, fmt.Sprintf("文件 %s 不存在", id))
		}
		refs = append(refs, model.FileRef{FileID: id, Filename: f.filename})
	}

	s.seq++
	now := s.now()
	rec := &record{
		id:          model.ID(uuid.NewString()),
		seq:         s.seq,
		files:       refs,
		status:      model.StatusPending,
		currentStep: stepWaiting,
		createdAt:   now,
		updatedAt:   now,
	}
	s.submissions[rec.id] = rec

	s.logger.Info("submission created", zap.Stringer("submission_id", rec.id), zap.Int("files", len(refs)))
	return model.Created{SubmissionID: rec.id, FileCount: len(refs), Message: "提交创建成功"}, nil
}

// Verify starts verification of every file. Repeated calls while processing
// or after completion are acknowledged without restarting.
func (s *Service) Verify(_ context.Context, submissionID model.ID) (model.VerifyAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.submissions[submissionID]
	if !ok {
		return model.VerifyAck{}, newError(ErrNotFound, fmt.Sprintf("提交 %s 不存在", submissionID))
	}

	switch {
	case rec.status == model.StatusProcessing:
		return model.VerifyAck{SubmissionID: rec.id, Status: rec.status, Message: "验证已在进行中"}, nil
	case rec.status == model.StatusCompleted && rec.results != nil:
		return model.VerifyAck{SubmissionID: rec.id, Status: rec.status, Message: "验证已完成"}, nil
	}

	s.startLocked(rec, "", stepPreparing)
	return model.VerifyAck{SubmissionID: rec.id, Status: model.StatusProcessing, Message: "验证已开始"}, nil
}

// VerifyFile starts verification of one file; its result is merged into the
// existing results on completion.
func (s *Service) VerifyFile(_ context.Context, submissionID, fileID model.ID) (model.VerifyAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.submissions[submissionID]
	if !ok {
		return model.VerifyAck{}, newError(ErrNotFound, fmt.Sprintf("提交 %s 不存在", submissionID))
	}
	ref, ok := findFile(rec.files, fileID)
	if !ok {
		return model.VerifyAck{}, newError(ErrNotFound, fmt.Sprintf("文件 %s 不在该提交中", fileID))
	}
	if _, ok := s.files[fileID]; !ok {
		return model.VerifyAck{}, newError(ErrNotFound, fmt.Sprintf("文件 %s 不存在", fileID))
	}

	s.startLocked(rec, fileID, "正在验证文件: "+ref.Filename)
	return model.VerifyAck{SubmissionID: rec.id, Status: model.StatusProcessing, Message: "文件验证已开始"}, nil
}

// Status reports progress. Each call on a processing submission advances it
// by ProgressStep until it completes.
func (s *Service) Status(_ context.Context, submissionID model.ID) (model.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.submissions[submissionID]
	if !ok {
		return model.Status{}, newError(ErrNotFound, "验证任务不存在")
	}

	if rec.status == model.StatusProcessing {
		rec.progress += ProgressStep
		rec.currentStep = stepVerifying
		if rec.progress >= 100 {
			s.completeLocked(rec)
		}
		rec.updatedAt = s.now()
	}

	return model.Status{
		SubmissionID: rec.id,
		Status:       rec.status,
		Progress:     rec.progress,
		CurrentStep:  rec.currentStep,
	}, nil
}

// Results returns the per-file results of a completed submission.
func (s *Service) Results(_ context.Context, submissionID model.ID) (model.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.submissions[submissionID]
	if !ok {
		return model.Results{}, newError(ErrNotFound, "验证任务不存在")
	}
	if rec.status != model.StatusCompleted {
		return model.Results{}, newError(ErrNotReady, "验证尚未完成")
	}

	files := make([]model.FileVerification, len(rec.results))
	copy(files, rec.results)
	return model.Results{SubmissionID: rec.id, Status: rec.status, Files: files}, nil
}

// List returns up to limit submissions, newest first.
func (s *Service) List(_ context.Context, limit int) ([]model.Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*record, 0, len(s.submissions))
	for _, rec := range s.submissions {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].createdAt.Equal(recs[j].createdAt) {
			return recs[i].createdAt.After(recs[j].createdAt)
		}
		return recs[i].seq > recs[j].seq
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]model.Summary, 0, len(recs))
	for _, rec := range recs {
		summary, err := summarize(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// ReplaceFile swaps one file of a submission and resets it to pending. Results
// of the other files are kept.
func (s *Service) ReplaceFile(_ context.Context, submissionID model.ID, req model.ReplaceFileRequest) (model.ReplaceFileAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.submissions[submissionID]
	if !ok {
		return model.ReplaceFileAck{}, newError(ErrNotFound, fmt.Sprintf("提交 %s 不存在", submissionID))
	}
	newFile, ok := s.files[req.NewFileID]
	if !ok {
		return model.ReplaceFileAck{}, newError(ErrNotFound, fmt.Sprintf("文件 %s 不存在", req.NewFileID))
	}

	replaced := false
	for i := range rec.files {
		if rec.files[i].FileID != req.OldFileID {
			continue
		}
		rec.files[i].FileID = req.NewFileID
		rec.files[i].Filename = req.Filename
		if rec.files[i].Filename == "" {
			rec.files[i].Filename = newFile.filename
		}
		replaced = true
		break
	}
	if !replaced {
		return model.ReplaceFileAck{}, newError(ErrNotFound, fmt.Sprintf("原文件 %s 不在该提交中", req.OldFileID))
	}

	kept := rec.results[:0]
	for _, r := range rec.results {
		if r.FileID != req.OldFileID {
			kept = append(kept, r)
		}
	}
	rec.results = kept
	rec.status = model.StatusPending
	rec.progress = 0
	rec.currentStep = stepWaiting
	rec.target = ""
	rec.err = nil
	rec.updatedAt = s.now()

	files := make([]model.FileRef, len(rec.files))
	copy(files, rec.files)
	return model.ReplaceFileAck{Message: "文件替换成功", SubmissionID: rec.id, Files: files}, nil
}

func (s *Service) startLocked(rec *record, target model.ID, step string) {
	rec.status = model.StatusProcessing
	rec.progress = 0
	rec.currentStep = step
	rec.target = target
	rec.updatedAt = s.now()
	s.logger.Info("verification started", zap.Stringer("submission_id", rec.id), zap.Stringer("target", target))
}

// completeLocked fills placeholder results; a single-file run merges into the
// results already present.
func (s *Service) completeLocked(rec *record) {
	byID := make(map[model.ID]model.FileVerification, len(rec.results))
	order := make([]model.ID, 0, len(rec.files))
	if rec.target != "" {
		for _, r := range rec.results {
			byID[r.FileID] = r
			order = append(order, r.FileID)
		}
	}

	for _, ref := range rec.files {
		if rec.target != "" && ref.FileID != rec.target {
			continue
		}
		if _, seen := byID[ref.FileID]; !seen {
			order = append(order, ref.FileID)
		}
		byID[ref.FileID] = placeholderResult(ref)
	}

	results := make([]model.FileVerification, 0, len(order))
	for _, id := range order {
		results = append(results, byID[id])
	}

	rec.results = results
	rec.status = model.StatusCompleted
	rec.progress = 100
	rec.currentStep = stepDone
	rec.target = ""
	s.logger.Info("verification completed", zap.Stringer("submission_id", rec.id), zap.Int("files", len(results)))
}

func placeholderResult(ref model.FileRef) model.FileVerification {
	return model.FileVerification{
		FileID:   ref.FileID,
		Filename: ref.Filename,
		Status:   placeholderStatus,
		Result: model.FileResult{
			FileID:             ref.FileID,
			Filename:           ref.Filename,
			VerificationStatus: placeholderStatus,
			AIConclusion:       placeholderConclusion,
			ToolResults:        []json.RawMessage{},
		},
	}
}

func summarize(rec *record) (model.Summary, error) {
	files := make([]model.FileRef, len(rec.files))
	copy(files, rec.files)

	summary := model.Summary{
		ID:          rec.id,
		Files:       files,
		Status:      rec.status,
		Progress:    rec.progress,
		CurrentStep: rec.currentStep,
		Error:       rec.err,
		CreatedAt:   rec.createdAt.Format(isoLayout),
		UpdatedAt:   rec.updatedAt.Format(isoLayout),
	}
	if rec.results != nil {
		raw, err := json.Marshal(rec.results)
		if err != nil {
			return model.Summary{}, fmt.Errorf("encode results of %s: %w", rec.id, err)
		}
		summary.Results = raw
	}
	return summary, nil
}

func findFile(refs []model.FileRef, fileID model.ID) (model.FileRef, bool) {
	for _, ref := range refs {
		if ref.FileID == fileID {
			return ref, true
		}
	}
	return model.FileRef{}, false
}

func allowed(ext string) bool {
	for _, a := range allowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}
