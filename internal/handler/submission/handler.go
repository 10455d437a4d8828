package submission

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	model "github.com/zhouzirui/paper-verify/internal/model/submission"
	submissionService "github.com/zhouzirui/paper-verify/internal/service/submission"
	"github.com/zhouzirui/paper-verify/pkg/utils"
)

const maxUploadSize = 32 << 20

// Handler 提交与验证接口的HTTP处理器
type Handler struct {
	svc    *submissionService.Service
	logger *zap.Logger
}

// New 创建提交处理器
func New(svc *submissionService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes 注册提交相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.handleUpload)
	r.Post("/submissions", h.handleCreate)
	r.Get("/submissions", h.handleList)
	r.Post("/submissions/{submissionID}/replace-file", h.handleReplaceFile)
	r.Post("/verify/{submissionID}", h.handleVerify)
	r.Post("/verify/{submissionID}/file/{fileID}", h.handleVerifyFile)
	r.Get("/status/{submissionID}", h.handleStatus)
	r.Get("/results/{submissionID}", h.handleResults)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondValidation(w, "file: field required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondValidation(w, "file: field required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondDetail(w, http.StatusBadRequest, "读取文件失败")
		return
	}

	out, err := h.svc.Upload(r.Context(), header.Filename, data)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var fileIDs []model.ID
	if err := json.NewDecoder(r.Body).Decode(&fileIDs); err != nil {
		respondValidation(w, "body: value is not a valid list")
		return
	}

	out, err := h.svc.Create(r.Context(), fileIDs)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := submissionService.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondValidation(w, "limit: value is not a valid integer")
			return
		}
		limit = n
	}

	out, err := h.svc.List(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleReplaceFile(w http.ResponseWriter, r *http.Request) {
	var payload model.ReplaceFileRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondValidation(w, "body: invalid JSON")
		return
	}
	if payload.OldFileID == "" || payload.NewFileID == "" {
		respondValidation(w, "old_file_id and new_file_id: field required")
		return
	}

	out, err := h.svc.ReplaceFile(r.Context(), model.ID(chi.URLParam(r, "submissionID")), payload)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Verify(r.Context(), model.ID(chi.URLParam(r, "submissionID")))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleVerifyFile(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.VerifyFile(r.Context(), model.ID(chi.URLParam(r, "submissionID")), model.ID(chi.URLParam(r, "fileID")))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Status(r.Context(), model.ID(chi.URLParam(r, "submissionID")))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Results(r.Context(), model.ID(chi.URLParam(r, "submissionID")))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, submissionService.ErrNotFound):
		utils.RespondDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, submissionService.ErrInvalid), errors.Is(err, submissionService.ErrNotReady):
		utils.RespondDetail(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("submission request failed", zap.Error(err))
		utils.RespondDetail(w, http.StatusInternalServerError, "internal error")
	}
}

// respondValidation 模拟 FastAPI 的 422 校验错误格式。
func respondValidation(w http.ResponseWriter, msg string) {
	utils.RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]string{{"msg": msg}},
	})
}
