package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/paper-verify/internal/model/chat"
	aiService "github.com/zhouzirui/paper-verify/internal/service/ai"
	chatService "github.com/zhouzirui/paper-verify/internal/service/chat"
	"github.com/zhouzirui/paper-verify/pkg/utils"
)

// maxUploadSize 限制单个论文文件的大小。
const maxUploadSize = 32 << 20

// Handler 论文助手的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	aiSvc   *aiService.Service
	logger  *zap.Logger
}

// New 创建助手处理器
func New(chatSvc *chatService.Service, aiSvc *aiService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		aiSvc:   aiSvc,
		logger:  logger,
	}
}

// RegisterRoutes 注册上传、对话与重置路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.handleUpload)
	r.Post("/chat", h.handleChat)
	r.Post("/reset", h.handleReset)
}

type uploadResponse struct {
	Success     bool              `json:"success"`
	Filename    string            `json:"filename"`
	Answer      string            `json:"answer"`
	ToolResults []chat.ToolResult `json:"tool_results"`
}

// handleUpload 接收论文PDF并给出首轮结论
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "未找到文件")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "未找到文件")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		utils.RespondError(w, http.StatusBadRequest, "文件名为空")
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		utils.RespondError(w, http.StatusBadRequest, "仅支持PDF格式")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "读取文件失败")
		return
	}

	sessionID := r.FormValue("session_id")
	answer, err := h.aiSvc.DescribePaper(r.Context(), sessionID, header.Filename, len(data))
	if err != nil {
		h.logger.Error("describe paper failed", zap.String("session_id", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// 上传论文开启新一轮对话。
	h.chatSvc.Reset(r.Context(), sessionID)
	h.save(r, sessionID, chat.RoleUser, "文件："+header.Filename)
	h.save(r, sessionID, chat.RoleBot, answer)

	utils.RespondJSON(w, http.StatusOK, uploadResponse{
		Success:     true,
		Filename:    header.Filename,
		Answer:      answer,
		ToolResults: []chat.ToolResult{},
	})
}

// handleChat 处理一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "消息不能为空")
		return
	}

	history := h.chatSvc.LoadTranscript(r.Context(), payload.SessionID)
	reply, err := h.aiSvc.Reply(r.Context(), payload.SessionID, history, payload.Message)
	if err != nil {
		h.logger.Error("chat reply failed", zap.String("session_id", payload.SessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.save(r, payload.SessionID, chat.RoleUser, payload.Message)
	h.save(r, payload.SessionID, chat.RoleBot, reply)

	utils.RespondJSON(w, http.StatusOK, chat.Reply{Success: true, Reply: reply})
}

// handleReset 清空会话历史
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.chatSvc.Reset(r.Context(), payload.SessionID)
	h.logger.Info("session reset", zap.String("session_id", payload.SessionID))
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) save(r *http.Request, sessionID string, role chat.Role, content string) {
	if err := h.chatSvc.SaveMessage(r.Context(), sessionID, chat.Message{Role: role, Content: content}); err != nil {
		h.logger.Warn("save message failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
