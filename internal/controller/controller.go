// Package controller drives the upload, chat and reset flows of the paper
// verification assistant and keeps the rendered message list.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/paper-verify/internal/model/chat"
)

const (
	// WelcomeMessage 是会话开始或重置后的唯一一条消息。
	WelcomeMessage = "👋 您好！我是论文验证助手。\n请上传您的论文PDF，我将帮您验证论文的真实性及作者归属。"
	// ResetPrompt 是重置前的确认提示。
	ResetPrompt = "确定要重置会话吗？所有对话历史将被清除。"

	msgNotPDF       = "❌ 请选择PDF格式的文件"
	prefixError     = "❌ 错误："
	prefixUploadErr = "❌ 上传失败："
	prefixSendErr   = "❌ 发送失败："
	prefixResetErr  = "❌ 重置失败："
	prefixUploaded  = "✅ 已上传："
	detailHeader    = "📊 详细信息："
)

var (
	// ErrNotPDF is returned when the selected file is not a PDF. No request is made.
	ErrNotPDF = errors.New("only PDF files can be uploaded")
	// ErrEmptyMessage is returned for blank chat input. No request is made.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSuperseded is returned by a call whose flow was restarted before it
	// settled. Its outcome is not rendered.
	ErrSuperseded = errors.New("operation superseded by a newer one")
	// ErrBackend wraps an error the backend reported inside a 2xx body.
	ErrBackend = errors.New("backend reported an error")
)

// Assistant is the backend the controller talks to.
type Assistant interface {
	Upload(ctx context.Context, sessionID chat.SessionID, filename string, file io.Reader) (*chat.UploadResult, error)
	Send(ctx context.Context, sessionID chat.SessionID, message string) (*chat.Reply, error)
	Reset(ctx context.Context, sessionID chat.SessionID) error
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Flow names one of the user-initiated operations.
type Flow int

const (
	FlowUpload Flow = iota
	FlowChat
	FlowReset
	flowCount
)

func (f Flow) String() string {
	switch f {
	case FlowUpload:
		return "upload"
	case FlowChat:
		return "chat"
	case FlowReset:
		return "reset"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	SessionID    chat.SessionID
	Messages     []chat.Message
	Loading      bool
	InputEnabled bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSessionID fixes the session id instead of deriving one from the clock.
func WithSessionID(id chat.SessionID) Option {
	return func(c *Controller) { c.sessionID = id }
}

// WithClock replaces time.Now for message timestamps and the session id.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithConfirm sets the reset confirmation. Without it every reset is declined.
func WithConfirm(confirm ConfirmFunc) Option {
	return func(c *Controller) { c.confirm = confirm }
}

// WithOnChange registers a callback fired after every state change.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithOnFocus registers a callback fired when the chat flow settles.
func WithOnFocus(fn func()) Option {
	return func(c *Controller) { c.onFocus = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type slot struct {
	seq    uint64
	cancel context.CancelFunc
}

// Controller owns the message list of one session. Each flow has a single
// in-flight slot: starting a flow cancels the previous call of that flow.
type Controller struct {
	assistant Assistant
	sessionID chat.SessionID
	now       func() time.Time
	confirm   ConfirmFunc
	onChange  func(Snapshot)
	onFocus   func()
	logger    *zap.Logger

	mu           sync.Mutex
	messages     []chat.Message
	loading      [flowCount]bool
	inputEnabled bool
	slots        [flowCount]slot
}

// New creates a Controller seeded with the welcome message.
func New(assistant Assistant, opts ...Option) *Controller {
	c := &Controller{
		assistant:    assistant,
		now:          time.Now,
		logger:       zap.NewNop(),
		inputEnabled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID == "" {
		c.sessionID = chat.NewSessionID(c.now())
	}
	c.messages = []chat.Message{c.message(chat.RoleBot, WelcomeMessage)}
	return c
}

// SessionID returns the session this controller talks in.
func (c *Controller) SessionID() chat.SessionID {
	return c.sessionID
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Messages returns a copy of the rendered message list.
func (c *Controller) Messages() []chat.Message {
	return c.Snapshot().Messages
}

// Loading reports whether the given flow has a call in flight.
func (c *Controller) Loading(f Flow) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading[f]
}

// InputEnabled reports whether chat input is accepted.
func (c *Controller) InputEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputEnabled
}

// IsPDF reports whether filename ends with .pdf, ignoring case.
func IsPDF(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// Upload sends a paper to the assistant and renders the verification outcome.
func (c *Controller) Upload(ctx context.Context, filename string, file io.Reader) error {
	if !IsPDF(filename) {
		c.update(func() { c.appendLocked(chat.RoleBot, msgNotPDF) })
		return ErrNotPDF
	}

	ctx, seq, release := c.begin(ctx, FlowUpload)
	defer release()

	c.logger.Debug("upload started", zap.String("session_id", c.sessionID.String()), zap.String("filename", filename))
	result, err := c.assistant.Upload(ctx, c.sessionID, filename, file)

	var outcome error
	settled := c.settle(FlowUpload, seq, func() {
		switch {
		case err != nil:
			c.appendLocked(chat.RoleBot, failureText(prefixUploadErr, err))
			outcome = err
		case result.Failed():
			c.appendLocked(chat.RoleBot, prefixError+result.Error)
			outcome = fmt.Errorf("%w: %s", ErrBackend, result.Error)
		default:
			c.renderUploadLocked(result)
		}
	})
	if !settled {
		return ErrSuperseded
	}
	if outcome != nil {
		c.logger.Warn("upload failed", zap.String("filename", filename), zap.Error(outcome))
	}
	return outcome
}

// Send posts one chat message. Input is disabled until the call settles.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	ctx, seq, release := c.begin(ctx, FlowChat)
	defer release()

	c.update(func() {
		c.appendLocked(chat.RoleUser, text)
		c.inputEnabled = false
	})

	reply, err := c.assistant.Send(ctx, c.sessionID, text)

	var outcome error
	settled := c.settle(FlowChat, seq, func() {
		defer func() { c.inputEnabled = true }()
		switch {
		case err != nil:
			c.appendLocked(chat.RoleBot, failureText(prefixSendErr, err))
			outcome = err
		case reply.Failed():
			c.appendLocked(chat.RoleBot, prefixError+reply.Error)
			outcome = fmt.Errorf("%w: %s", ErrBackend, reply.Error)
		case reply.Reply != "":
			c.appendLocked(chat.RoleBot, reply.Reply)
		}
	})
	if !settled {
		return ErrSuperseded
	}
	if c.onFocus != nil {
		c.onFocus()
	}
	if outcome != nil {
		c.logger.Warn("chat failed", zap.Error(outcome))
	}
	return outcome
}

// Reset asks for confirmation, clears the server session and restarts the
// message list with the welcome message. A declined reset changes nothing and
// returns nil. The session id is kept.
func (c *Controller) Reset(ctx context.Context) error {
	if c.confirm == nil || !c.confirm(ctx, ResetPrompt) {
		return nil
	}

	ctx, seq, release := c.begin(ctx, FlowReset)
	defer release()

	err := c.assistant.Reset(ctx, c.sessionID)

	settled := c.settle(FlowReset, seq, func() {
		if err != nil {
			c.appendLocked(chat.RoleBot, prefixResetErr+err.Error())
			return
		}
		c.messages = []chat.Message{c.message(chat.RoleBot, WelcomeMessage)}
	})
	if !settled {
		return ErrSuperseded
	}
	if err != nil {
		c.logger.Warn("reset failed", zap.Error(err))
		return err
	}
	c.logger.Info("session reset", zap.String("session_id", c.sessionID.String()))
	return nil
}

// begin takes the flow's slot, cancelling whatever call held it.
func (c *Controller) begin(parent context.Context, f Flow) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	prev := c.slots[f]
	seq := prev.seq + 1
	c.slots[f] = slot{seq: seq, cancel: cancel}
	c.loading[f] = f != FlowReset
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if prev.cancel != nil {
		c.logger.Debug("superseding in-flight call", zap.Stringer("flow", f), zap.Uint64("seq", prev.seq))
		prev.cancel()
	}
	c.notify(snap)
	return ctx, seq, cancel
}

// settle applies render if seq still owns the slot, then frees the slot.
func (c *Controller) settle(f Flow, seq uint64, render func()) bool {
	c.mu.Lock()
	if c.slots[f].seq != seq {
		c.mu.Unlock()
		return false
	}
	c.loading[f] = false
	c.slots[f].cancel = nil
	render()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return true
}

func (c *Controller) update(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Controller) notify(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	loading := false
	for _, l := range c.loading {
		loading = loading || l
	}
	return Snapshot{
		SessionID:    c.sessionID,
		Messages:     append([]chat.Message(nil), c.messages...),
		Loading:      loading,
		InputEnabled: c.inputEnabled,
	}
}

func (c *Controller) message(role chat.Role, content string) chat.Message {
	return chat.Message{Role: role, Content: content, CreatedAt: c.now()}
}

func (c *Controller) appendLocked(role chat.Role, content string) {
	c.messages = append(c.messages, c.message(role, content))
}

// UploadPath opens a local file and runs the upload flow with its base name.
// Non-PDF names are rejected before the file is opened; a file that cannot be
// opened is reported like a failed upload.
func (c *Controller) UploadPath(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if !IsPDF(name) {
		return c.Upload(ctx, name, strings.NewReader(""))
	}

	f, err := os.Open(path)
	if err != nil {
		c.update(func() { c.appendLocked(chat.RoleBot, prefixUploadErr+err.Error()) })
		c.logger.Warn("upload failed", zap.String("filename", name), zap.Error(err))
		return err
	}
	defer f.Close()
	return c.Upload(ctx, name, f)
}
