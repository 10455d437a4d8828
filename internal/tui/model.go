// Package tui is the terminal front end of the verification assistant.
package tui

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/zhouzirui/paper-verify/internal/controller"
	"github.com/zhouzirui/paper-verify/internal/model/chat"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	inputHeight   = 3
	loadingText   = "处理中"
	helpText      = "enter 发送 · alt+enter 换行 · ctrl+o 上传PDF · ctrl+r 重置 · esc 退出"
)

type changedMsg struct{ snap controller.Snapshot }

type focusMsg struct{}

type confirmRequestMsg struct {
	prompt string
	reply  chan<- bool
}

type flowDoneMsg struct {
	flow controller.Flow
	err  error
}

// Config 控制界面的可选行为。
type Config struct {
	// Markdown renders bot messages with glamour.
	Markdown bool
	// StartDir is where the file picker opens. Empty means the working directory.
	StartDir string
	Logger   *zap.Logger
}

// Model is the bubbletea model around a controller.
type Model struct {
	ctx    context.Context
	ctrl   *controller.Controller
	cfg    Config
	logger *zap.Logger
	styles Styles

	viewport   viewport.Model
	textarea   textarea.Model
	spinner    spinner.Model
	filepicker filepicker.Model
	renderer   *glamour.TermRenderer

	snap    controller.Snapshot
	picking bool
	confirm *confirmRequestMsg
	width   int
	height  int
}

// NewModel builds the model. ctx bounds every flow started from the UI.
func NewModel(ctx context.Context, ctrl *controller.Controller, cfg Config) Model {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	styles := DefaultStyles()

	ta := textarea.New()
	ta.Placeholder = "输入消息…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.SetWidth(defaultWidth)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := Model{
		ctx:        ctx,
		ctrl:       ctrl,
		cfg:        cfg,
		logger:     logger,
		styles:     styles,
		viewport:   viewport.New(defaultWidth, defaultHeight-inputHeight-4),
		textarea:   ta,
		spinner:    sp,
		filepicker: newPicker(cfg.StartDir),
		width:      defaultWidth,
		height:     defaultHeight,
	}
	m.renderer = m.newRenderer(defaultWidth)
	m.apply(ctrl.Snapshot())
	return m
}

func newPicker(dir string) filepicker.Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".pdf", ".PDF"}
	if dir == "" {
		dir, _ = os.Getwd()
	}
	fp.CurrentDirectory = dir
	fp.AutoHeight = false
	fp.SetHeight(defaultHeight - 6)
	return fp
}

func (m Model) newRenderer(width int) *glamour.TermRenderer {
	if !m.cfg.Markdown {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case changedMsg:
		m.apply(msg.snap)
		return m, nil

	case focusMsg:
		return m, m.textarea.Focus()

	case confirmRequestMsg:
		// 新的确认请求到来时，先拒绝仍在等待的旧请求
		m.answer(false)
		m.confirm = &msg
		return m, nil

	case flowDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, controller.ErrSuperseded) {
			m.logger.Debug("flow settled with error", zap.Stringer("flow", msg.flow), zap.Error(msg.err))
		}
		m.apply(m.ctrl.Snapshot())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Loading {
			m.refreshViewport()
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.picking {
		return m.updatePicker(msg)
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.answer(false)
		return m, tea.Quit
	}

	if m.confirm != nil {
		switch strings.ToLower(msg.String()) {
		case "y", "enter":
			m.answer(true)
		case "n", "esc":
			m.answer(false)
		}
		return m, nil
	}

	if m.picking {
		if msg.String() == "esc" {
			m.picking = false
			return m, nil
		}
		return m.updatePicker(msg)
	}

	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "ctrl+o":
		m.picking = true
		m.filepicker = newPicker(m.filepicker.CurrentDirectory)
		m.filepicker.SetHeight(max(m.height-6, 5))
		return m, m.filepicker.Init()
	case "ctrl+r":
		return m, m.resetCmd()
	case "enter":
		if !m.snap.InputEnabled {
			return m, nil
		}
		text := m.textarea.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.textarea.Reset()
		return m, m.sendCmd(text)
	}

	if !m.snap.InputEnabled {
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)

	// 被过滤掉的文件也交给控制器，由它给出统一的拒绝提示。
	if ok, path := m.filepicker.DidSelectFile(msg); ok {
		m.picking = false
		return m, tea.Batch(cmd, m.uploadCmd(path))
	}
	if ok, path := m.filepicker.DidSelectDisabledFile(msg); ok {
		m.picking = false
		return m, tea.Batch(cmd, m.uploadCmd(path))
	}
	return m, cmd
}

func (m *Model) answer(ok bool) {
	if m.confirm == nil {
		return
	}
	m.confirm.reply <- ok
	m.confirm = nil
}

func (m Model) sendCmd(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return flowDoneMsg{flow: controller.FlowChat, err: ctrl.Send(ctx, text)}
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return flowDoneMsg{flow: controller.FlowUpload, err: ctrl.UploadPath(ctx, path)}
	}
}

func (m Model) resetCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return flowDoneMsg{flow: controller.FlowReset, err: ctrl.Reset(ctx)}
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = max(height-inputHeight-4, 3)
	m.textarea.SetWidth(width)
	m.filepicker.SetHeight(max(height-6, 5))
	m.renderer = m.newRenderer(width)
	m.refreshViewport()
}

func (m *Model) apply(snap controller.Snapshot) {
	m.snap = snap
	if snap.InputEnabled {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	blocks := make([]string, 0, len(m.snap.Messages)+1)
	for _, msg := range m.snap.Messages {
		blocks = append(blocks, m.renderMessage(msg))
	}
	if m.snap.Loading {
		blocks = append(blocks, m.spinner.View()+" "+loadingText)
	}
	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
	m.viewport.GotoBottom()
}

func (m Model) renderMessage(msg chat.Message) string {
	switch msg.Role {
	case chat.RoleUser:
		return m.styles.User.Render(strings.Join(msg.Paragraphs(), "\n"))
	case chat.RoleSystem:
		return m.styles.System.Render(msg.Content)
	default:
		text := strings.Join(msg.Paragraphs(), "\n\n")
		if m.renderer != nil {
			if out, err := m.renderer.Render(text); err == nil {
				return m.styles.Label.Render("助手") + "\n" + strings.TrimRight(out, "\n")
			}
		}
		return m.styles.Label.Render("助手") + "\n" + m.styles.Bot.Render(text)
	}
}

func (m Model) View() string {
	header := m.styles.Title.Render("论文验证助手") + m.styles.Hint.Render(" "+m.snap.SessionID.String())

	if m.picking {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			m.styles.Hint.Render("选择PDF文件（esc 取消）："),
			m.filepicker.View(),
		)
	}

	footer := m.styles.Input.Render(m.textarea.View())
	if m.confirm != nil {
		footer = m.styles.Confirm.Render(m.confirm.prompt + " (y/n)")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		footer,
		m.styles.Hint.Render(helpText),
	)
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, assistant controller.Assistant, cfg Config, opts ...controller.Option) error {
	bridge := &Bridge{}
	ctrlOpts := append([]controller.Option{controller.WithLogger(cfg.Logger)}, opts...)
	ctrlOpts = append(ctrlOpts, bridge.Options()...)
	ctrl := controller.New(assistant, ctrlOpts...)

	program := tea.NewProgram(NewModel(ctx, ctrl, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program.Send)

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
