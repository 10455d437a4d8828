package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/paper-verify/internal/config"
	"github.com/zhouzirui/paper-verify/internal/model/chat"
)

// DefaultHistoryLimit 是送入模型的最大历史消息条数。
const DefaultHistoryLimit = 10

// Service produces assistant replies through an eino chain.
type Service struct {
	chatModel    model.ChatModel
	chain        compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
	logger       *zap.Logger
}

// NewChatModel returns the Ark model when credentials are configured and the
// offline echo model otherwise.
func NewChatModel(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (model.ChatModel, error) {
	if !cfg.Enabled() {
		if logger != nil {
			logger.Info("Ark 凭证未配置，使用离线回显模型")
		}
		return NewEchoModel(), nil
	}
	return cfg.NewChatModel(ctx)
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.ChatModel, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel:    chatModel,
		chain:        runnable,
		historyLimit: DefaultHistoryLimit,
		logger:       logger,
	}, nil
}

// Reply answers userMessage given the earlier turns of the session.
func (s *Service) Reply(ctx context.Context, sessionID string, history []chat.Message, userMessage string) (string, error) {
	input := map[string]any{
		"system":  systemPrompt,
		"history": s.buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.logger.Debug("generated reply", zap.String("session_id", sessionID), zap.Int("length", len(response.Content)))
	return response.Content, nil
}

// DescribePaper answers the first question about an uploaded paper.
func (s *Service) DescribePaper(ctx context.Context, sessionID, filename string, size int) (string, error) {
	return s.Reply(ctx, sessionID, nil, paperPrompt(filename, size))
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleBot:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
