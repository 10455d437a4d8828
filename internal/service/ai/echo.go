package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EchoModel is a deterministic offline chat model. It answers with the last
// user message so the dev backend works without Ark credentials.
type EchoModel struct {
	tools []*schema.ToolInfo
}

var _ model.ChatModel = (*EchoModel)(nil)

// NewEchoModel creates an EchoModel.
func NewEchoModel() *EchoModel {
	return &EchoModel{}
}

// Generate implements model.ChatModel.
func (m *EchoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	query := lastUserContent(input)
	if query == "" {
		return nil, fmt.Errorf("echo model: no user message in %d input messages", len(input))
	}

	turns := 0
	for _, msg := range input {
		if msg != nil && msg.Role == schema.User {
			turns++
		}
	}
	return schema.AssistantMessage(fmt.Sprintf("（第 %d 轮）已收到：%s", turns, query), nil), nil
}

// Stream implements model.ChatModel by emitting the Generate result word by word.
func (m *EchoModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}

	words := strings.SplitAfter(msg.Content, " ")
	chunks := make([]*schema.Message, 0, len(words))
	for _, w := range words {
		chunks = append(chunks, schema.AssistantMessage(w, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

// BindTools implements model.ChatModel. Tools are recorded but never called.
func (m *EchoModel) BindTools(tools []*schema.ToolInfo) error {
	m.tools = tools
	return nil
}

func lastUserContent(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}
