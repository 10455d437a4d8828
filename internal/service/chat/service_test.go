package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zhouzirui/paper-verify/internal/model/chat"
	chatservice "github.com/zhouzirui/paper-verify/internal/service/chat"
)

func TestServiceTranscriptPerSession(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()

	if err := svc.SaveMessage(ctx, "s1", chat.Message{Role: chat.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}
	if err := svc.SaveMessage(ctx, "s2", chat.Message{Role: chat.RoleUser, Content: "other"}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}

	got := svc.LoadTranscript(ctx, "s1")
	if len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}
}

func TestServiceLoadTranscriptReturnsCopy(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()
	_ = svc.SaveMessage(ctx, "s1", chat.Message{Role: chat.RoleUser, Content: "hello"})

	got := svc.LoadTranscript(ctx, "s1")
	got[0].Content = "mutated"

	if again := svc.LoadTranscript(ctx, "s1"); again[0].Content != "hello" {
		t.Fatalf("transcript was mutated through copy: %q", again[0].Content)
	}
}

func TestServiceResetClearsOnlyThatSession(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()
	_ = svc.SaveMessage(ctx, "s1", chat.Message{Role: chat.RoleUser, Content: "a"})
	_ = svc.SaveMessage(ctx, "s2", chat.Message{Role: chat.RoleUser, Content: "b"})

	svc.Reset(ctx, "s1")

	if got := svc.LoadTranscript(ctx, "s1"); len(got) != 0 {
		t.Fatalf("expected empty transcript, got %d", len(got))
	}
	if got := svc.LoadTranscript(ctx, "s2"); len(got) != 1 {
		t.Fatalf("expected s2 untouched, got %d", len(got))
	}
}

func TestServiceEmptySessionUsesDefault(t *testing.T) {
	svc := chatservice.NewService()
	ctx := context.Background()
	_ = svc.SaveMessage(ctx, "", chat.Message{Role: chat.RoleUser, Content: "a"})

	if got := svc.LoadTranscript(ctx, chatservice.DefaultSessionID); len(got) != 1 {
		t.Fatalf("expected default session to hold the message, got %d", len(got))
	}
}

func TestServiceRejectsEmptyMessage(t *testing.T) {
	svc := chatservice.NewService()
	err := svc.SaveMessage(context.Background(), "s1", chat.Message{Role: chat.RoleUser})
	if !errors.Is(err, chatservice.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}
