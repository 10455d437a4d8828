package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/paper-verify/internal/controller"
	"github.com/zhouzirui/paper-verify/internal/model/chat"
	"github.com/zhouzirui/paper-verify/internal/tui"
)

func (a *app) newChatCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), a.assistantClient(), tui.Config{
				Markdown: !plain,
				Logger:   a.logger.Named("tui"),
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "render bot messages without markdown")
	return cmd
}

func (a *app) newAskCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one chat message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.newController(session, nil)
			err := ctrl.Send(cmd.Context(), strings.Join(args, " "))
			return a.finish(ctrl, err)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "reuse an existing session id")
	return cmd
}

func (a *app) newPaperCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "paper <file.pdf>",
		Short: "Upload a paper to the assistant for verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.newController(session, nil)
			err := ctrl.UploadPath(cmd.Context(), args[0])
			return a.finish(ctrl, err)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "reuse an existing session id")
	return cmd
}

func (a *app) newResetCmd() *cobra.Command {
	var (
		session string
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the assistant's history for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" {
				return errors.New("--session is required")
			}
			confirm := a.promptConfirm
			if yes {
				confirm = func(context.Context, string) bool { return true }
			}
			ctrl := a.newController(session, confirm)
			err := ctrl.Reset(cmd.Context())
			return a.finish(ctrl, err)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id to reset")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) newController(session string, confirm controller.ConfirmFunc) *controller.Controller {
	opts := []controller.Option{controller.WithLogger(a.logger.Named("controller"))}
	if session != "" {
		opts = append(opts, controller.WithSessionID(chat.SessionID(session)))
	}
	if confirm != nil {
		opts = append(opts, controller.WithConfirm(confirm))
	}
	return controller.New(a.assistantClient(), opts...)
}

// finish prints what the flow rendered after the welcome message, then the
// session id so it can be reused.
func (a *app) finish(ctrl *controller.Controller, err error) error {
	msgs := ctrl.Messages()
	if len(msgs) > 0 && msgs[0].Content == controller.WelcomeMessage && len(msgs) > 1 {
		msgs = msgs[1:]
	}
	printMessages(a.out, msgs)
	fmt.Fprintf(a.err, "session: %s\n", ctrl.SessionID())
	return err
}

func (a *app) promptConfirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printMessages(w io.Writer, msgs []chat.Message) {
	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleUser:
			fmt.Fprintf(w, "> %s\n", msg.Content)
		case chat.RoleSystem:
			fmt.Fprintf(w, "%s\n", msg.Content)
		default:
			for _, p := range msg.Paragraphs() {
				fmt.Fprintln(w, p)
			}
		}
		fmt.Fprintln(w)
	}
}
