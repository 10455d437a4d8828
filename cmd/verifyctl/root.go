package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/paper-verify/internal/client"
	"github.com/zhouzirui/paper-verify/internal/client/assistant"
	"github.com/zhouzirui/paper-verify/internal/client/submission"
	"github.com/zhouzirui/paper-verify/internal/config"
	"github.com/zhouzirui/paper-verify/internal/logging"
)

// app holds the global flags and everything built from them before a
// subcommand runs.
type app struct {
	// Global flags
	verbose      bool
	configPath   string
	apiURL       string
	assistantURL string
	timeout      time.Duration

	cfg    *config.Config
	logger *zap.Logger

	in  io.Reader
	out io.Writer
	err io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, err: errOut, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "verifyctl",
		Short:         "论文验证助手命令行工具",
		Long:          "verifyctl drives the paper verification assistant and the submission API.\n\nRun \"verifyctl chat\" for the interactive terminal UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.configPath, "config", os.Getenv("VERIFY_CONFIG"), "YAML config file (env vars override it)")
	flags.StringVar(&a.apiURL, "api-url", "", "submission API base URL (default from VERIFY_API_BASE_URL)")
	flags.StringVar(&a.assistantURL, "assistant-url", "", "assistant base URL (default from ASSISTANT_BASE_URL)")
	flags.DurationVar(&a.timeout, "timeout", 0, "HTTP timeout per request, 0 for none")

	root.AddCommand(
		a.newChatCmd(),
		a.newAskCmd(),
		a.newPaperCmd(),
		a.newResetCmd(),
		a.newSubmissionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	// .env 缺失时只使用系统环境变量
	_ = godotenv.Load()

	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if a.apiURL != "" {
		cfg.Client.SubmissionBaseURL = a.apiURL
	}
	if a.assistantURL != "" {
		cfg.Client.AssistantBaseURL = a.assistantURL
	}
	if a.timeout > 0 {
		cfg.Client.Timeout = a.timeout
	}
	a.cfg = cfg

	// The terminal UI owns the screen, so it only logs to a file.
	build := logging.New
	if cmd.Name() == "chat" {
		build = logging.ForTerminalUI
	}
	logger, err := build(cfg.Log, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) clientOptions(name string) []client.Option {
	return []client.Option{
		client.WithTimeout(a.cfg.Client.Timeout),
		client.WithLogger(a.logger.Named(name)),
	}
}

func (a *app) submissionClient() *submission.Client {
	return submission.New(a.cfg.Client.SubmissionBaseURL, a.clientOptions("submission")...)
}

func (a *app) assistantClient() *assistant.Client {
	return assistant.New(a.cfg.Client.AssistantBaseURL, a.clientOptions("assistant")...)
}
