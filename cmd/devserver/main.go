// Command devserver runs an in-memory stand-in for the verification backend:
// the submission API under /api and the assistant routes at the root.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/paper-verify/internal/config"
	"github.com/zhouzirui/paper-verify/internal/handler"
	"github.com/zhouzirui/paper-verify/internal/logging"
	"github.com/zhouzirui/paper-verify/internal/service/ai"
	"github.com/zhouzirui/paper-verify/internal/service/chat"
	"github.com/zhouzirui/paper-verify/internal/service/submission"
)

func main() {
	configPath := flag.String("config", os.Getenv("VERIFY_CONFIG"), "optional YAML config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log, *verbose)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	chatModel, err := ai.NewChatModel(ctx, cfg.AI, logger)
	if err != nil {
		logger.Warn("Ark 模型初始化失败，改用离线回显模型", zap.Error(err))
		chatModel = ai.NewEchoModel()
	}
	aiService, err := ai.NewService(ctx, chatModel, logger.Named("ai"))
	if err != nil {
		logger.Fatal("failed to initialize AI service", zap.Error(err))
	}

	router := handler.NewRouter(
		submission.NewService(logger.Named("store")),
		chat.NewService(),
		aiService,
		logger.Named("http"),
	)

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("paper-verify dev backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
