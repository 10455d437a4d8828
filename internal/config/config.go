package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"
)

// 默认的后端地址，与两个前端模块各自指向的服务保持一致。
const (
	DefaultSubmissionBaseURL = "http://localhost:8000/api"
	DefaultAssistantBaseURL  = "http://localhost:5000"
	DefaultHistoryLimit      = 50
	DefaultPollInterval      = 2 * time.Second
	DefaultUploadParallelism = 4
)

// Config 聚合客户端与本地开发后端的配置项。
type Config struct {
	Client ClientConfig
	Log    LogConfig
	Server ServerConfig
	AI     AIConfig
}

// ClientConfig 描述两个 HTTP 客户端的连接参数。
type ClientConfig struct {
	SubmissionBaseURL string
	AssistantBaseURL  string
	// Timeout 为 0 表示不设置超时，由底层传输决定请求时长。
	Timeout           time.Duration
	PollInterval      time.Duration
	HistoryLimit      int
	UploadParallelism int
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level string
	File  string
	JSON  bool
}

// ServerConfig 描述本地开发后端的监听地址。
type ServerConfig struct {
	Addr string
}

// AIConfig 描述开发后端用于生成回复的大模型配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// fileConfig 是 YAML 配置文件的结构，环境变量会覆盖其中的值。
type fileConfig struct {
	Client struct {
		SubmissionBaseURL string `yaml:"submission_base_url"`
		AssistantBaseURL  string `yaml:"assistant_base_url"`
		Timeout           string `yaml:"timeout"`
		PollInterval      string `yaml:"poll_interval"`
		HistoryLimit      int    `yaml:"history_limit"`
		UploadParallelism int    `yaml:"upload_parallelism"`
	} `yaml:"client"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// Load 从环境变量加载配置；若设置了 VERIFY_CONFIG，则先读取该 YAML 文件。
func Load() (*Config, error) {
	return LoadFile(strings.TrimSpace(os.Getenv("VERIFY_CONFIG")))
}

// LoadFile 读取可选的 YAML 文件，再用环境变量覆盖。path 为空时只使用环境变量。
func LoadFile(path string) (*Config, error) {
	var fc fileConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	client, err := loadClientConfig(fc)
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig(fc)
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(fc)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Client: client, Log: logCfg, Server: server, AI: ai}, nil
}

func loadClientConfig(fc fileConfig) (ClientConfig, error) {
	timeout, err := parseDurationEnv("HTTP_TIMEOUT", fc.Client.Timeout, 0)
	if err != nil {
		return ClientConfig{}, err
	}
	if timeout < 0 {
		return ClientConfig{}, fmt.Errorf("invalid HTTP_TIMEOUT value %q: must not be negative", timeout)
	}

	poll, err := parseDurationEnv("POLL_INTERVAL", fc.Client.PollInterval, DefaultPollInterval)
	if err != nil {
		return ClientConfig{}, err
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	historyLimit := orDefaultInt(fc.Client.HistoryLimit, DefaultHistoryLimit)
	if override, err := parseOptionalIntEnv("HISTORY_LIMIT"); err != nil {
		return ClientConfig{}, err
	} else if override != nil {
		historyLimit = *override
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	parallelism := orDefaultInt(fc.Client.UploadParallelism, DefaultUploadParallelism)
	if override, err := parseOptionalIntEnv("UPLOAD_PARALLELISM"); err != nil {
		return ClientConfig{}, err
	} else if override != nil {
		parallelism = *override
	}
	if parallelism < 1 {
		parallelism = 1
	}

	return ClientConfig{
		SubmissionBaseURL: getEnvOrDefault("VERIFY_API_BASE_URL", orDefault(fc.Client.SubmissionBaseURL, DefaultSubmissionBaseURL)),
		AssistantBaseURL:  getEnvOrDefault("ASSISTANT_BASE_URL", orDefault(fc.Client.AssistantBaseURL, DefaultAssistantBaseURL)),
		Timeout:           timeout,
		PollInterval:      poll,
		HistoryLimit:      historyLimit,
		UploadParallelism: parallelism,
	}, nil
}

func loadLogConfig(fc fileConfig) (LogConfig, error) {
	jsonOut, err := parseBoolEnv("LOG_JSON", fc.Log.JSON)
	if err != nil {
		return LogConfig{}, err
	}

	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", orDefault(fc.Log.Level, "info")))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value %q", level)
	}

	return LogConfig{
		Level: level,
		File:  getEnvOrDefault("LOG_FILE", fc.Log.File),
		JSON:  jsonOut,
	}, nil
}

// loadServerConfig 解析开发后端的监听地址。
func loadServerConfig(fc fileConfig) (ServerConfig, error) {
	port := getEnvOrDefault("PORT", orDefault(fc.Server.Port, "8080"))

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Enabled 表示是否提供了必需的模型凭证。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func orDefaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv 依次使用环境变量、文件中的值和默认值。
func parseDurationEnv(key, fileValue string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = strings.TrimSpace(fileValue)
	}
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
