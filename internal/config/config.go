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

	"github.com/zhouzirui/z-pharmacy/backend/internal/service/assistant"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Session   SessionConfig
	Assistant AssistantConfig
	AI        AIConfig
	Health    HealthConfig
	Cache     CacheConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	assistantCfg, err := loadAssistantConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	health, err := loadHealthConfig()
	if err != nil {
		return nil, err
	}

	cacheCfg, err := loadCacheConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Store:     store,
		Session:   session,
		Assistant: assistantCfg,
		AI:        ai,
		Health:    health,
		Cache:     cacheCfg,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// StoreConfig 描述库存与购物车的存储后端。
type StoreConfig struct {
	// Driver 为 memory、sqlite、postgres 或 mysql。
	Driver string
	DSN    string
	Seed   bool
}

func loadStoreConfig() (StoreConfig, error) {
	seed, err := parseBoolEnv("STORE_SEED", true)
	if err != nil {
		return StoreConfig{}, err
	}

	return StoreConfig{
		Driver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", "memory")),
		DSN:    strings.TrimSpace(os.Getenv("STORE_DSN")),
		Seed:   seed,
	}, nil
}

// SessionConfig 描述会话上下文的淘汰策略。
type SessionConfig struct {
	TTL        time.Duration
	MaxEntries int
	// HistoryLimit 为每个会话保留的对话条数。
	HistoryLimit int
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	maxEntries := 10000
	if override, err := parseOptionalIntEnv("SESSION_MAX_ENTRIES"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return SessionConfig{}, fmt.Errorf("invalid SESSION_MAX_ENTRIES value %d: must be positive", *override)
		}
		maxEntries = *override
	}

	historyLimit := 200
	if override, err := parseOptionalIntEnv("SESSION_HISTORY_LIMIT"); err != nil {
		return SessionConfig{}, err
	} else if override != nil && *override > 0 {
		historyLimit = *override
	}

	return SessionConfig{TTL: ttl, MaxEntries: maxEntries, HistoryLimit: historyLimit}, nil
}

// AssistantConfig 描述对话引擎的行为开关。
type AssistantConfig struct {
	BulkQuantity assistant.BulkQuantityPolicy
	StoreHours   string
	AliasFile    string
}

func loadAssistantConfig() (AssistantConfig, error) {
	policy, err := assistant.ParseBulkQuantityPolicy(os.Getenv("ASSISTANT_BULK_ADD_QUANTITY"))
	if err != nil {
		return AssistantConfig{}, fmt.Errorf("invalid ASSISTANT_BULK_ADD_QUANTITY: %w", err)
	}

	return AssistantConfig{
		BulkQuantity: policy,
		StoreHours:   getEnvOrDefault("STORE_HOURS", assistant.DefaultStoreHours),
		AliasFile:    strings.TrimSpace(os.Getenv("ALIAS_FILE")),
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
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
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// HealthConfig 描述健康知识库与向量检索。
type HealthConfig struct {
	Enabled    bool
	CorpusPath string
	TopK       int
	Threshold  float64
	CacheTTL   time.Duration
	// Summarize 为 true 且 AI 配置可用时，用大模型压缩检索结果。
	Summarize bool
	// 为空时使用本地哈希向量。
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string
}

func loadHealthConfig() (HealthConfig, error) {
	enabled, err := parseBoolEnv("HEALTH_ENABLED", true)
	if err != nil {
		return HealthConfig{}, err
	}

	summarize, err := parseBoolEnv("HEALTH_SUMMARIZE", false)
	if err != nil {
		return HealthConfig{}, err
	}

	cacheTTL, err := parseDurationEnv("HEALTH_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return HealthConfig{}, err
	}

	topK := 2
	if override, err := parseOptionalIntEnv("HEALTH_TOP_K"); err != nil {
		return HealthConfig{}, err
	} else if override != nil && *override > 0 {
		topK = *override
	}

	threshold := 0.1
	if override, err := parseOptionalFloatEnv("HEALTH_MIN_SIMILARITY"); err != nil {
		return HealthConfig{}, err
	} else if override != nil {
		threshold = *override
	}

	return HealthConfig{
		Enabled:          enabled,
		CorpusPath:       strings.TrimSpace(os.Getenv("HEALTH_CORPUS_PATH")),
		TopK:             topK,
		Threshold:        threshold,
		CacheTTL:         cacheTTL,
		Summarize:        summarize,
		EmbeddingBaseURL: strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL")),
		EmbeddingAPIKey:  strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")),
		EmbeddingModel:   getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
	}, nil
}

// CacheConfig 描述健康回答缓存；RedisAddr 为空时使用进程内缓存。
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	MemoryEntries int
}

func loadCacheConfig() (CacheConfig, error) {
	db := 0
	if override, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return CacheConfig{}, err
	} else if override != nil {
		db = *override
	}

	entries := 1024
	if override, err := parseOptionalIntEnv("CACHE_MEMORY_ENTRIES"); err != nil {
		return CacheConfig{}, err
	} else if override != nil && *override > 0 {
		entries = *override
	}

	return CacheConfig{
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       db,
		RedisPrefix:   getEnvOrDefault("REDIS_PREFIX", "pharmacy:"),
		MemoryEntries: entries,
	}, nil
}

// LogConfig 描述日志级别与格式。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
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
