package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port           string
	AppEnv         string
	AllowedOrigins []string
	MaxUploadBytes int64

	// Gemini API
	GeminiAPIKey         string
	GeminiPortraitModel  string
	GeminiComposeModel   string
	GeminiTranslateModel string
	GeminiHTTPTimeout    time.Duration

	// Session
	SessionInactiveTTL time.Duration
	SessionMaxAge      time.Duration

	// Redis (선택 - 스냅샷 fan-out 용)
	RedisEnabled       bool
	RedisHost          string
	RedisPort          string
	RedisUsername      string
	RedisPassword      string
	RedisUseTLS        bool
	RedisChannelPrefix string
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️  .env file not found, using environment variables")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	log.Info().Msg("✅ Configuration loaded successfully")
	log.Info().Msgf("   Gemini: portrait=%s compose=%s translate=%s",
		cfg.GeminiPortraitModel, cfg.GeminiComposeModel, cfg.GeminiTranslateModel)
	if cfg.RedisEnabled {
		log.Info().Msgf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	}

	return cfg, nil
}

// FromEnv - .env 없이 현재 환경변수만으로 설정 생성
func FromEnv() (*Config, error) {
	cfg := &Config{
		// Server
		Port:           getEnv("PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "production"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_MB", 10)) << 20,

		// Gemini API
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiPortraitModel:  getEnv("GEMINI_PORTRAIT_MODEL", "imagen-4.0-generate-001"),
		GeminiComposeModel:   getEnv("GEMINI_COMPOSE_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiTranslateModel: getEnv("GEMINI_TRANSLATE_MODEL", "gemini-2.5-flash"),
		GeminiHTTPTimeout:    getDuration("GEMINI_HTTP_TIMEOUT", 5*time.Minute),

		// Session
		SessionInactiveTTL: getDuration("SESSION_INACTIVE_TTL", 2*time.Hour),
		SessionMaxAge:      getDuration("SESSION_MAX_AGE", 24*time.Hour),

		// Redis
		RedisEnabled:       getBool("REDIS_ENABLED", false),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisUsername:      getEnv("REDIS_USERNAME", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:        getBool("REDIS_USE_TLS", true),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "influencia:session"),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.RedisEnabled && c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required when REDIS_ENABLED is set")
	}
	return nil
}

// IsDevelopment - 개발 환경 여부
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid bool for %s: %q, using default %v", key, value, defaultValue)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid int for %s: %q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Warn().Msgf("⚠️  Invalid duration for %s: %q, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

// splitList - 콤마로 구분된 목록 파싱 (빈 항목 제거)
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
