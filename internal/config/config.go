package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

const devJWTSecret = "kingk-dev-secret"

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string

	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIRealtimeModel string
	OpenAIRealtimeURL   string
	VoiceName           string

	JWTSecret        string
	SessionTTLMins   int
	TokenRefreshSecs int

	HTTPPort           string
	CORSAllowedOrigins []string

	SSHBind        string
	SSHPort        int
	SSHHostKeyPath string

	DownloadDir                string
	AnalysisPersistTimeoutSecs int

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, sharing falls back to downloads")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, analysis, assistant and voice will be unavailable")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o"
	}

	cfg.OpenAIRealtimeModel = strings.TrimSpace(os.Getenv("OPENAI_REALTIME_MODEL"))
	if cfg.OpenAIRealtimeModel == "" {
		cfg.OpenAIRealtimeModel = "gpt-4o-realtime-preview"
	}

	cfg.OpenAIRealtimeURL = strings.TrimSpace(os.Getenv("OPENAI_REALTIME_URL"))
	if cfg.OpenAIRealtimeURL == "" {
		cfg.OpenAIRealtimeURL = "wss://api.openai.com/v1/realtime"
	}

	cfg.VoiceName = strings.TrimSpace(os.Getenv("VOICE_NAME"))
	if cfg.VoiceName == "" {
		cfg.VoiceName = "sage"
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = devJWTSecret
	}

	cfg.SessionTTLMins = positiveInt("SESSION_TTL_MINS", 60)
	cfg.TokenRefreshSecs = positiveInt("TOKEN_REFRESH_SECS", 45*60)
	if cfg.TokenRefreshSecs >= cfg.SessionTTLMins*60 {
		log.Printf("Warning: TOKEN_REFRESH_SECS=%d is not shorter than the session lifetime, refreshing at 3/4 of it", cfg.TokenRefreshSecs)
		cfg.TokenRefreshSecs = cfg.SessionTTLMins * 45
	}

	cfg.HTTPPort = strings.TrimSpace(os.Getenv("HTTP_PORT"))
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = strings.TrimSpace(os.Getenv("PORT"))
	}
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}

	cfg.CORSAllowedOrigins = parseList(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	cfg.SSHBind = strings.TrimSpace(os.Getenv("SSH_BIND"))
	if cfg.SSHBind == "" {
		cfg.SSHBind = "0.0.0.0"
	}
	cfg.SSHPort = positiveInt("SSH_PORT", 2222)
	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/kingk_ed25519"
	}

	cfg.DownloadDir = strings.TrimSpace(os.Getenv("DOWNLOAD_DIR"))
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	cfg.AnalysisPersistTimeoutSecs = positiveInt("ANALYSIS_PERSIST_TIMEOUT_SECS", 10)

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = positiveInt("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = positiveInt("MCP_REQUEST_TIMEOUT_SECS", 30)
	cfg.MCPRateLimitPerMin = positiveInt("MCP_RATE_LIMIT_PER_MIN", 60)

	return cfg
}

// positiveInt falls back to def when the variable is unset or not a positive integer.
func positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
