package main

import (
	"context"
	"log"
	"os"
	"os/user"
	"time"

	"kingk/internal/analysis"
	"kingk/internal/assistant"
	"kingk/internal/auth"
	"kingk/internal/bot"
	"kingk/internal/cache"
	"kingk/internal/chart"
	"kingk/internal/config"
	"kingk/internal/db"
	"kingk/internal/llm"
	"kingk/internal/repository"
	"kingk/internal/share"
	"kingk/internal/tui"
	"kingk/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer
	newLLMClientFunc = func(tracer trace.Tracer, apiKey, model string) llm.Client {
		return llm.NewOpenAIClient(tracer, apiKey, model)
	}
	newShareTargetFunc = bot.NewShareTarget
	logToFileFunc      = tea.LogToFile
	runProgramFunc     = func(p *tea.Program) error {
		_, err := p.Run()
		return err
	}
)

// main runs the local terminal client. Chart paths typed into the analysis
// screen are read from this machine.
func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Keep library logs out of the alt screen.
	if f, err := logToFileFunc("kingk.log", "kingk"); err == nil {
		defer f.Close()
	}

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	userRepo := repository.NewUserRepository(db.Pool, tracer)
	analysisRepo := repository.NewAnalysisRepository(db.Pool, tracer)
	chatRepo := repository.NewChatMessageRepository(db.Pool, tracer)
	if db.Pool != nil {
		if err := db.Migrate(ctx, userRepo, analysisRepo, chatRepo); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	client := newLLMClientFunc(tracer, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	analyzer, err := analysis.NewAnalyzer(tracer, client, analysisRepo, cfg.OpenAIModel,
		time.Duration(cfg.AnalysisPersistTimeoutSecs)*time.Second)
	if err != nil {
		log.Fatalf("failed to create analyzer: %v", err)
	}
	defer analyzer.Wait()
	authService := auth.NewService(tracer, userRepo, cache.Client, cfg.JWTSecret,
		time.Duration(cfg.SessionTTLMins)*time.Minute)

	sharer := share.NewService(tracer, nil, cfg.DownloadDir)
	telegram, err := newShareTargetFunc(cfg.TelegramBotToken, userRepo)
	if err != nil {
		log.Printf("Telegram sharing disabled: %v", err)
	}
	if telegram != nil {
		sharer.SetTarget(telegram)
	}

	svc := tui.Services{
		Analyses: analyzer,
		Chats:    assistant.NewRegistry(tracer, client, chatRepo, cfg.OpenAIModel),
		Profiles: authService,
		Cards:    chart.NewRenderer(),
		Share:    sharer,
	}

	p, _ := tui.NewProgram(ctx, svc, authService,
		auth.NewRedisTokenStore(cache.Client, localDeviceID()),
		time.Duration(cfg.TokenRefreshSecs)*time.Second,
		tea.WithAltScreen())
	if err := runProgramFunc(p); err != nil {
		log.Fatalf("terminal client failed: %v", err)
	}
}

func localDeviceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	name := "user"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return "local:" + name + "@" + host
}
