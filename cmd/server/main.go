package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"kingk/internal/analysis"
	"kingk/internal/assistant"
	"kingk/internal/auth"
	"kingk/internal/bot"
	"kingk/internal/cache"
	"kingk/internal/chart"
	"kingk/internal/config"
	"kingk/internal/db"
	"kingk/internal/handler"
	"kingk/internal/llm"
	"kingk/internal/repository"
	"kingk/internal/share"
	"kingk/internal/voice"
	"kingk/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "kingk/docs"
)

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	initPostgresFunc    = db.InitPostgres
	initRedisFunc       = cache.InitRedis
	initTracerFunc      = tracing.InitTracer
	migrateFunc         = db.Migrate
	newUserRepoFunc     = repository.NewUserRepository
	newAnalysisRepoFunc = repository.NewAnalysisRepository
	newChatRepoFunc     = repository.NewChatMessageRepository
	newLLMClientFunc    = func(tracer trace.Tracer, apiKey, model string) llm.Client {
		return llm.NewOpenAIClient(tracer, apiKey, model)
	}
	newAnalyzerFunc        = analysis.NewAnalyzer
	newRegistryFunc        = assistant.NewRegistry
	newAuthServiceFunc     = auth.NewService
	newChartRendererFunc   = chart.NewRenderer
	newShareServiceFunc    = share.NewService
	newVoiceDialerFunc     = func(rawURL, apiKey string) voice.Dialer { return voice.NewRealtimeDialer(rawURL, apiKey) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           King K AI API
// @version         1.0
// @description     Chart analysis, Guru assistant and voice relay for King K AI.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	userRepo := newUserRepoFunc(db.Pool, tracer)
	analysisRepo := newAnalysisRepoFunc(db.Pool, tracer)
	chatRepo := newChatRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := migrateFunc(ctx, userRepo, analysisRepo, chatRepo); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	client := newLLMClientFunc(tracer, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	analyzer, err := newAnalyzerFunc(tracer, client, analysisRepo, cfg.OpenAIModel,
		time.Duration(cfg.AnalysisPersistTimeoutSecs)*time.Second)
	if err != nil {
		log.Fatalf("failed to create analyzer: %v", err)
	}
	defer analyzer.Wait()
	chats := newRegistryFunc(tracer, client, chatRepo, cfg.OpenAIModel)
	authService := newAuthServiceFunc(tracer, userRepo, cache.Client, cfg.JWTSecret,
		time.Duration(cfg.SessionTTLMins)*time.Minute)
	renderer := newChartRendererFunc()
	sharer := newShareServiceFunc(tracer, nil, cfg.DownloadDir)

	telegram := startTelegramBotFunc(cfg.TelegramBotToken, bot.Deps{
		Links:    userRepo,
		Codes:    authService,
		Advisor:  chats,
		Analyses: analyzer,
		Cards:    renderer,
	})
	if telegram != nil {
		sharer.SetTarget(telegram)
	}

	h := newHandlerFunc(tracer, handler.Deps{
		Auth:     authService,
		Analyses: analyzer,
		Chats:    chats,
		Cards:    renderer,
		Share:    sharer,
		Voice:    newVoiceDialerFunc(cfg.OpenAIRealtimeURL, cfg.OpenAIAPIKey),
		VoiceConfig: voice.Config{
			Model: cfg.OpenAIRealtimeModel,
			Voice: cfg.VoiceName,
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	r := newRouterFunc()
	r.Use(otelgin.Middleware("kingk"))
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    httpAddr(cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func httpAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
