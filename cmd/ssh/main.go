package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	ossignal "os/signal"
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
	"kingk/internal/llm"
	"kingk/internal/repository"
	"kingk/internal/share"
	"kingk/internal/tui"
	"kingk/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel/trace"
	gossh "golang.org/x/crypto/ssh"
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
	newShareTargetFunc = bot.NewShareTarget
	newSSHServerFunc   = wish.NewServer
	startSSHServerFunc = func(srv *ssh.Server) error { return srv.ListenAndServe() }
	shutdownSSHFunc    = func(srv *ssh.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify  = ossignal.Notify
	waitForSignalFunc  = func(quit <-chan os.Signal) { <-quit }
)

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
	refreshEvery := time.Duration(cfg.TokenRefreshSecs) * time.Second

	handler := func(sess ssh.Session) *tea.Program {
		device := deviceID(sess.PublicKey())
		p, _ := tui.NewProgram(sess.Context(), svc, authService,
			auth.NewRedisTokenStore(cache.Client, device), refreshEvery,
			append(bm.MakeOptions(sess), tea.WithAltScreen())...)
		return p
	}

	srv, err := newSSHServerFunc(
		wish.WithAddress(net.JoinHostPort(cfg.SSHBind, fmt.Sprintf("%d", cfg.SSHPort))),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		// Any key is accepted; it only identifies the device, the account
		// is established by signing in.
		wish.WithPublicKeyAuth(func(ssh.Context, ssh.PublicKey) bool { return true }),
		wish.WithMiddleware(
			bm.MiddlewareWithProgramHandler(handler, termenv.ANSI256),
			activeterm.Middleware(),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create ssh server: %v", err)
	}

	go func() {
		log.Printf("SSH terminal listening on %s", srv.Addr)
		if err := startSSHServerFunc(srv); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Fatalf("ssh listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownSSHFunc(srv, shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		log.Fatal("SSH server forced to shutdown:", err)
	}
}

// deviceID is the key fingerprint, so a returning key resumes its session.
func deviceID(key ssh.PublicKey) string {
	if key == nil {
		return "anonymous"
	}
	return gossh.FingerprintSHA256(key)
}
