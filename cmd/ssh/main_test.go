package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kingk/internal/bot"
	"kingk/internal/config"

	"github.com/charmbracelet/ssh"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	gossh "golang.org/x/crypto/ssh"
)

func TestMainStartsSSHServer(t *testing.T) {
	restore := stubSSHDeps(t)
	defer restore()

	var addr string
	started := make(chan struct{})
	startSSHServerFunc = func(srv *ssh.Server) error {
		addr = srv.Addr
		close(started)
		return ssh.ErrServerClosed
	}
	waitForSignalFunc = func(<-chan os.Signal) { <-started }

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
	if addr != "127.0.0.1:2323" {
		t.Fatalf("unexpected listen address %q", addr)
	}
}

func TestDeviceIDIsKeyFingerprint(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key, err := gossh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("wrap key: %v", err)
	}

	id := deviceID(key)
	if !strings.HasPrefix(id, "SHA256:") {
		t.Fatalf("expected a SHA256 fingerprint, got %q", id)
	}
	if deviceID(key) != id {
		t.Fatal("fingerprint must be stable")
	}
	if deviceID(nil) != "anonymous" {
		t.Fatal("missing key should map to the anonymous device")
	}
}

func stubSSHDeps(t *testing.T) func() {
	t.Helper()

	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origShareTarget := newShareTargetFunc
	origStart := startSSHServerFunc
	origShutdown := shutdownSSHFunc
	origNotify := setupSignalNotify
	origWait := waitForSignalFunc

	keyPath := filepath.Join(t.TempDir(), "host_ed25519")
	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			JWTSecret:                  "secret",
			SessionTTLMins:             60,
			TokenRefreshSecs:           60,
			SSHBind:                    "127.0.0.1",
			SSHPort:                    2323,
			SSHHostKeyPath:             keyPath,
			DownloadDir:                t.TempDir(),
			AnalysisPersistTimeoutSecs: 1,
		}
	}
	initPostgresFunc = func(context.Context, string) {}
	initRedisFunc = func(context.Context, string) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newShareTargetFunc = func(string, bot.ChatLinks) (*bot.Bot, error) { return nil, nil }
	startSSHServerFunc = func(*ssh.Server) error { return ssh.ErrServerClosed }
	shutdownSSHFunc = func(*ssh.Server, context.Context) error { return nil }
	setupSignalNotify = func(chan<- os.Signal, ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newShareTargetFunc = origShareTarget
		startSSHServerFunc = origStart
		shutdownSSHFunc = origShutdown
		setupSignalNotify = origNotify
		waitForSignalFunc = origWait
	}
}
