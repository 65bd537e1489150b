package handler

import (
	"context"
	"net/http"

	"kingk/internal/analysis"
	"kingk/internal/assistant"
	"kingk/internal/domain"
	"kingk/internal/share"
	"kingk/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
)

// SeveredMessage is shown for every provider connectivity or schema failure.
const SeveredMessage = "Neural link severed. Please try again."

type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (*domain.Session, error)
	Verify(ctx context.Context, token string) (*domain.Session, error)
	IssueLinkCode(ctx context.Context, userID string) (string, error)
	User(ctx context.Context, userID string) (*domain.User, error)
}

type AnalysisService interface {
	Analyze(ctx context.Context, userID string, req analysis.Request) (*domain.TradeAnalysisResult, error)
	Briefing(ctx context.Context, result *domain.TradeAnalysisResult) (string, error)
	Stats(ctx context.Context, userID string) (int, error)
	Recent(ctx context.Context, userID string, limit int) ([]domain.TradeAnalysisResult, error)
	Find(ctx context.Context, userID, id string) (*domain.TradeAnalysisResult, error)
}

type Conversations interface {
	For(ctx context.Context, userID string) *assistant.Conversation
	Forget(userID string)
}

type CardRenderer interface {
	RenderSignalCard(result *domain.TradeAnalysisResult) (*domain.ImageData, error)
}

type Sharer interface {
	Share(ctx context.Context, userID string, a share.Artifact) (*share.Result, error)
}

type Deps struct {
	Auth           AuthService
	Analyses       AnalysisService
	Chats          Conversations
	Cards          CardRenderer
	Share          Sharer
	Voice          voice.Dialer
	VoiceConfig    voice.Config
	AllowedOrigins []string
}

type Handler struct {
	tracer   trace.Tracer
	auth     AuthService
	analyses AnalysisService
	chats    Conversations
	cards    CardRenderer
	share    Sharer
	voice    voice.Dialer
	voiceCfg voice.Config
	upgrader websocket.Upgrader
}

func New(tracer trace.Tracer, deps Deps) *Handler {
	return &Handler{
		tracer:   tracer,
		auth:     deps.Auth,
		analyses: deps.Analyses,
		chats:    deps.Chats,
		cards:    deps.Cards,
		share:    deps.Share,
		voice:    deps.Voice,
		voiceCfg: deps.VoiceConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     originChecker(deps.AllowedOrigins),
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/auth/signup", h.SignUp)
	api.POST("/auth/signin", h.SignIn)
	api.GET("/instruments", h.ListInstruments)

	authed := api.Group("", h.RequireAuth())
	authed.POST("/auth/signout", h.SignOut)
	authed.POST("/auth/refresh", h.Refresh)
	authed.GET("/profile", h.GetProfile)
	authed.POST("/profile/link-code", h.CreateLinkCode)
	authed.POST("/analyses", h.CreateAnalysis)
	authed.GET("/analyses", h.ListAnalyses)
	authed.GET("/analyses/:id", h.GetAnalysis)
	authed.GET("/analyses/:id/card", h.GetAnalysisCard)
	authed.POST("/analyses/:id/briefing", h.CreateBriefing)
	authed.POST("/analyses/:id/share", h.ShareAnalysis)
	authed.GET("/chat", h.GetChat)
	authed.POST("/chat", h.PostChat)
	authed.GET("/voice", h.Voice)
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.health")
	defer span.End()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " unavailable"})
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
