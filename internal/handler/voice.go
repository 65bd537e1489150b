package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"kingk/internal/codec"
	"kingk/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	voiceWriteWait  = 10 * time.Second
	voiceReadLimit  = 1 << 20
	voiceClientStop = "stop"
	voiceClientEnd  = "ended"

	voiceCaptureBuffer = 16
)

// voiceFrame is the JSON downlink protocol. Start is seconds on the session
// timeline, which begins at the "ready" frame.
type voiceFrame struct {
	Type     string  `json:"type"`
	ID       int     `json:"id"`
	Start    float64 `json:"start,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Audio    string  `json:"audio,omitempty"`
	Stopped  int     `json:"stopped,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type voiceClientMessage struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
}

type sessionClock struct{ start time.Time }

func (c sessionClock) Now() float64 { return time.Since(c.start).Seconds() }

// frameSink serialises every downlink write on one connection.
type frameSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
	rate int
}

func (s *frameSink) write(f voiceFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(voiceWriteWait))
	return s.conn.WriteJSON(f)
}

func (s *frameSink) Start(id int, samples []float32, at float64) {
	_ = s.write(voiceFrame{
		Type:     "audio",
		ID:       id,
		Start:    at,
		Duration: float64(len(samples)) / float64(s.rate),
		Audio:    codec.EncodeBase64(codec.Float32ToPCM16(samples)),
	})
}

func (s *frameSink) Stop(id int) {
	_ = s.write(voiceFrame{Type: "stop", ID: id})
}

// browserCapture is the microphone on the far side of the socket. The read
// loop pushes decoded PCM16 frames, and the session reframes them.
type browserCapture struct {
	samples   chan []float32
	stopped   chan struct{}
	closeOnce sync.Once
}

func newBrowserCapture() *browserCapture {
	return &browserCapture{
		samples: make(chan []float32, voiceCaptureBuffer),
		stopped: make(chan struct{}),
	}
}

func (c *browserCapture) Samples() <-chan []float32 { return c.samples }

func (c *browserCapture) Close() error {
	c.closeOnce.Do(func() { close(c.stopped) })
	return nil
}

// push reports false once the session has released the capture.
func (c *browserCapture) push(pcm []byte) bool {
	select {
	case c.samples <- codec.PCM16ToFloat32(pcm):
		return true
	case <-c.stopped:
		return false
	}
}

// end is called by the read loop, the only sender.
func (c *browserCapture) end() { close(c.samples) }

type browserMicrophone struct{ capture *browserCapture }

func (m browserMicrophone) Open(context.Context) (voice.Capture, error) { return m.capture, nil }

func (h *Handler) voiceConfig() voice.Config {
	cfg := h.voiceCfg
	if cfg.Instruction == "" {
		cfg.Instruction = voice.Instruction
	}
	if cfg.InputSampleRate <= 0 {
		cfg.InputSampleRate = voice.DefaultInputSampleRate
	}
	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = voice.DefaultOutputSampleRate
	}
	return cfg
}

// Voice godoc
// @Summary      Realtime voice relay
// @Description  WebSocket. Binary frames carry PCM16 mono microphone audio, forwarded upstream in fixed 4096-sample frames; the server answers with JSON frames of scheduled PCM16 playback, stop and interrupted notices.
// @Tags         voice
// @Security     BearerAuth
// @Param        access_token  query  string  false  "Bearer token for browsers"
// @Success      101
// @Failure      503  {object}  map[string]string
// @Router       /api/voice [get]
func (h *Handler) Voice(c *gin.Context) {
	if h.voice == nil {
		unavailable(c, "voice")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.voice")
	defer span.End()

	logger := slog.Default().With("component", "voice-relay", "user", userID(c))
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(voiceReadLimit)

	cfg := h.voiceConfig()
	sink := &frameSink{conn: conn, rate: cfg.OutputSampleRate}
	capture := newBrowserCapture()
	sched := voice.NewScheduler(sessionClock{start: time.Now()}, sink, cfg.OutputSampleRate)

	sess := voice.NewSession(h.voice, browserMicrophone{capture: capture}, sched, cfg, logger)
	sess.OnInterrupt = func(n int) {
		_ = sink.write(voiceFrame{Type: "interrupted", Stopped: n})
	}
	sess.OnTurnComplete = func() {
		_ = sink.write(voiceFrame{Type: "turn_complete"})
	}
	sess.OnStateChange = func(st voice.State) {
		if st == voice.StateInactive {
			// Unblock the read loop when the provider goes away.
			_ = conn.SetReadDeadline(time.Now())
		}
	}

	if err := sess.Activate(ctx); err != nil {
		logger.Error("voice provider dial failed", "err", err)
		_ = sink.write(voiceFrame{Type: "error", Error: SeveredMessage})
		return
	}
	if err := sink.write(voiceFrame{Type: "ready"}); err == nil {
		readVoiceClient(conn, capture, sched, logger)
	}
	capture.end()

	sess.Deactivate()
	_ = sink.write(voiceFrame{Type: "closed"})
}

// readVoiceClient feeds microphone frames to the capture and applies the
// browser's playback notices until the client stops or the link drops.
func readVoiceClient(conn *websocket.Conn, capture *browserCapture, sched *voice.Scheduler, logger *slog.Logger) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("voice client read ended", "err", err)
			}
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if len(data) < 2 {
				continue
			}
			if !capture.push(data) {
				return
			}
		case websocket.TextMessage:
			var msg voiceClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case voiceClientEnd:
				sched.Finished(msg.ID)
			case voiceClientStop:
				return
			}
		}
	}
}
