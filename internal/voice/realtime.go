package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"kingk/internal/codec"

	"github.com/gorilla/websocket"
)

const (
	DefaultRealtimeURL = "wss://api.openai.com/v1/realtime"
	realtimeWriteWait  = 10 * time.Second
	realtimeBuffer     = 64
)

// RealtimeDialer opens the provider's realtime speech-to-speech socket.
type RealtimeDialer struct {
	URL    string
	APIKey string
	Dialer *websocket.Dialer
}

func NewRealtimeDialer(rawURL, apiKey string) *RealtimeDialer {
	if rawURL == "" {
		rawURL = DefaultRealtimeURL
	}
	return &RealtimeDialer{URL: rawURL, APIKey: apiKey, Dialer: websocket.DefaultDialer}
}

type realtimeSessionUpdate struct {
	Type    string          `json:"type"`
	Session realtimeSession `json:"session"`
}

type realtimeSession struct {
	Modalities        []string          `json:"modalities"`
	Instructions      string            `json:"instructions,omitempty"`
	Voice             string            `json:"voice,omitempty"`
	InputAudioFormat  string            `json:"input_audio_format"`
	OutputAudioFormat string            `json:"output_audio_format"`
	TurnDetection     map[string]string `json:"turn_detection"`
}

type realtimeAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type realtimeEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (d *RealtimeDialer) Dial(ctx context.Context, cfg Config) (Channel, error) {
	if d.APIKey == "" {
		return nil, errors.New("realtime api key is not configured")
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	q := u.Query()
	if cfg.Model != "" {
		q.Set("model", cfg.Model)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	ch := newRealtimeChannel(conn)
	update := realtimeSessionUpdate{
		Type: "session.update",
		Session: realtimeSession{
			Modalities:        []string{"audio", "text"},
			Instructions:      cfg.Instruction,
			Voice:             cfg.Voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			TurnDetection:     map[string]string{"type": "server_vad"},
		},
	}
	if err := ch.writeJSON(update); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("configure realtime session: %w", err)
	}
	go ch.readLoop()
	return ch, nil
}

type realtimeChannel struct {
	conn *websocket.Conn
	msgs chan ServerMessage

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newRealtimeChannel(conn *websocket.Conn) *realtimeChannel {
	return &realtimeChannel{
		conn:   conn,
		msgs:   make(chan ServerMessage, realtimeBuffer),
		closed: make(chan struct{}),
	}
}

func (c *realtimeChannel) Messages() <-chan ServerMessage { return c.msgs }

func (c *realtimeChannel) SendAudio(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeJSON(realtimeAppend{Type: "input_audio_buffer.append", Audio: codec.EncodeBase64(pcm)})
}

func (c *realtimeChannel) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *realtimeChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *realtimeChannel) readLoop() {
	defer close(c.msgs)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				select {
				case <-c.closed:
				default:
					log.Printf("realtime websocket error: %v", err)
				}
			}
			return
		}
		msg, ok := parseRealtimeEvent(data)
		if !ok {
			continue
		}
		select {
		case c.msgs <- msg:
		case <-c.closed:
			return
		}
	}
}

func parseRealtimeEvent(data []byte) (ServerMessage, bool) {
	var ev realtimeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerMessage{Err: fmt.Errorf("decode realtime event: %w", err)}, true
	}
	switch ev.Type {
	case "response.audio.delta":
		audio, err := codec.DecodeBase64(ev.Delta)
		if err != nil {
			return ServerMessage{Err: fmt.Errorf("decode audio delta: %w", err)}, true
		}
		return ServerMessage{Audio: audio}, true
	case "input_audio_buffer.speech_started":
		return ServerMessage{Interrupted: true}, true
	case "response.done":
		return ServerMessage{TurnComplete: true}, true
	case "error":
		msg := "unknown realtime error"
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		return ServerMessage{Err: errors.New(msg)}, true
	}
	return ServerMessage{}, false
}
