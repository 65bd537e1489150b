package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"kingk/internal/codec"
)

// Session owns one voice link: the microphone, the channel, the pumps and the
// playback schedule. Deactivate is the only way to cancel it.
type Session struct {
	dialer Dialer
	mic    Microphone
	sched  *Scheduler
	cfg    Config
	logger *slog.Logger

	// OnStateChange is called after every state change, outside the lock.
	OnStateChange  func(State)
	// OnInterrupt reports how many buffers a barge-in stopped.
	OnInterrupt    func(stopped int)
	// OnTurnComplete fires when the model finishes a reply.
	OnTurnComplete func()

	mu        sync.Mutex
	state     State
	opening   chan struct{}
	cancelled bool
	link      *link
}

// link is one activation. Teardown happens once, by whoever claims it first.
type link struct {
	ch       Channel
	capture  Capture
	done     chan struct{}
	released chan struct{}
	closing  bool
	pumps    sync.WaitGroup
}

func NewSession(dialer Dialer, mic Microphone, sched *Scheduler, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Instruction == "" {
		cfg.Instruction = Instruction
	}
	return &Session{
		dialer: dialer,
		mic:    mic,
		sched:  sched,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate acquires the microphone, opens the channel and starts both pumps.
// Calling it while opening or active is a no-op. On failure the session is
// left inactive with nothing running.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInactive {
		s.mu.Unlock()
		return nil
	}
	s.state = StateOpening
	s.cancelled = false
	s.opening = make(chan struct{})
	opening := s.opening
	s.mu.Unlock()
	s.notify(StateOpening)

	capture, err := s.mic.Open(ctx)
	if err != nil {
		s.failOpen(opening)
		s.logger.Error("microphone unavailable", "error", err)
		return fmt.Errorf("open microphone: %w", err)
	}

	ch, err := s.dialer.Dial(ctx, s.cfg)
	if err != nil {
		_ = capture.Close()
		s.failOpen(opening)
		s.logger.Error("failed to connect voice link", "error", err)
		return fmt.Errorf("dial voice link: %w", err)
	}

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		// Release before waking the Deactivate waiting on opening.
		_ = ch.Close()
		_ = capture.Close()
		s.failOpen(opening)
		return nil
	}
	l := &link{
		ch:       ch,
		capture:  capture,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
	s.link = l
	s.state = StateActive
	l.pumps.Add(2)
	go s.uplink(l)
	go s.downlink(l)
	close(opening)
	s.mu.Unlock()

	s.notify(StateActive)
	return nil
}

func (s *Session) failOpen(opening chan struct{}) {
	s.mu.Lock()
	s.state = StateInactive
	close(opening)
	s.mu.Unlock()
	s.notify(StateInactive)
}

// Deactivate is safe in any state and returns once everything the session
// held is released. If an open is pending it waits for it first.
func (s *Session) Deactivate() {
	s.mu.Lock()
	if s.state == StateOpening {
		s.cancelled = true
		opening := s.opening
		s.mu.Unlock()
		<-opening
		return
	}
	l := s.link
	s.mu.Unlock()
	if l != nil {
		s.teardown(l)
	}
}

// teardown closes l if it is still the current link. A later activation is
// never touched.
func (s *Session) teardown(l *link) {
	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		return
	}
	if l.closing {
		s.mu.Unlock()
		<-l.released
		return
	}
	l.closing = true
	close(l.done)
	s.mu.Unlock()

	if err := l.ch.Close(); err != nil {
		s.logger.Debug("voice link close", "error", err)
	}
	if err := l.capture.Close(); err != nil {
		s.logger.Debug("microphone close", "error", err)
	}
	l.pumps.Wait()
	s.sched.Interrupt()

	s.mu.Lock()
	s.link = nil
	s.state = StateInactive
	close(l.released)
	s.mu.Unlock()
	s.notify(StateInactive)
}

func (s *Session) notify(state State) {
	if s.OnStateChange != nil {
		s.OnStateChange(state)
	}
}

// uplink cuts capture into fixed frames and sends them as PCM16.
func (s *Session) uplink(l *link) {
	defer l.pumps.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-l.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	frame := make([]float32, 0, FrameSamples)
	samples := l.capture.Samples()
	for {
		select {
		case <-l.done:
			return
		case chunk, ok := <-samples:
			if !ok {
				return
			}
			for len(chunk) > 0 {
				n := FrameSamples - len(frame)
				if n > len(chunk) {
					n = len(chunk)
				}
				frame = append(frame, chunk[:n]...)
				chunk = chunk[n:]
				if len(frame) < FrameSamples {
					continue
				}
				if err := l.ch.SendAudio(ctx, codec.Float32ToPCM16(frame)); err != nil {
					s.logger.Warn("uplink frame dropped", "error", err)
				}
				frame = frame[:0]
			}
		}
	}
}

func (s *Session) downlink(l *link) {
	defer l.pumps.Done()

	msgs := l.ch.Messages()
	for {
		select {
		case <-l.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				s.logger.Debug("voice link closed by remote")
				go s.teardown(l)
				return
			}
			s.handle(msg)
		}
	}
}

// handle applies every part of a message: error, audio, interruption, turn end.
func (s *Session) handle(msg ServerMessage) {
	if msg.Err != nil {
		s.logger.Warn("voice link error", "error", msg.Err)
	}
	if len(msg.Audio) > 0 {
		s.sched.Schedule(codec.PCM16ToFloat32(msg.Audio))
	}
	if msg.Interrupted {
		n := s.sched.Interrupt()
		if s.OnInterrupt != nil {
			s.OnInterrupt(n)
		}
	}
	if msg.TurnComplete && s.OnTurnComplete != nil {
		s.OnTurnComplete()
	}
}
