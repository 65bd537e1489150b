// Package voice runs the live voice link with the guru: microphone frames go
// up a duplex channel, model audio comes down and is scheduled for gapless
// playback.
package voice

import (
	"context"
	"fmt"
)

const (
	FrameSamples            = 4096
	DefaultInputSampleRate  = 24000
	DefaultOutputSampleRate = 24000
)

// Instruction is the voice persona.
const Instruction = "You are King K, the institutional trading guru. You talk strictly about SMC, liquidity, and professional trading. Your tone is clinical, sharp, and authoritative."

type State int

const (
	StateInactive State = iota
	StateOpening
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Config struct {
	Model            string
	Voice            string
	Instruction      string
	InputSampleRate  int
	OutputSampleRate int
}

// ServerMessage is one downlink event. Audio is raw little-endian PCM16.
type ServerMessage struct {
	Audio        []byte
	Interrupted  bool
	TurnComplete bool
	Err          error
}

// Channel is an open duplex stream to the model. Messages is closed when the
// stream ends.
type Channel interface {
	SendAudio(ctx context.Context, pcm []byte) error
	Messages() <-chan ServerMessage
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Channel, error)
}

// Capture is an acquired microphone. Samples is closed when capture stops.
type Capture interface {
	Samples() <-chan []float32
	Close() error
}

type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Clock is the output device clock in seconds.
type Clock interface {
	Now() float64
}

// Sink plays scheduled buffers.
type Sink interface {
	Start(id int, samples []float32, at float64)
	Stop(id int)
}
