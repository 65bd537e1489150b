package voice

import (
	"sort"
	"sync"
)

// Scheduled is a buffer handed to the sink.
type Scheduled struct {
	ID       int
	Start    float64
	Duration float64
}

// Scheduler queues downlink audio back to back on the output clock. Entries
// leave the playing set exactly once, either by Finished or by Interrupt.
type Scheduler struct {
	clock Clock
	sink  Sink
	rate  int

	mu        sync.Mutex
	nextStart float64
	nextID    int
	playing   map[int]Scheduled
}

func NewScheduler(clock Clock, sink Sink, sampleRate int) *Scheduler {
	if sampleRate <= 0 {
		sampleRate = DefaultOutputSampleRate
	}
	return &Scheduler{
		clock:   clock,
		sink:    sink,
		rate:    sampleRate,
		playing: make(map[int]Scheduled),
	}
}

// Schedule starts samples at max(nextStart, now) and advances nextStart by
// the buffer duration.
func (s *Scheduler) Schedule(samples []float32) Scheduled {
	s.mu.Lock()
	start := s.nextStart
	if now := s.clock.Now(); now > start {
		start = now
	}
	entry := Scheduled{
		ID:       s.nextID,
		Start:    start,
		Duration: float64(len(samples)) / float64(s.rate),
	}
	s.nextID++
	s.nextStart = start + entry.Duration
	s.playing[entry.ID] = entry
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Start(entry.ID, samples, entry.Start)
	}
	return entry
}

// Finished removes a buffer that played to the end. It reports false if the
// buffer was already removed.
func (s *Scheduler) Finished(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playing[id]; !ok {
		return false
	}
	delete(s.playing, id)
	return true
}

// Interrupt stops every unfinished buffer and resets the schedule so the next
// buffer starts at the clock's current time. Returns how many were stopped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	ids := make([]int, 0, len(s.playing))
	for id := range s.playing {
		ids = append(ids, id)
	}
	s.playing = make(map[int]Scheduled)
	s.nextStart = 0
	s.mu.Unlock()

	sort.Ints(ids)
	if s.sink != nil {
		for _, id := range ids {
			s.sink.Stop(id)
		}
	}
	return len(ids)
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playing)
}

func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
