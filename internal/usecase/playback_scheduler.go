package usecase

import (
	"errors"
	"sync"
	"time"

	"linguistlm/internal/pcm"
	"linguistlm/internal/ports"
)

var errPlaybackClosed = errors.New("playback scheduler closed")

// playbackScheduler places decoded model audio back to back on the output
// clock. Each buffer starts at max(cursor, now) and pushes the cursor by its
// own duration, so buffers never overlap and never leave a gap when they
// arrive faster than real time.
type playbackScheduler struct {
	output ports.AudioOutput
	rate   int

	mu     sync.Mutex
	cursor time.Duration
	active map[uint64]ports.PlaybackHandle
	nextID uint64
	closed bool
}

func newPlaybackScheduler(output ports.AudioOutput, rate int) *playbackScheduler {
	if rate <= 0 {
		rate = pcm.OutputSampleRate
	}
	return &playbackScheduler{
		output: output,
		rate:   rate,
		active: make(map[uint64]ports.PlaybackHandle),
	}
}

// Enqueue schedules samples and returns the start time they were given.
func (s *playbackScheduler) Enqueue(samples []float32) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errPlaybackClosed
	}

	at := max(s.cursor, s.output.CurrentTime())
	handle, err := s.output.Schedule(samples, at)
	if err != nil {
		return 0, err
	}
	s.cursor = at + pcm.Duration(len(samples), s.rate)

	id := s.nextID
	s.nextID++
	s.active[id] = handle
	go s.release(id, handle)

	return at, nil
}

func (s *playbackScheduler) release(id uint64, handle ports.PlaybackHandle) {
	<-handle.Done()
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Interrupt stops every scheduled buffer and rewinds the cursor.
func (s *playbackScheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAllLocked()
}

// Close stops everything and rejects later buffers.
func (s *playbackScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopAllLocked()
}

func (s *playbackScheduler) stopAllLocked() {
	for id, handle := range s.active {
		handle.Stop()
		delete(s.active, id)
	}
	s.cursor = 0
}

func (s *playbackScheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *playbackScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
