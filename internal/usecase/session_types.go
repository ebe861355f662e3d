package usecase

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"linguistlm/internal/domain"
	"linguistlm/internal/ports"
)

var errNotStreaming = errors.New("live connection not open")

type activeSession struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards the resources below against teardown. Fields are written
	// once through attach and never reassigned.
	mu          sync.Mutex
	output      ports.AudioOutput
	audio       ports.AudioSession
	conn        ports.LiveConnection
	scheduler   *playbackScheduler
	streaming   bool
	tearingDown bool

	turns *turnAccumulator

	stateMu sync.Mutex
	state   domain.ConnectionState

	// Owned by the event consumer goroutine.
	decodeFailures int
	decodeReported bool

	teardownOnce sync.Once
	group        errgroup.Group
}

func newActiveSession(parent context.Context, id string) *activeSession {
	ctx, cancel := context.WithCancel(parent)
	return &activeSession{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		turns:  newTurnAccumulator(),
		state:  domain.ConnectionStateIdle,
	}
}

// attach runs fn unless teardown has begun. A false result means the caller
// still owns whatever it meant to hand over and must release it.
func (s *activeSession) attach(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tearingDown || s.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// detach marks the session as tearing down and returns what was attached.
// Later attach calls fail, so nothing can be added behind teardown's back.
func (s *activeSession) detach() (ports.LiveConnection, ports.AudioSession, *playbackScheduler, ports.AudioOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tearingDown = true
	s.streaming = false
	return s.conn, s.audio, s.scheduler, s.output
}

// SendRealtimeInput forwards captured audio once the connection is open.
// Frames read before that are discarded.
func (s *activeSession) SendRealtimeInput(chunk domain.MediaChunk) error {
	s.mu.Lock()
	conn := s.conn
	streaming := s.streaming
	s.mu.Unlock()
	if !streaming || conn == nil {
		return errNotStreaming
	}
	return conn.SendRealtimeInput(chunk)
}

func (s *activeSession) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.ConnectionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *activeSession) ended() bool {
	return s.ctx.Err() != nil || s.getState().Terminal()
}
