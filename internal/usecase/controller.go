package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"linguistlm/internal/domain"
	"linguistlm/internal/pcm"
	"linguistlm/internal/ports"
)

const (
	statusAlreadyActive = "Session already active."
	statusInitializing  = "Initializing audio..."
	statusConnecting    = "Connecting to Gemini Live API..."
	statusEstablished   = "Connection established. You can start speaking."
	statusInterrupted   = "Model response interrupted."
	statusEnded         = "Conversation ended."

	defaultMaxDecodeFailures = 3
)

// Config controls the live conversation.
type Config struct {
	Audio             ports.AudioConfig
	Playback          ports.PlaybackConfig
	Live              ports.LiveConfig
	FrameSamples      int
	MaxDecodeFailures int
}

// ConversationController owns at most one live voice conversation at a time:
// microphone capture, the duplex transport and gapless model playback.
type ConversationController struct {
	capture  ports.AudioCapture
	playback ports.AudioPlayback
	provider ports.LiveProvider
	events   ports.ConversationSink
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	current  *activeSession
	messages []domain.ChatMessage
}

func NewConversationController(
	capture ports.AudioCapture,
	playback ports.AudioPlayback,
	provider ports.LiveProvider,
	events ports.ConversationSink,
	cfg Config,
) *ConversationController {
	if cfg.FrameSamples < 256 {
		cfg.FrameSamples = defaultFrameSamples
	}
	if cfg.MaxDecodeFailures <= 0 {
		cfg.MaxDecodeFailures = defaultMaxDecodeFailures
	}
	if cfg.Playback.SampleRate <= 0 {
		cfg.Playback.SampleRate = pcm.OutputSampleRate
	}
	if cfg.Playback.Channels <= 0 {
		cfg.Playback.Channels = 1
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = pcm.InputSampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	return &ConversationController{
		capture:  capture,
		playback: playback,
		provider: provider,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start opens audio and the live transport. The microphone is drained from
// the moment it opens, but its audio is streamed only after the remote
// confirms the connection. Failures are reported once through the sink,
// leave the session errored and are also returned.
func (c *ConversationController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil && !c.current.getState().Terminal() {
		c.mu.Unlock()
		c.status(statusAlreadyActive)
		return nil
	}
	active := newActiveSession(ctx, uuid.NewString())
	c.current = active
	c.mu.Unlock()

	log.Info().Str("session", active.id).Msg("starting conversation")

	if !active.attach(func() { c.setState(active, domain.ConnectionStateInitializing) }) {
		return nil
	}
	c.status(statusInitializing)
	c.events.RecordingChanged(true)

	output, err := c.playback.Open(active.ctx, c.cfg.Playback)
	if err != nil {
		return c.failStart(active, wrapErr(domain.ErrAudioDevice, err))
	}
	if !active.attach(func() {
		active.output = output
		active.scheduler = newPlaybackScheduler(output, c.cfg.Playback.SampleRate)
	}) {
		_ = output.Close()
		return nil
	}

	audio, err := c.capture.Start(active.ctx, c.cfg.Audio)
	if err != nil {
		return c.failStart(active, wrapErr(domain.ErrPermissionDenied, err))
	}
	if !active.attach(func() {
		active.audio = audio
		active.group.Go(func() error { return c.pumpCapture(active) })
		c.setState(active, domain.ConnectionStateConnecting)
	}) {
		_ = audio.Stop()
		return nil
	}
	c.status(statusConnecting)

	conn, err := c.provider.Connect(active.ctx, c.cfg.Live)
	if err != nil {
		return c.failStart(active, wrapErr(domain.ErrConnectionFailure, err))
	}
	if !active.attach(func() {
		active.conn = conn
		active.group.Go(func() error {
			c.consumeEvents(active)
			return nil
		})
	}) {
		_ = conn.Close()
		return nil
	}
	return nil
}

// Stop ends the current conversation. It is idempotent and safe from any
// state; remote close errors never block local cleanup. Every call ends by
// reporting recording stopped and the conversation ended.
func (c *ConversationController) Stop() {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()

	if active != nil {
		c.endSession(active, domain.ConnectionStateClosed)
		if err := active.group.Wait(); err != nil {
			log.Debug().Err(err).Str("session", active.id).Msg("session goroutines exited with error")
		}
	}
	c.announceStopped()
}

// Status returns the current conversation status.
func (c *ConversationController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.ConnectionStateIdle}
	}
	state := c.current.getState()
	return domain.Status{
		State:     state,
		Active:    !state.Terminal() && state != domain.ConnectionStateIdle,
		SessionID: c.current.id,
	}
}

// Messages returns a copy of the conversation log.
func (c *ConversationController) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *ConversationController) consumeEvents(active *activeSession) {
	for event := range active.conn.Events() {
		switch event.Type {
		case ports.LiveEventOpen:
			c.handleOpen(active)
		case ports.LiveEventMessage:
			if event.Message != nil {
				c.handleMessage(active, *event.Message)
			}
		case ports.LiveEventError:
			c.handleTransportError(active, event.Err)
		case ports.LiveEventClose:
			c.handleClose(active, event.CloseCode, event.CloseReason)
		}
	}
}

func (c *ConversationController) handleOpen(active *activeSession) {
	if active.getState() != domain.ConnectionStateConnecting {
		return
	}
	if !active.attach(func() {
		active.streaming = true
		c.setState(active, domain.ConnectionStateOpen)
	}) {
		return
	}
	c.status(statusEstablished)
}

// pumpCapture drains the microphone for the whole session.
func (c *ConversationController) pumpCapture(active *activeSession) error {
	err := pumpCaptureFrames(active.ctx, active.audio, active, c.cfg.FrameSamples)
	if err != nil && !active.ended() {
		log.Error().Err(err).Str("session", active.id).Msg("capture stopped")
		c.events.SessionError(domain.ErrorCodeAudioStream, err.Error())
	}
	return err
}

func (c *ConversationController) handleMessage(active *activeSession, msg domain.ServerMessage) {
	if active.ended() {
		return
	}

	for _, payload := range msg.Audio {
		samples, err := pcm.DecodePayload(payload)
		if err != nil {
			c.decodeFailed(active, err)
			continue
		}
		active.decodeFailures = 0
		active.decodeReported = false
		if _, err := active.scheduler.Enqueue(samples); err != nil {
			log.Warn().Err(err).Str("session", active.id).Msg("failed to schedule model audio")
		}
	}

	if msg.InputTranscript != "" {
		active.turns.AddInput(msg.InputTranscript)
	}
	if msg.OutputTranscript != "" {
		active.turns.AddOutput(msg.OutputTranscript)
	}

	if msg.TurnComplete {
		user, model := active.turns.Flush()
		if user != "" {
			c.appendMessage(domain.RoleUser, user)
		}
		if model != "" {
			c.appendMessage(domain.RoleModel, model)
		}
	}

	if msg.Interrupted {
		active.scheduler.Interrupt()
		c.status(statusInterrupted)
	}
}

func (c *ConversationController) decodeFailed(active *activeSession, err error) {
	active.decodeFailures++
	log.Warn().Err(err).Str("session", active.id).Int("consecutive", active.decodeFailures).Msg("skipping malformed model audio")

	if active.decodeFailures >= c.cfg.MaxDecodeFailures && !active.decodeReported {
		active.decodeReported = true
		c.events.SessionError(domain.ErrorCodeDecodeFailure, "Error processing model audio.")
	}
}

func (c *ConversationController) handleTransportError(active *activeSession, err error) {
	if active.ended() {
		return
	}
	msg := "Unknown error"
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		msg = err.Error()
	}
	log.Error().Err(err).Str("session", active.id).Msg("live transport error")
	c.events.SessionError(domain.ErrorCodeConnectionFailure, fmt.Sprintf("API Error: %s. Please try again.", msg))
	c.endSession(active, domain.ConnectionStateErrored)
	c.announceStopped()
}

func (c *ConversationController) handleClose(active *activeSession, code int, reason string) {
	if active.ended() {
		return
	}
	if reason == "" {
		reason = "No reason"
	}
	log.Info().Str("session", active.id).Int("code", code).Str("reason", reason).Msg("live connection closed")
	c.status(fmt.Sprintf("Connection closed. (%d %s)", code, reason))
	c.endSession(active, domain.ConnectionStateClosed)
	c.events.RecordingChanged(false)
}

func (c *ConversationController) failStart(active *activeSession, err error) error {
	log.Error().Err(err).Str("session", active.id).Msg("failed to start conversation")
	c.events.SessionError(domain.CodeFor(err), fmt.Sprintf("Initialization failed: %v", err))
	c.endSession(active, domain.ConnectionStateErrored)
	c.announceStopped()
	return err
}

// endSession tears the session down exactly once. It never waits on the
// session goroutines so it is safe to call from the event consumer.
func (c *ConversationController) endSession(active *activeSession, final domain.ConnectionState) {
	active.teardownOnce.Do(func() {
		if final != domain.ConnectionStateErrored && active.getState() == domain.ConnectionStateOpen {
			c.setState(active, domain.ConnectionStateClosing)
		}

		conn, audio, scheduler, output := active.detach()
		if conn != nil {
			if err := conn.Close(); err != nil {
				log.Debug().Err(err).Str("session", active.id).Msg("error closing live connection")
			}
		}
		active.cancel()
		if audio != nil {
			if err := audio.Stop(); err != nil {
				log.Debug().Err(err).Str("session", active.id).Msg("error stopping capture")
			}
		}
		if scheduler != nil {
			scheduler.Close()
		}
		if output != nil {
			if err := output.Close(); err != nil {
				log.Debug().Err(err).Str("session", active.id).Msg("error closing playback")
			}
		}
		active.turns.Reset()

		c.setState(active, final)
		log.Info().Str("session", active.id).Str("state", string(final)).Msg("conversation ended")
	})
}

func (c *ConversationController) announceStopped() {
	c.events.RecordingChanged(false)
	c.status(statusEnded)
}

func (c *ConversationController) setState(active *activeSession, state domain.ConnectionState) {
	active.setState(state)
	c.events.ConnectionStateChanged(state)
}

func (c *ConversationController) status(text string) {
	c.appendMessage(domain.RoleStatus, text)
}

func (c *ConversationController) appendMessage(role domain.Role, text string) {
	msg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: c.now(),
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.events.ConversationMessage(msg)
}

func wrapErr(kind error, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
