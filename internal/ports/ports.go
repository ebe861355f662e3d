package ports

import (
	"context"
	"io"
	"time"

	"linguistlm/internal/domain"
)

// AudioConfig describes how the microphone should be captured. Capture always
// yields little-endian float32 samples.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PlaybackConfig describes the output pipeline.
type PlaybackConfig struct {
	SampleRate int
	Channels   int
}

// PlaybackHandle is one scheduled output buffer.
type PlaybackHandle interface {
	Stop()
	Done() <-chan struct{}
}

// AudioOutput is an open playback pipeline with its own clock.
type AudioOutput interface {
	// CurrentTime is the output clock, starting at zero when the output opens.
	CurrentTime() time.Duration
	Schedule(samples []float32, at time.Duration) (PlaybackHandle, error)
	Close() error
}

// AudioPlayback opens playback pipelines.
type AudioPlayback interface {
	Open(ctx context.Context, cfg PlaybackConfig) (AudioOutput, error)
}

// LiveConfig is the setup payload for a duplex conversation.
type LiveConfig struct {
	Model               string
	ResponseModality    string
	Voice               string
	SystemInstruction   string
	InputTranscription  bool
	OutputTranscription bool
}

// LiveEventType tags events emitted by a live connection.
type LiveEventType string

const (
	LiveEventOpen    LiveEventType = "open"
	LiveEventMessage LiveEventType = "message"
	LiveEventError   LiveEventType = "error"
	LiveEventClose   LiveEventType = "close"
)

// LiveEvent is one callback from the live connection, delivered in order.
type LiveEvent struct {
	Type        LiveEventType
	Message     *domain.ServerMessage
	Err         error
	CloseCode   int
	CloseReason string
}

// LiveConnection is an open duplex stream.
type LiveConnection interface {
	// SendRealtimeInput never blocks on the remote; frames the transport
	// cannot take are dropped.
	SendRealtimeInput(chunk domain.MediaChunk) error
	// Events is closed once the connection has fully shut down.
	Events() <-chan LiveEvent
	Close() error
}

// LiveProvider opens duplex streams to the inference endpoint.
type LiveProvider interface {
	Connect(ctx context.Context, cfg LiveConfig) (LiveConnection, error)
}

// GrammarChecker returns annotations for a full text.
type GrammarChecker interface {
	Check(ctx context.Context, text string) ([]domain.GrammarAnnotation, error)
}

// ChatStreamer streams a plain-text answer chunk by chunk.
type ChatStreamer interface {
	Stream(ctx context.Context, prompt string, onChunk func(string)) error
}

// DocumentExtractor turns an uploaded document into plain text.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// ConversationSink receives live conversation updates.
type ConversationSink interface {
	ConnectionStateChanged(state domain.ConnectionState)
	RecordingChanged(recording bool)
	ConversationMessage(msg domain.ChatMessage)
	SessionError(code domain.ErrorCode, detail string)
}

// WritingSink receives writing workspace and chat updates.
type WritingSink interface {
	DocumentChanged(view domain.DocumentView)
	ChatUpdated(channel string, msg domain.ChatMessage)
}
