package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"linguistlm/internal/bootstrap"
	"linguistlm/internal/config"
	"linguistlm/internal/domain"
	"linguistlm/internal/usecase"
)

const (
	eventConnection = "linguist:connection"
	eventRecording  = "linguist:recording"
	eventMessage    = "linguist:message"
	eventError      = "linguist:error"
	eventDocument   = "linguist:document"
	eventChat       = "linguist:chat"
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	services bootstrap.Services
	cfg      config.Config
	bootErr  error
}

// AcceptAllResult reports a bulk accept to the UI.
type AcceptAllResult struct {
	Document domain.DocumentView `json:"document"`
	Applied  int                 `json:"applied"`
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a, a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		log.Error().Err(err).Msg("startup failed")
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.services = services
	a.ConnectionStateChanged(domain.ConnectionStateIdle)
}

func (a *App) shutdown(_ context.Context) {
	if a.services.Conversation != nil {
		a.services.Conversation.Stop()
	}
	a.services.Close()
}

// StartConversation opens a live voice session. Failures have already been
// reported through the error event when this returns.
func (a *App) StartConversation() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Conversation.Start(a.ctx); err != nil {
		return a.services.Conversation.Status(), err
	}
	return a.services.Conversation.Status(), nil
}

// StopConversation ends the live voice session, if any.
func (a *App) StopConversation() domain.Status {
	if a.requireReady() != nil {
		return a.GetStatus()
	}
	a.services.Conversation.Stop()
	return a.services.Conversation.Status()
}

// GetStatus returns the current conversation status.
func (a *App) GetStatus() domain.Status {
	if a.services.Conversation == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.ConnectionStateErrored, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.ConnectionStateIdle, Active: false}
	}
	return a.services.Conversation.Status()
}

// GetConversation returns the conversation log.
func (a *App) GetConversation() []domain.ChatMessage {
	if a.services.Conversation == nil {
		return nil
	}
	return a.services.Conversation.Messages()
}

// UpdateText replaces the writing workspace text. caret is a character offset.
func (a *App) UpdateText(text string, caret int) (domain.DocumentView, error) {
	if err := a.requireReady(); err != nil {
		return domain.DocumentView{}, err
	}
	return a.services.Writing.Edit(text, caret), nil
}

// GetDocument returns the current writing workspace rendering.
func (a *App) GetDocument() (domain.DocumentView, error) {
	if err := a.requireReady(); err != nil {
		return domain.DocumentView{}, err
	}
	return a.services.Writing.View(), nil
}

// AcceptCorrection applies one suggestion.
func (a *App) AcceptCorrection(key string) (domain.DocumentView, error) {
	if err := a.requireReady(); err != nil {
		return domain.DocumentView{}, err
	}
	return a.services.Writing.Accept(key)
}

// AcceptAllCorrections applies every visible suggestion.
func (a *App) AcceptAllCorrections() (AcceptAllResult, error) {
	if err := a.requireReady(); err != nil {
		return AcceptAllResult{}, err
	}
	view, applied := a.services.Writing.AcceptAll()
	return AcceptAllResult{Document: view, Applied: applied}, nil
}

// DismissCorrection hides a suggestion without applying it.
func (a *App) DismissCorrection(key string) (domain.DocumentView, error) {
	if err := a.requireReady(); err != nil {
		return domain.DocumentView{}, err
	}
	return a.services.Writing.Dismiss(key)
}

// ExplainCorrection asks the explanation chat about one suggestion. The answer
// streams through the chat event.
func (a *App) ExplainCorrection(key string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	prompt, err := a.services.Writing.ExplainPrompt(key)
	if err != nil {
		return err
	}
	return a.services.Explanation.Send(a.ctx, prompt)
}

// AskExplanation sends a free-form question to the grammar explanation chat.
func (a *App) AskExplanation(prompt string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Explanation.Send(a.ctx, prompt)
}

// AskReader sends a question to the reading assistant.
func (a *App) AskReader(prompt string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.ReaderChat.Send(a.ctx, prompt)
}

// GetChat returns the log of the named chat channel.
func (a *App) GetChat(channel string) []domain.ChatMessage {
	if a.requireReady() != nil {
		return nil
	}
	switch channel {
	case usecase.ChannelExplanation:
		return a.services.Explanation.Messages()
	case usecase.ChannelReader:
		return a.services.ReaderChat.Messages()
	default:
		return nil
	}
}

// ReadDocument extracts the text of an uploaded file for the reading view.
func (a *App) ReadDocument(name string, data []byte) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	text, err := a.services.Reader.Extract(a.ctx, name, data)
	if err != nil {
		a.SessionError(domain.ErrorCodeDocument, err.Error())
		return "", err
	}
	return text, nil
}

// CopyText places the writing workspace text on the clipboard.
func (a *App) CopyText() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Writing.CopyText(a.ctx); err != nil {
		a.SessionError(domain.ErrorCodeClipboard, err.Error())
		return err
	}
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Gemini",
		"liveModel":        a.cfg.Live.Model,
		"voice":            a.cfg.Live.Voice,
		"textModel":        a.cfg.Gemini.TextModel,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Conversation == nil || a.services.Writing == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) emitEvent(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

// ConnectionStateChanged emits conversation lifecycle updates to the frontend.
func (a *App) ConnectionStateChanged(state domain.ConnectionState) {
	a.emitEvent(eventConnection, map[string]interface{}{
		"state":  string(state),
		"active": !state.Terminal() && state != domain.ConnectionStateIdle,
	})
}

// RecordingChanged emits the microphone indicator.
func (a *App) RecordingChanged(recording bool) {
	a.emitEvent(eventRecording, map[string]bool{"recording": recording})
}

// ConversationMessage emits one appended conversation entry.
func (a *App) ConversationMessage(msg domain.ChatMessage) {
	a.emitEvent(eventMessage, msg)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emitEvent(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// DocumentChanged emits the re-rendered writing workspace.
func (a *App) DocumentChanged(view domain.DocumentView) {
	a.emitEvent(eventDocument, view)
}

// ChatUpdated emits a new or updated chat message.
func (a *App) ChatUpdated(channel string, msg domain.ChatMessage) {
	a.emitEvent(eventChat, map[string]interface{}{
		"channel": channel,
		"message": msg,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermissionDenied:
		return "Microphone access denied"
	case domain.ErrorCodeConnectionFailure:
		return "Connection failed"
	case domain.ErrorCodeDecodeFailure:
		return "Audio decoding issue"
	case domain.ErrorCodeHTTPFailure:
		return "Request failed"
	case domain.ErrorCodeAudioDevice:
		return "Audio output unavailable"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeDocument:
		return "Document could not be read"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
