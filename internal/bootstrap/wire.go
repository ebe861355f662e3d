package bootstrap

import (
	"context"

	"linguistlm/internal/audio"
	"linguistlm/internal/config"
	"linguistlm/internal/logging"
	"linguistlm/internal/pcm"
	"linguistlm/internal/ports"
	"linguistlm/internal/providers/gemini"
	"linguistlm/internal/providers/geminilive"
	"linguistlm/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Conversation *usecase.ConversationController
	Writing      *usecase.WritingWorkspace
	Explanation  *usecase.ExplanationChat
	ReaderChat   *usecase.ExplanationChat
	Reader       *usecase.Reader
	Config       config.Config
}

// Close stops background work owned by the services.
func (s Services) Close() {
	if s.Writing != nil {
		s.Writing.Close()
	}
}

// Build wires all backend dependencies for the current runtime.
func Build(
	ctx context.Context,
	conversationSink ports.ConversationSink,
	writingSink ports.WritingSink,
	clipboard ports.Clipboard,
) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logging.Setup(cfg.LogLevel)

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.APIBaseURL,
		Model:   cfg.Gemini.TextModel,
	})
	if err != nil {
		return Services{}, err
	}

	conversation := usecase.NewConversationController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		audio.NewFFPlayPlayback(cfg.Playback.PlayerCommand),
		geminilive.NewProvider(geminilive.Config{
			APIKey: cfg.Gemini.APIKey,
			URL:    cfg.Live.URL,
		}),
		conversationSink,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  pcm.InputSampleRate,
				Channels:    1,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Playback: ports.PlaybackConfig{
				SampleRate: pcm.OutputSampleRate,
				Channels:   1,
			},
			Live: ports.LiveConfig{
				Model:               cfg.Live.Model,
				ResponseModality:    "AUDIO",
				Voice:               cfg.Live.Voice,
				SystemInstruction:   usecase.TutorPersona,
				InputTranscription:  true,
				OutputTranscription: true,
			},
			FrameSamples:      cfg.Session.FrameSamples,
			MaxDecodeFailures: cfg.Session.MaxDecodeFailures,
		},
	)

	writing := usecase.NewWritingWorkspace(
		gemini.NewGrammarChecker(client, cfg.Gemini.TextModel, usecase.GrammarPersona),
		clipboard,
		writingSink,
		usecase.CorrectionConfig{
			Debounce:    cfg.Writing.GrammarDebounce,
			MinInterval: cfg.Writing.GrammarMinInterval,
		},
	)

	return Services{
		Conversation: conversation,
		Writing:      writing,
		Explanation: usecase.NewExplanationChat(
			usecase.ChannelExplanation,
			gemini.NewChatStreamer(client, cfg.Gemini.TextModel, usecase.ExplanationPersona),
			writingSink,
		),
		ReaderChat: usecase.NewExplanationChat(
			usecase.ChannelReader,
			gemini.NewChatStreamer(client, cfg.Gemini.TextModel, usecase.ReaderPersona),
			writingSink,
		),
		Reader: usecase.NewReader(
			gemini.NewExtractor(client, cfg.Gemini.TextModel, usecase.ExtractionPersona, usecase.ExtractionPrompt),
		),
		Config: cfg,
	}, nil
}
