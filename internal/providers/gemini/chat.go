package gemini

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// ChatStreamer keeps one multi-turn chat and streams each answer.
type ChatStreamer struct {
	client  *genai.Client
	model   string
	persona string

	mu   sync.Mutex
	chat *genai.Chat
}

func NewChatStreamer(client *genai.Client, model string, persona string) *ChatStreamer {
	return &ChatStreamer{client: client, model: modelOrDefault(model), persona: persona}
}

// Stream sends prompt and calls onChunk with each piece of text as it
// arrives. Calls are serialized so the chat history stays ordered.
func (s *ChatStreamer) Stream(ctx context.Context, prompt string, onChunk func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chat == nil {
		chat, err := s.client.Chats.Create(ctx, s.model, &genai.GenerateContentConfig{
			SystemInstruction: systemInstruction(s.persona),
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		s.chat = chat
	}

	for resp, err := range s.chat.SendMessageStream(ctx, genai.Part{Text: prompt}) {
		if err != nil {
			return requestError(ctx, "chat stream", err)
		}
		if text := resp.Text(); text != "" {
			onChunk(text)
		}
	}
	return nil
}
