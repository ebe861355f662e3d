package gemini

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Extractor sends a document inline and asks for its plain text.
type Extractor struct {
	client  *genai.Client
	model   string
	persona string
	prompt  string
}

func NewExtractor(client *genai.Client, model string, persona string, prompt string) *Extractor {
	return &Extractor{client: client, model: modelOrDefault(model), persona: persona, prompt: prompt}
}

func (e *Extractor) ExtractText(ctx context.Context, mimeType string, data []byte) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(e.prompt),
		}, genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(e.persona),
	})
	if err != nil {
		return "", requestError(ctx, "document extraction", err)
	}

	text := resp.Text()
	log.Debug().Str("mime", mimeType).Int("chars", len(text)).Msg("document extracted")
	return text, nil
}
