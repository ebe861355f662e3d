package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"linguistlm/internal/domain"
)

// GrammarChecker asks Gemini for structured grammar annotations.
type GrammarChecker struct {
	client  *genai.Client
	model   string
	persona string
}

func NewGrammarChecker(client *genai.Client, model string, persona string) *GrammarChecker {
	return &GrammarChecker{client: client, model: modelOrDefault(model), persona: persona}
}

type grammarResponse struct {
	Text          string         `json:"text"`
	Errors        []grammarError `json:"errors"`
	CorrectedText string         `json:"corrected_text"`
}

type grammarError struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
	Original   string `json:"original"`
}

func (g *GrammarChecker) Check(ctx context.Context, text string) ([]domain.GrammarAnnotation, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(text), g.config())
	if err != nil {
		return nil, requestError(ctx, "grammar check", err)
	}

	annotations, err := parseAnnotations(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHTTPFailure, err)
	}
	log.Debug().Int("chars", len([]rune(text))).Int("annotations", len(annotations)).Msg("grammar check complete")
	return annotations, nil
}

func (g *GrammarChecker) config() *genai.GenerateContentConfig {
	str := &genai.Schema{Type: genai.TypeString}
	num := &genai.Schema{Type: genai.TypeInteger}
	return &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(g.persona),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text": str,
				"errors": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"start":      num,
							"end":        num,
							"error":      str,
							"suggestion": str,
							"original":   str,
						},
						Required: []string{"start", "end", "error", "suggestion", "original"},
					},
				},
				"corrected_text": str,
			},
			Required: []string{"text", "errors", "corrected_text"},
		},
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](-1)},
	}
}

// parseAnnotations decodes the JSON body. Entries with an inverted span are
// dropped.
func parseAnnotations(body string) ([]domain.GrammarAnnotation, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("empty grammar response")
	}
	var parsed grammarResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode grammar response: %w", err)
	}

	annotations := make([]domain.GrammarAnnotation, 0, len(parsed.Errors))
	for _, e := range parsed.Errors {
		if e.Start < 0 || e.End < e.Start {
			continue
		}
		annotations = append(annotations, domain.GrammarAnnotation{
			Start:      e.Start,
			End:        e.End,
			Error:      e.Error,
			Suggestion: e.Suggestion,
			Original:   e.Original,
		})
	}
	return annotations, nil
}
