package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"linguistlm/internal/domain"
)

const DefaultModel = "gemini-2.5-flash"

// Config controls the request/response Gemini endpoints.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewClient builds a Gemini API client. BaseURL overrides the public endpoint.
func NewClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

func modelOrDefault(model string) string {
	if strings.TrimSpace(model) == "" {
		return DefaultModel
	}
	return model
}

func systemInstruction(persona string) *genai.Content {
	if persona == "" {
		return nil
	}
	return genai.NewContentFromText(persona, genai.RoleUser)
}

// requestError classifies a failed call: a cancelled caller is an aborted
// request, anything else an endpoint failure.
func requestError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", domain.ErrRequestAborted, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrHTTPFailure, op, err)
}
