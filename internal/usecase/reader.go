package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/mimetype"

	"linguistlm/internal/ports"
)

var ErrEmptyDocument = errors.New("no file provided")

const fallbackMIMEType = "application/octet-stream"

// Reader turns uploaded documents into plain text for the reading view.
type Reader struct {
	extractor ports.DocumentExtractor
}

func NewReader(extractor ports.DocumentExtractor) *Reader {
	return &Reader{extractor: extractor}
}

// Extract detects the document type from its bytes and asks the extractor for
// the text content.
func (r *Reader) Extract(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	mimeType := DetectMIMEType(data)
	log.Info().Str("file", filepath.Base(name)).Str("mime", mimeType).Int("bytes", len(data)).Msg("extracting document text")

	text, err := r.extractor.ExtractText(ctx, mimeType, data)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(name), err)
	}
	return strings.TrimSpace(text), nil
}

// DetectMIMEType sniffs content, dropping parameters such as charset.
func DetectMIMEType(data []byte) string {
	detected := mimetype.Detect(data)
	if detected == nil {
		return fallbackMIMEType
	}
	mimeType, _, _ := strings.Cut(detected.String(), ";")
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return fallbackMIMEType
	}
	return mimeType
}
