package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"linguistlm/internal/domain"
	"linguistlm/internal/highlight"
	"linguistlm/internal/ports"
)

var ErrUnknownAnnotation = errors.New("annotation not found")

// WritingWorkspace owns the text being edited, the live annotations for it
// and the set of annotations the user dismissed or accepted. Annotations are
// replaced only by fresh check results or explicit user actions.
type WritingWorkspace struct {
	clipboard ports.Clipboard
	events    ports.WritingSink
	cycle     *correctionCycle

	mu          sync.Mutex
	text        string
	caret       int
	annotations []domain.GrammarAnnotation
	ignored     *highlight.IgnoredSet
	view        highlight.View
}

func NewWritingWorkspace(
	checker ports.GrammarChecker,
	clipboard ports.Clipboard,
	events ports.WritingSink,
	cfg CorrectionConfig,
) *WritingWorkspace {
	w := &WritingWorkspace{
		clipboard: clipboard,
		events:    events,
		ignored:   highlight.NewIgnoredSet(),
	}
	w.cycle = newCorrectionCycle(checker, cfg, w.applyCorrections)
	return w
}

// Edit replaces the text. caret is the cursor position as a character offset.
func (w *WritingWorkspace) Edit(text string, caret int) domain.DocumentView {
	w.mu.Lock()
	w.text = text
	w.caret = caret
	if w.cycle.Edit(text) {
		w.annotations = nil
	}
	view := w.renderLocked()
	w.mu.Unlock()

	w.events.DocumentChanged(view)
	return view
}

// View returns the current rendering without changing anything.
func (w *WritingWorkspace) View() domain.DocumentView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.renderLocked()
}

// Accept applies one annotation's suggestion. An annotation whose original
// span can no longer be found is hidden and the text is left alone.
func (w *WritingWorkspace) Accept(key string) (domain.DocumentView, error) {
	w.mu.Lock()
	target, ok := w.findLocked(key)
	if !ok {
		w.mu.Unlock()
		return domain.DocumentView{}, fmt.Errorf("%w: %s", ErrUnknownAnnotation, key)
	}

	text, remaining, err := highlight.Accept(w.text, target, w.annotations)
	w.ignored.Add(target)
	if err != nil {
		view := w.renderLocked()
		w.mu.Unlock()
		w.events.DocumentChanged(view)
		return view, fmt.Errorf("failed to accept correction: %w", err)
	}

	w.text = text
	w.annotations = remaining
	w.cycle.Edit(text)
	view := w.renderLocked()
	w.mu.Unlock()

	w.events.DocumentChanged(view)
	return view, nil
}

// AcceptAll applies every visible annotation in one pass and returns how many
// corrections landed.
func (w *WritingWorkspace) AcceptAll() (domain.DocumentView, int) {
	w.mu.Lock()
	visible := highlight.Visible(w.annotations, w.ignored)
	text, applied := highlight.AcceptAll(w.text, visible, nil)
	for _, annotation := range visible {
		w.ignored.Add(annotation)
	}
	w.text = text
	w.annotations = nil
	w.cycle.Edit(text)
	view := w.renderLocked()
	w.mu.Unlock()

	log.Debug().Int("applied", applied).Int("visible", len(visible)).Msg("accepted all corrections")
	w.events.DocumentChanged(view)
	return view, applied
}

// Dismiss hides an annotation without touching the text.
func (w *WritingWorkspace) Dismiss(key string) (domain.DocumentView, error) {
	w.mu.Lock()
	target, ok := w.findLocked(key)
	if !ok {
		w.mu.Unlock()
		return domain.DocumentView{}, fmt.Errorf("%w: %s", ErrUnknownAnnotation, key)
	}
	w.ignored.Add(target)
	view := w.renderLocked()
	w.mu.Unlock()

	w.events.DocumentChanged(view)
	return view, nil
}

// ExplainPrompt builds the question sent to the explanation chat for one
// annotation.
func (w *WritingWorkspace) ExplainPrompt(key string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	target, ok := w.findLocked(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAnnotation, key)
	}
	span := target.Original
	if resolved, err := highlight.Resolve(w.text, target); err == nil {
		runes := []rune(w.text)
		span = string(runes[resolved.Start:resolved.End])
	}
	return fmt.Sprintf("Explain the grammar error in %q: %s. Suggested correction: %q.", span, target.Error, target.Suggestion), nil
}

// CopyText places the current text on the clipboard.
func (w *WritingWorkspace) CopyText(ctx context.Context) error {
	w.mu.Lock()
	text := w.text
	w.mu.Unlock()

	if err := w.clipboard.SetText(ctx, text); err != nil {
		return fmt.Errorf("failed to copy text: %w", err)
	}
	return nil
}

// Close stops pending and in-flight checks.
func (w *WritingWorkspace) Close() {
	w.cycle.Close()
}

func (w *WritingWorkspace) applyCorrections(result correctionResult) {
	w.mu.Lock()
	if !w.cycle.Latest(result.seq) {
		w.mu.Unlock()
		return
	}
	if result.err != nil {
		w.annotations = nil
	} else {
		w.annotations = result.annotations
	}
	view := w.renderLocked()
	w.mu.Unlock()

	w.events.DocumentChanged(view)
}

func (w *WritingWorkspace) findLocked(key string) (domain.GrammarAnnotation, bool) {
	return lo.Find(highlight.Visible(w.annotations, w.ignored), func(a domain.GrammarAnnotation) bool {
		return a.Key() == key
	})
}

// renderLocked re-renders and carries the caret over by character offset.
func (w *WritingWorkspace) renderLocked() domain.DocumentView {
	prev := w.view
	next := highlight.Render(w.text, w.annotations, w.ignored)
	caret := next.Locate(w.caret)
	if prev.PlainText() == w.text {
		caret = highlight.Preserve(prev, next, prev.Locate(w.caret))
	}
	w.view = next

	return domain.DocumentView{
		Text:        w.text,
		HTML:        next.HTML(),
		Annotations: next.Annotated(),
		Caret:       domain.Caret{Segment: caret.Segment, Offset: caret.Offset},
	}
}
