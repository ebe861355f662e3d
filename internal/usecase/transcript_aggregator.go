package usecase

import (
	"strings"
	"sync"
)

// turnAccumulator collects partial transcripts until the remote marks the
// turn complete.
type turnAccumulator struct {
	mu     sync.Mutex
	input  strings.Builder
	output strings.Builder
}

func newTurnAccumulator() *turnAccumulator {
	return &turnAccumulator{}
}

func (a *turnAccumulator) AddInput(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.WriteString(text)
}

func (a *turnAccumulator) AddOutput(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.output.WriteString(text)
}

// Flush returns the accumulated user and model text, trimmed, and clears
// both accumulators. Either result may be empty.
func (a *turnAccumulator) Flush() (user string, model string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user = strings.TrimSpace(a.input.String())
	model = strings.TrimSpace(a.output.String())
	a.input.Reset()
	a.output.Reset()
	return user, model
}

func (a *turnAccumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.Reset()
	a.output.Reset()
}
