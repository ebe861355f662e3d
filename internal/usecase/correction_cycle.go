package usecase

import (
	"context"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bep/debounce"
	"github.com/rs/zerolog/log"

	"linguistlm/internal/domain"
	"linguistlm/internal/ports"
)

const (
	defaultCorrectionDebounce    = 250 * time.Millisecond
	defaultCorrectionMinInterval = 200 * time.Millisecond
)

// CorrectionConfig tunes when fresh annotations are requested.
type CorrectionConfig struct {
	Debounce    time.Duration
	MinInterval time.Duration
}

type correctionResult struct {
	seq         uint64
	text        string
	annotations []domain.GrammarAnnotation
	err         error
}

// correctionCycle decides when to ask the grammar checker about the current
// text. Only one request is in flight; issuing a new one cancels the previous
// and bumps the sequence number so late results can be recognized.
type correctionCycle struct {
	checker     ports.GrammarChecker
	deliver     func(correctionResult)
	debounced   func(func())
	minInterval time.Duration
	now         func() time.Time

	mu            sync.Mutex
	seq           uint64
	cancel        context.CancelFunc
	lastLen       int
	lastImmediate time.Time
	closed        bool
	wg            sync.WaitGroup
}

func newCorrectionCycle(checker ports.GrammarChecker, cfg CorrectionConfig, deliver func(correctionResult)) *correctionCycle {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultCorrectionDebounce
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultCorrectionMinInterval
	}
	return &correctionCycle{
		checker:     checker,
		deliver:     deliver,
		debounced:   debounce.New(cfg.Debounce),
		minInterval: cfg.MinInterval,
		now:         time.Now,
	}
}

// Edit reacts to a new text value. It reports true when the text is empty and
// callers must clear their annotations.
func (c *correctionCycle) Edit(text string) (cleared bool) {
	length := utf8.RuneCountInString(text)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	lengthened := length > c.lastLen
	c.lastLen = length

	if isBlank(text) {
		c.abortLocked()
		c.mu.Unlock()
		c.debounced(func() {})
		return true
	}

	now := c.now()
	if lengthened && endsAtBoundary(text) && now.Sub(c.lastImmediate) >= c.minInterval {
		c.lastImmediate = now
		c.issueLocked(text)
		c.mu.Unlock()
		c.debounced(func() {})
		return false
	}
	c.mu.Unlock()

	c.debounced(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.closed {
			c.issueLocked(text)
		}
	})
	return false
}

// Latest reports whether seq belongs to the most recent request.
func (c *correctionCycle) Latest(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq == c.seq
}

// Close aborts any in-flight request and waits for it to return.
func (c *correctionCycle) Close() {
	c.mu.Lock()
	c.closed = true
	c.abortLocked()
	c.mu.Unlock()
	c.debounced(func() {})
	c.wg.Wait()
}

func (c *correctionCycle) abortLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
}

func (c *correctionCycle) issueLocked(text string) {
	c.abortLocked()
	seq := c.seq
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		annotations, err := c.checker.Check(ctx, text)
		if err != nil && domain.IsAborted(err) {
			log.Debug().Uint64("seq", seq).Msg("correction request superseded")
			return
		}
		if err != nil {
			log.Warn().Err(err).Uint64("seq", seq).Msg("correction request failed")
		}
		c.deliver(correctionResult{seq: seq, text: text, annotations: annotations, err: err})
	}()
}

func isBlank(text string) bool {
	for _, r := range text {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func endsAtBoundary(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', '!', '?', ';', ':':
		return true
	}
	return false
}
