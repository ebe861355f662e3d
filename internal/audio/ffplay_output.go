package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"linguistlm/internal/domain"
	"linguistlm/internal/pcm"
	"linguistlm/internal/ports"
)

const (
	defaultPlaybackTick = 20 * time.Millisecond
	defaultPlaybackLead = 100 * time.Millisecond
)

var errOutputClosed = errors.New("playback output closed")

// FFPlayPlayback plays scheduled buffers by piping PCM16 into ffplay.
type FFPlayPlayback struct {
	command string
	tick    time.Duration
	lead    time.Duration
}

func NewFFPlayPlayback(command string) *FFPlayPlayback {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayback{command: command, tick: defaultPlaybackTick, lead: defaultPlaybackLead}
}

// Open starts ffplay and the output clock. Buffers are written to the pipe
// shortly before their start time, with silence filling gaps.
func (p *FFPlayPlayback) Open(ctx context.Context, cfg ports.PlaybackConfig) (ports.AudioOutput, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.OutputSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := &ffplayOutput{
		command: p.command,
		args: []string{
			"-nodisp",
			"-autoexit",
			"-loglevel", "error",
			"-f", "s16le",
			"-ar", strconv.Itoa(cfg.SampleRate),
			"-ac", strconv.Itoa(cfg.Channels),
			"-i", "pipe:0",
		},
		rate:   cfg.SampleRate,
		lead:   p.lead,
		cancel: cancel,
		start:  time.Now(),
	}
	if err := out.spawnLocked(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to start ffplay: %v", domain.ErrAudioDevice, err)
	}

	out.wg.Add(1)
	go out.run(runCtx, p.tick)
	return out, nil
}

type ffplayOutput struct {
	command string
	args    []string
	rate    int
	lead    time.Duration
	cancel  context.CancelFunc
	start   time.Time
	wg      sync.WaitGroup

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	written time.Duration
	voices  []*voice
	restart bool
	closed  bool
}

type voice struct {
	out     *ffplayOutput
	at      time.Duration
	end     time.Duration
	samples []float32
	queued  bool
	done    chan struct{}
	once    sync.Once
}

func (v *voice) Stop() {
	v.out.stop(v)
}

func (v *voice) Done() <-chan struct{} {
	return v.done
}

func (v *voice) finish() {
	v.once.Do(func() { close(v.done) })
}

func (o *ffplayOutput) CurrentTime() time.Duration {
	return time.Since(o.start)
}

func (o *ffplayOutput) Schedule(samples []float32, at time.Duration) (ports.PlaybackHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, errOutputClosed
	}
	v := &voice{
		out:     o,
		at:      at,
		end:     at + pcm.Duration(len(samples), o.rate),
		samples: samples,
		done:    make(chan struct{}),
	}
	o.voices = append(o.voices, v)
	sort.SliceStable(o.voices, func(i, j int) bool { return o.voices[i].at < o.voices[j].at })
	return v, nil
}

func (o *ffplayOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	voices := o.voices
	o.voices = nil
	o.killLocked()
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	for _, v := range voices {
		v.finish()
	}
	return nil
}

// stop drops a voice. Audio already handed to ffplay can only be silenced by
// restarting the process, which happens once on the next tick.
func (o *ffplayOutput) stop(v *voice) {
	o.mu.Lock()
	for i, candidate := range o.voices {
		if candidate == v {
			o.voices = append(o.voices[:i], o.voices[i+1:]...)
			if v.queued {
				o.restart = true
			}
			break
		}
	}
	o.mu.Unlock()
	v.finish()
}

func (o *ffplayOutput) run(ctx context.Context, tick time.Duration) {
	defer o.wg.Done()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.pump()
		}
	}
}

func (o *ffplayOutput) pump() {
	now := o.CurrentTime()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.restart {
		o.restart = false
		o.killLocked()
		if err := o.spawnLocked(); err != nil {
			log.Warn().Err(err).Msg("ffplay restart failed")
		}
		o.written = 0
	}

	var finished []*voice
	kept := o.voices[:0]
	for _, v := range o.voices {
		if v.queued && now >= v.end {
			finished = append(finished, v)
			continue
		}
		if !v.queued && v.at <= now+o.lead {
			o.writeLocked(v, now)
		}
		kept = append(kept, v)
	}
	o.voices = kept
	o.mu.Unlock()

	for _, v := range finished {
		v.finish()
	}
}

// writeLocked appends a voice to the pipe, padding with silence so it starts
// at its scheduled time relative to what ffplay already holds.
func (o *ffplayOutput) writeLocked(v *voice, now time.Duration) {
	v.queued = true
	if o.stdin == nil {
		return
	}

	base := max(o.written, now)
	var payload []byte
	if gap := v.at - base; gap > 0 {
		payload = make([]byte, 2*int(gap.Seconds()*float64(o.rate)))
	}
	payload = append(payload, pcm.EncodePCM16(v.samples)...)

	if _, err := o.stdin.Write(payload); err != nil {
		log.Warn().Err(err).Msg("ffplay write failed")
		return
	}
	o.written = max(base, v.at) + pcm.Duration(len(v.samples), o.rate)
}

func (o *ffplayOutput) spawnLocked() error {
	cmd := exec.Command(o.command, o.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	o.cmd = cmd
	o.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
	}(cmd)
	return nil
}

func (o *ffplayOutput) killLocked() {
	if o.stdin != nil {
		_ = o.stdin.Close()
	}
	if o.cmd != nil && o.cmd.Process != nil {
		_ = o.cmd.Process.Kill()
	}
	o.cmd = nil
	o.stdin = nil
}
