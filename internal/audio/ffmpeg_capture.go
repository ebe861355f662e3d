package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"linguistlm/internal/domain"
	"linguistlm/internal/ports"
)

const (
	captureStartupGrace = 250 * time.Millisecond
	captureStopTimeout  = 1200 * time.Millisecond
)

// FFMPEGCapture streams microphone audio as little-endian float32 using ffmpeg.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

// Start launches ffmpeg against the configured input. A recorder that cannot
// start or dies during the startup grace is reported as a denied microphone.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = captureDefaults(cfg)

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", domain.ErrPermissionDenied, err)
	}

	session := &ffmpegSession{
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		exited:  make(chan struct{}),
	}
	go func() {
		session.exitErr = cmd.Wait()
		close(session.exited)
	}()

	select {
	case <-session.exited:
		if session.exitErr == nil {
			return nil, fmt.Errorf("%w: ffmpeg exited before capture started", domain.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before capture started: %v: %s",
			domain.ErrPermissionDenied, session.exitErr, strings.TrimSpace(stderr.String()))
	case <-time.After(captureStartupGrace):
	}

	log.Debug().
		Str("format", cfg.InputFormat).
		Str("device", cfg.InputDevice).
		Int("sample_rate", cfg.SampleRate).
		Msg("microphone capture started")
	return session, nil
}

func captureDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "f32le",
		"-",
	}
}

// ffmpegSession is one running recorder. exitErr is valid once exited is
// closed.
type ffmpegSession struct {
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	process *os.Process

	exited  chan struct{}
	exitErr error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg, kills it if it lingers and reports anything it
// printed when the shutdown was not clean.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)
		select {
		case <-s.exited:
		case <-time.After(captureStopTimeout):
			log.Debug().Int("pid", s.process.Pid).Msg("ffmpeg ignored interrupt, killing")
			_ = s.process.Kill()
			<-s.exited
		}

		err := normalizeStopErr(s.exitErr)
		if closeErr := s.stdout.Close(); err == nil && closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			err = closeErr
		}
		if err != nil {
			if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
				err = fmt.Errorf("%w: %s", err, detail)
			}
		}
		s.stopErr = err
	})
	return s.stopErr
}

// normalizeStopErr treats a non-zero exit after an interrupt as a clean stop.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
