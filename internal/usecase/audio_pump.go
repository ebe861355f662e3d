package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"linguistlm/internal/domain"
	"linguistlm/internal/pcm"
	"linguistlm/internal/ports"
)

const defaultFrameSamples = 4096

type realtimeSender interface {
	SendRealtimeInput(chunk domain.MediaChunk) error
}

// pumpCaptureFrames reads fixed-size float32 frames from the microphone and
// forwards them as realtime PCM16 media. Sends are fire-and-forget; a frame
// the transport refuses is dropped and capture continues. Frames read while
// the connection is not yet open are discarded so the pipe never backs up.
func pumpCaptureFrames(
	ctx context.Context,
	audio ports.AudioSession,
	conn realtimeSender,
	frameSamples int,
) error {
	if frameSamples < 256 {
		frameSamples = defaultFrameSamples
	}

	buf := make([]byte, frameSamples*4)
	dropped := 0
	for {
		n, err := io.ReadFull(audio, buf)
		if n >= 4 {
			chunk := pcm.EncodeFrame(pcm.Float32FromLE(buf[:n]))
			sendErr := conn.SendRealtimeInput(chunk)
			if sendErr != nil && !errors.Is(sendErr, errNotStreaming) {
				dropped++
				log.Debug().Err(sendErr).Int("dropped", dropped).Msg("capture frame dropped")
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("audio capture error: %w", err)
		}
	}
}
