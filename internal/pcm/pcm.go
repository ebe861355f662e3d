// Package pcm converts between float samples, 16-bit PCM and the base64
// payloads carried by the live endpoint.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"linguistlm/internal/domain"
)

const (
	// InputSampleRate is the capture rate expected by the live endpoint.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of synthesized audio returned by the endpoint.
	OutputSampleRate = 24000

	InputMIMEType = "audio/pcm;rate=16000"

	scale = 32768.0
)

// Float32FromLE decodes little-endian float32 samples. Trailing bytes that do
// not form a whole sample are ignored.
func Float32FromLE(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// EncodePCM16 converts normalized samples to little-endian signed 16-bit PCM.
// Samples are scaled by 32768 and clamped to the int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		v := math.Trunc(float64(sample) * scale)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM to normalized samples.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd PCM16 byte count %d", domain.ErrDecodeFailure, len(data))
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / scale
	}
	return out, nil
}

func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func DecodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	return data, nil
}

// EncodeFrame turns one captured frame into a realtime media chunk.
func EncodeFrame(samples []float32) domain.MediaChunk {
	return domain.MediaChunk{
		Data:     EncodeBase64(EncodePCM16(samples)),
		MIMEType: InputMIMEType,
	}
}

// DecodePayload turns a base64 PCM16 payload into normalized samples.
func DecodePayload(payload string) ([]float32, error) {
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return DecodePCM16(data)
}

// Duration is the playback length of n mono samples at rate.
func Duration(n int, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
