package domain

import (
	"context"
	"errors"
)

var (
	ErrPermissionDenied  = errors.New("microphone access denied")
	ErrConnectionFailure = errors.New("live connection failed")
	ErrDecodeFailure     = errors.New("malformed audio payload")
	ErrRequestAborted    = errors.New("request aborted")
	ErrHTTPFailure       = errors.New("endpoint request failed")
	ErrAudioDevice       = errors.New("audio output unavailable")
)

// ErrorCode identifies errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup           ErrorCode = "startup"
	ErrorCodePermissionDenied  ErrorCode = "permission_denied"
	ErrorCodeConnectionFailure ErrorCode = "connection_failure"
	ErrorCodeDecodeFailure     ErrorCode = "decode_failure"
	ErrorCodeHTTPFailure       ErrorCode = "http_failure"
	ErrorCodeAudioDevice       ErrorCode = "audio_device"
	ErrorCodeAudioStream       ErrorCode = "audio_stream"
	ErrorCodeClipboard         ErrorCode = "clipboard"
	ErrorCodeDocument          ErrorCode = "document"
)

// CodeFor maps an error to the UI code of its taxonomy member.
func CodeFor(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermissionDenied
	case errors.Is(err, ErrConnectionFailure):
		return ErrorCodeConnectionFailure
	case errors.Is(err, ErrDecodeFailure):
		return ErrorCodeDecodeFailure
	case errors.Is(err, ErrAudioDevice):
		return ErrorCodeAudioDevice
	default:
		return ErrorCodeHTTPFailure
	}
}

// IsAborted reports whether err comes from a superseded request.
func IsAborted(err error) bool {
	return errors.Is(err, ErrRequestAborted) || errors.Is(err, context.Canceled)
}
