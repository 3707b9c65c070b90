package session

import "errors"

var (
	// ErrPermissionDenied means the capture device was refused. Fatal to the
	// session.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrCapabilityUnavailable means the environment has no usable speech
	// capture. Fatal, never retried.
	ErrCapabilityUnavailable = errors.New("speech capture unavailable")

	// ErrServiceUnavailable means the speech service refused the session.
	ErrServiceUnavailable = errors.New("speech service unavailable")

	// ErrTransientCapture is a capture error recovered by restarting.
	ErrTransientCapture = errors.New("transient capture error")

	ErrAlreadyListening = errors.New("session already listening")
	ErrNotListening     = errors.New("session not listening")
)

// ErrorKind is the error reported by a speech capture capability.
type ErrorKind string

const (
	ErrorNotAllowed        ErrorKind = "not-allowed"
	ErrorServiceNotAllowed ErrorKind = "service-not-allowed"
	ErrorNetwork           ErrorKind = "network"
	ErrorNoSpeech          ErrorKind = "no-speech"
	ErrorOther             ErrorKind = "other"
)

// Err maps the kind onto the session error taxonomy.
func (k ErrorKind) Err() error {
	switch k {
	case ErrorNotAllowed:
		return ErrPermissionDenied
	case ErrorServiceNotAllowed:
		return ErrServiceUnavailable
	default:
		return ErrTransientCapture
	}
}

// Fatal reports whether the kind ends the session instead of restarting it.
func (k ErrorKind) Fatal() bool {
	return k == ErrorNotAllowed || k == ErrorServiceNotAllowed
}
