package detection

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDetectionFailed matches every RemoteError via errors.Is.
var ErrDetectionFailed = errors.New("detection failed")

type ErrorKind string

const (
	KindRequest   ErrorKind = "request"
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindDecode    ErrorKind = "decode"
)

// RemoteError is the single error condition surfaced by Detect.
type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *RemoteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrDetectionFailed
}

// redact strips the API key from transport errors, which embed the URL.
func redact(err error, secret string) error {
	if err == nil || secret == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, secret, "REDACTED"), cause: err}
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }
