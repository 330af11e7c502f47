// Package apperr classifies pipeline failures into user-facing categories.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the failure category recovered at the session boundary.
type Kind string

const (
	KindUnknown              Kind = "unknown"
	KindPermissionDenied     Kind = "permission_denied"
	KindConfigurationMissing Kind = "configuration_missing"
	KindServiceError         Kind = "service_error"
	KindNetworkFailure       Kind = "network_failure"
	KindParseFailure         Kind = "parse_failure"
)

const (
	MsgPermissionDenied = "Could not access microphone. Please check permissions."
	MsgTokenMissing     = "SiliconFlow API Token is missing. Please check settings."
	MsgTranscription    = "STT API request failed"
	MsgFeedback         = "Feedback generation failed"
	MsgGeneric          = "Failed to process speech. Try again."
)

// Error carries a failure kind, the message safe to show a user, and the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func PermissionDenied(cause error) *Error {
	return New(KindPermissionDenied, MsgPermissionDenied, cause)
}

func ConfigurationMissing(message string) *Error {
	if strings.TrimSpace(message) == "" {
		message = MsgTokenMissing
	}
	return New(KindConfigurationMissing, message, nil)
}

// Service builds a ServiceError, falling back when the remote gave no message.
func Service(message, fallback string, cause error) *Error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fallback
	}
	return New(KindServiceError, message, cause)
}

func Network(message string, cause error) *Error {
	return New(KindNetworkFailure, message, cause)
}

func Parse(message string, cause error) *Error {
	return New(KindParseFailure, message, cause)
}

// KindOf reports the failure kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage maps any error to the single message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return MsgGeneric
}
