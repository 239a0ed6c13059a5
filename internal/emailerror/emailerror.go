// Package emailerror defines the closed error taxonomy for the email
// delivery subsystem.
//
// Every failure that crosses a component boundary (transport, validation,
// rendering, rate limiting) is converted into an *Error carrying a Kind, a
// fixed retryability verdict, and separate internal and user-facing
// messages. Factories never fail and never panic; classification of raw
// transport errors lives in classify.go so the matching rules stay in one
// place.
package emailerror

import (
	"fmt"
	"time"
)

// Kind enumerates the failure classes. The set is closed: new transport
// behaviors must map onto one of these, not extend them ad hoc.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindSMTPConnection Kind = "SMTP_CONNECTION_ERROR"
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindRateLimit      Kind = "RATE_LIMIT_ERROR"
	KindTemplate       Kind = "TEMPLATE_ERROR"
	KindAttachment     Kind = "ATTACHMENT_ERROR"
	KindDelivery       Kind = "DELIVERY_ERROR"
	KindNetwork        Kind = "NETWORK_ERROR"
	KindConfiguration  Kind = "CONFIGURATION_ERROR"
	KindUnknown        Kind = "UNKNOWN_ERROR"
)

// retryableKinds holds the fixed retryability verdict per kind. Kinds absent
// from the map are not retryable.
var retryableKinds = map[Kind]bool{
	KindSMTPConnection: true,
	KindRateLimit:      true,
	KindDelivery:       true,
	KindNetwork:        true,
	KindUnknown:        true,
}

// Retryable reports the fixed verdict for a kind.
func (k Kind) Retryable() bool { return retryableKinds[k] }

// Error is an immutable email failure record. It is summarized into logs,
// never persisted directly.
type Error struct {
	Kind        Kind      `json:"type"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`      // internal diagnostic
	UserMessage string    `json:"user_message"` // safe to surface
	Retryable   bool      `json:"retryable"`
	Timestamp   time.Time `json:"timestamp"`
	Details     string    `json:"details,omitempty"`
	cause       error
}

// Error implements the error interface with the internal message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the original failure for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, code, message, userMessage string, cause error) *Error {
	return &Error{
		Kind:        kind,
		Code:        code,
		Message:     message,
		UserMessage: userMessage,
		Retryable:   kind.Retryable(),
		Timestamp:   time.Now().UTC(),
		cause:       cause,
	}
}

// Validation builds a non-retryable validation failure.
func Validation(message string) *Error {
	return newError(KindValidation, "EMAIL_VALIDATION", message,
		"The email request is invalid: "+message, nil)
}

// Connection builds a retryable SMTP connection failure.
func Connection(cause error) *Error {
	return newError(KindSMTPConnection, "SMTP_CONNECTION", describe(cause),
		"Could not reach the mail server. Please try again shortly.", cause)
}

// Authentication builds a non-retryable SMTP auth failure.
func Authentication(cause error) *Error {
	return newError(KindAuthentication, "SMTP_AUTH", describe(cause),
		"Mail server rejected the configured credentials.", cause)
}

// RateLimit builds a retryable rate-limit failure.
func RateLimit(scope string) *Error {
	e := newError(KindRateLimit, "RATE_LIMIT", "hourly send limit reached",
		"Hourly email limit reached. Sending will resume automatically.", nil)
	e.Details = scope
	return e
}

// Template builds a non-retryable template failure.
func Template(message string) *Error {
	return newError(KindTemplate, "TEMPLATE", message,
		"The email template is invalid: "+message, nil)
}

// Attachment builds a non-retryable attachment failure.
func Attachment(cause error) *Error {
	return newError(KindAttachment, "ATTACHMENT", describe(cause),
		"The certificate attachment could not be prepared.", cause)
}

// Delivery builds a retryable delivery failure (message accepted by us,
// refused downstream).
func Delivery(cause error) *Error {
	return newError(KindDelivery, "DELIVERY", describe(cause),
		"The mail server refused the message. It will be retried.", cause)
}

// Network builds a retryable network-level failure.
func Network(cause error) *Error {
	return newError(KindNetwork, "NETWORK", describe(cause),
		"A network error interrupted sending. Please try again.", cause)
}

// Configuration builds a non-retryable configuration failure.
func Configuration(message string) *Error {
	return newError(KindConfiguration, "EMAIL_CONFIG", message,
		"Email is not configured correctly: "+message, nil)
}

// Unknown builds a retryable catch-all failure.
func Unknown(cause error) *Error {
	return newError(KindUnknown, "UNKNOWN", describe(cause),
		"An unexpected error occurred while sending. Please try again.", cause)
}

func describe(err error) string {
	if err == nil {
		return "unspecified failure"
	}
	return err.Error()
}
