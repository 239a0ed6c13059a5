package delivery

import "errors"

// Sentinel errors for the delivery service layer.
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrParticipantNotFound = errors.New("participant not found")
)
