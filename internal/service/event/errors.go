package event

import "errors"

// Sentinel errors for the event service layer.
var (
	ErrNotFound        = errors.New("event not found")
	ErrArchived        = errors.New("event is archived")
	ErrEmptyImport     = errors.New("import contains no participants")
	ErrDuplicateCertID = errors.New("duplicate certification id in import")
)
