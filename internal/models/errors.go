package models

import "errors"

// Error categories shared by all components. Concrete errors wrap one of
// these so callers can classify them with errors.Is.
var (
	// ErrConfiguration marks missing or invalid settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrAuth marks a credential that is invalid and could not be renewed.
	ErrAuth = errors.New("authorization error")
	// ErrFetch marks a failure while listing calendar events.
	ErrFetch = errors.New("fetch error")
	// ErrSend marks a failure while delivering the agenda message.
	ErrSend = errors.New("send error")
)
