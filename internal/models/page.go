package models

import "errors"

// EventPage is one response of an events listing.
// A well-behaved source sets exactly one of NextPageToken and NextSyncToken.
type EventPage struct {
	Items         []*Event
	NextPageToken string
	NextSyncToken string
}

// UpdateOptions controls how an event update is submitted.
type UpdateOptions struct {
	// SendUpdates is passed through to the calendar API ("none" suppresses
	// notification emails to attendees).
	SendUpdates string
	// IfMatch is the etag the update is conditional on.
	IfMatch string
}

var (
	// ErrUpdateConflict is returned when an update's If-Match precondition
	// fails because the event changed remotely.
	ErrUpdateConflict = errors.New("event was modified concurrently")

	// ErrCursorExpired is returned when the source no longer accepts a sync token
	// and a full bootstrap is required.
	ErrCursorExpired = errors.New("sync token is no longer valid")
)
