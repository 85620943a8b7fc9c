// Package mirror decides whether an event's target attendees have drifted from
// the primary account's own attendance and computes the corrected attendee list.
package mirror

import (
	"errors"
	"fmt"
	"slices"

	"calmirror/internal/models"
)

const (
	StatusCancelled = "cancelled"
	StatusAccepted  = "accepted"
)

// ErrMissingSelfAttendee is returned when an event has attendees but none of
// them is the primary account.
var ErrMissingSelfAttendee = errors.New("event has attendees but no self attendee")

// SelfStatus is the attendance every target attendee should mirror.
type SelfStatus struct {
	ResponseStatus string
	Optional       bool
}

// Decision explains the outcome of ShouldUpdate.
type Decision struct {
	Update bool
	Reason string
}

// SelfAttendeeStatus returns the primary account's status on the event.
// An event without an attendee collection is one the primary account organizes
// alone, which counts as accepted.
func SelfAttendeeStatus(event *models.Event) (SelfStatus, error) {
	if event.Attendees == nil {
		return SelfStatus{ResponseStatus: StatusAccepted, Optional: false}, nil
	}

	for _, a := range event.Attendees {
		if a.Self {
			return SelfStatus{ResponseStatus: a.ResponseStatus, Optional: a.IsOptional()}, nil
		}
	}
	return SelfStatus{}, fmt.Errorf("event %s: %w", event.ID, ErrMissingSelfAttendee)
}

// ShouldUpdate reports whether the event's attendee list has to be rewritten
// for the given target emails.
func ShouldUpdate(event *models.Event, targets []string) (bool, error) {
	d, err := Decide(event, targets)
	return d.Update, err
}

// Decide is ShouldUpdate with the reason for the outcome attached.
func Decide(event *models.Event, targets []string) (Decision, error) {
	if event.Status == StatusCancelled {
		return Decision{Reason: "event is cancelled"}, nil
	}

	organizerSelf := event.Organizer != nil && event.Organizer.Self
	if !organizerSelf && event.GuestsCanInviteOthers != nil && !*event.GuestsCanInviteOthers {
		return Decision{Reason: "guests cannot invite others"}, nil
	}

	if event.Attendees == nil {
		return Decision{Update: true, Reason: "event has no attendees"}, nil
	}

	self, err := SelfAttendeeStatus(event)
	if err != nil {
		return Decision{}, err
	}

	for _, a := range event.Attendees {
		if !slices.Contains(targets, a.Email) {
			continue
		}
		if a.ResponseStatus != self.ResponseStatus || a.IsOptional() != self.Optional {
			return Decision{Update: true, Reason: "target attendee status drifted"}, nil
		}
	}

	for _, email := range targets {
		if !hasAttendee(event.Attendees, email) {
			return Decision{Update: true, Reason: "target attendee missing"}, nil
		}
	}

	return Decision{Reason: "already in sync"}, nil
}

// Result is the outcome of Rewrite.
type Result struct {
	Event *models.Event
	// Previous holds the target attendees found on the event before the rewrite.
	Previous []models.Attendee
	// Next holds the target attendees written by the rewrite, in target order.
	Next []models.Attendee
}

// Rewrite returns a copy of the event whose attendee list carries one entry per
// target email mirroring the self status. Non-target attendees keep their
// relative order and content and come first; target attendees follow in target
// order. The input event is not modified.
func Rewrite(event *models.Event, targets []string) (*Result, error) {
	self, err := SelfAttendeeStatus(event)
	if err != nil {
		return nil, err
	}

	var previous, others []models.Attendee
	for _, a := range event.Attendees {
		if slices.Contains(targets, a.Email) {
			previous = append(previous, a.Clone())
		} else {
			others = append(others, a.Clone())
		}
	}

	next := make([]models.Attendee, 0, len(targets))
	for _, email := range targets {
		entry := models.Attendee{Email: email}
		if i := slices.IndexFunc(previous, func(a models.Attendee) bool { return a.Email == email }); i >= 0 {
			entry = previous[i].Clone()
		}
		entry.Email = email
		entry.ResponseStatus = self.ResponseStatus
		entry.Optional = models.Bool(self.Optional)
		next = append(next, entry)
	}

	out := event.Clone()
	out.Attendees = make([]models.Attendee, 0, len(others)+len(next))
	out.Attendees = append(out.Attendees, others...)
	for _, a := range next {
		out.Attendees = append(out.Attendees, a.Clone())
	}

	return &Result{Event: out, Previous: previous, Next: next}, nil
}

func hasAttendee(attendees []models.Attendee, email string) bool {
	return slices.ContainsFunc(attendees, func(a models.Attendee) bool { return a.Email == email })
}
