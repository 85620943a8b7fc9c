package models

import (
	"encoding/json"
	"fmt"
)

// Event is a calendar event as seen by the mirror engine.
// Only the fields the engine reads are typed; everything else is kept in Extra
// and written back untouched when the event is re-submitted.
type Event struct {
	ID                    string
	ETag                  string
	Status                string // "confirmed", "tentative" or "cancelled"
	Summary               string
	Organizer             *Organizer
	GuestsCanInviteOthers *bool      // nil when the field is absent
	Attendees             []Attendee // nil when the event has no attendee collection
	Start                 *EventDateTime
	Extra                 map[string]json.RawMessage
}

// Organizer identifies who organizes an event.
type Organizer struct {
	Email string
	Self  bool
	Extra map[string]json.RawMessage
}

// EventDateTime is either an all-day date or a timestamp.
type EventDateTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// String returns the timestamp, or the date for all-day events.
func (t *EventDateTime) String() string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// Attendee is a single entry of an event's attendee collection.
type Attendee struct {
	Email          string
	Self           bool
	ResponseStatus string
	Optional       *bool // nil when the field is absent
	Extra          map[string]json.RawMessage
}

// IsOptional reports whether the attendee is explicitly optional.
func (a Attendee) IsOptional() bool {
	return a.Optional != nil && *a.Optional
}

// Clone returns a deep copy of the attendee.
func (a Attendee) Clone() Attendee {
	c := a
	if a.Optional != nil {
		v := *a.Optional
		c.Optional = &v
	}
	c.Extra = cloneRaw(a.Extra)
	return c
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	if e.Organizer != nil {
		o := *e.Organizer
		o.Extra = cloneRaw(e.Organizer.Extra)
		c.Organizer = &o
	}
	if e.GuestsCanInviteOthers != nil {
		v := *e.GuestsCanInviteOthers
		c.GuestsCanInviteOthers = &v
	}
	if e.Start != nil {
		s := *e.Start
		c.Start = &s
	}
	if e.Attendees != nil {
		c.Attendees = make([]Attendee, len(e.Attendees))
		for i, a := range e.Attendees {
			c.Attendees[i] = a.Clone()
		}
	}
	c.Extra = cloneRaw(e.Extra)
	return &c
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := cloneRaw(e.Extra)
	if out == nil {
		out = make(map[string]json.RawMessage)
	}
	if err := putString(out, "id", e.ID); err != nil {
		return nil, err
	}
	if err := putString(out, "etag", e.ETag); err != nil {
		return nil, err
	}
	if err := putString(out, "status", e.Status); err != nil {
		return nil, err
	}
	if err := putString(out, "summary", e.Summary); err != nil {
		return nil, err
	}
	if e.Organizer != nil {
		if err := put(out, "organizer", e.Organizer); err != nil {
			return nil, err
		}
	}
	if e.GuestsCanInviteOthers != nil {
		if err := put(out, "guestsCanInviteOthers", *e.GuestsCanInviteOthers); err != nil {
			return nil, err
		}
	}
	if e.Attendees != nil {
		if err := put(out, "attendees", e.Attendees); err != nil {
			return nil, err
		}
	}
	if e.Start != nil {
		if err := put(out, "start", e.Start); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{}
	if err := take(raw, "id", &e.ID); err != nil {
		return err
	}
	if err := take(raw, "etag", &e.ETag); err != nil {
		return err
	}
	if err := take(raw, "status", &e.Status); err != nil {
		return err
	}
	if err := take(raw, "summary", &e.Summary); err != nil {
		return err
	}
	if err := take(raw, "organizer", &e.Organizer); err != nil {
		return err
	}
	if err := take(raw, "guestsCanInviteOthers", &e.GuestsCanInviteOthers); err != nil {
		return err
	}
	if err := take(raw, "attendees", &e.Attendees); err != nil {
		return err
	}
	if err := take(raw, "start", &e.Start); err != nil {
		return err
	}
	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

func (o Organizer) MarshalJSON() ([]byte, error) {
	out := cloneRaw(o.Extra)
	if out == nil {
		out = make(map[string]json.RawMessage)
	}
	if err := putString(out, "email", o.Email); err != nil {
		return nil, err
	}
	if o.Self {
		if err := put(out, "self", true); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

func (o *Organizer) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Organizer{}
	if err := take(raw, "email", &o.Email); err != nil {
		return err
	}
	if err := take(raw, "self", &o.Self); err != nil {
		return err
	}
	if len(raw) > 0 {
		o.Extra = raw
	}
	return nil
}

func (a Attendee) MarshalJSON() ([]byte, error) {
	out := cloneRaw(a.Extra)
	if out == nil {
		out = make(map[string]json.RawMessage)
	}
	if err := putString(out, "email", a.Email); err != nil {
		return nil, err
	}
	if a.Self {
		if err := put(out, "self", true); err != nil {
			return nil, err
		}
	}
	if err := putString(out, "responseStatus", a.ResponseStatus); err != nil {
		return nil, err
	}
	if a.Optional != nil {
		if err := put(out, "optional", *a.Optional); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

func (a *Attendee) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Attendee{}
	if err := take(raw, "email", &a.Email); err != nil {
		return err
	}
	if err := take(raw, "self", &a.Self); err != nil {
		return err
	}
	if err := take(raw, "responseStatus", &a.ResponseStatus); err != nil {
		return err
	}
	if err := take(raw, "optional", &a.Optional); err != nil {
		return err
	}
	if len(raw) > 0 {
		a.Extra = raw
	}
	return nil
}

// take decodes raw[key] into dst and removes the key, leaving only unknown
// fields behind.
func take(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

func put(out map[string]json.RawMessage, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	out[key] = b
	return nil
}

func putString(out map[string]json.RawMessage, key, v string) error {
	if v == "" {
		return nil
	}
	return put(out, key, v)
}

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
