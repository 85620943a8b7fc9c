package mirror_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmirror/internal/mirror"
	"calmirror/internal/models"
)

const target = "target@example.local"

func selfOrganizer() *models.Organizer {
	return &models.Organizer{Email: "self@example.dev", Self: true}
}

func TestSelfAttendeeStatus(t *testing.T) {
	tests := []struct {
		name    string
		event   *models.Event
		want    mirror.SelfStatus
		wantErr error
	}{
		{
			name:  "no attendees means accepted organizer",
			event: &models.Event{Organizer: selfOrganizer()},
			want:  mirror.SelfStatus{ResponseStatus: "accepted", Optional: false},
		},
		{
			name: "self attendee status",
			event: &models.Event{Attendees: []models.Attendee{
				{Email: "other@example.com", ResponseStatus: "accepted"},
				{Email: "self@example.dev", Self: true, ResponseStatus: "tentative", Optional: models.Bool(true)},
			}},
			want: mirror.SelfStatus{ResponseStatus: "tentative", Optional: true},
		},
		{
			name: "absent optional is false",
			event: &models.Event{Attendees: []models.Attendee{
				{Email: "self@example.dev", Self: true, ResponseStatus: "declined"},
			}},
			want: mirror.SelfStatus{ResponseStatus: "declined", Optional: false},
		},
		{
			name: "missing self attendee",
			event: &models.Event{ID: "ev1", Attendees: []models.Attendee{
				{Email: "other@example.com", ResponseStatus: "accepted"},
			}},
			wantErr: mirror.ErrMissingSelfAttendee,
		},
		{
			name:    "empty attendee collection has no self",
			event:   &models.Event{ID: "ev2", Attendees: []models.Attendee{}},
			wantErr: mirror.ErrMissingSelfAttendee,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mirror.SelfAttendeeStatus(tt.event)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldUpdate(t *testing.T) {
	self := models.Attendee{Email: "self@example.dev", Self: true}
	tests := []struct {
		name  string
		event *models.Event
		want  bool
	}{
		{
			name:  "organizer without attendees",
			event: &models.Event{Organizer: selfOrganizer()},
			want:  true,
		},
		{
			name: "organizer with other attendees",
			event: &models.Event{
				Organizer: selfOrganizer(),
				Attendees: []models.Attendee{self, {Email: "someone@example.com"}},
			},
			want: true,
		},
		{
			name: "organizer ignores guestsCanInviteOthers",
			event: &models.Event{
				Organizer:             selfOrganizer(),
				GuestsCanInviteOthers: models.Bool(false),
				Attendees:             []models.Attendee{self, {Email: "someone@example.com"}},
			},
			want: true,
		},
		{
			name: "organizer is the sole attendee",
			event: &models.Event{
				Organizer: selfOrganizer(),
				Attendees: []models.Attendee{self},
			},
			want: true,
		},
		{
			name: "target response status drifted",
			event: &models.Event{
				Organizer: selfOrganizer(),
				Attendees: []models.Attendee{
					{Email: "self@example.com", Self: true, ResponseStatus: "accepted"},
					{Email: target, ResponseStatus: "needsResponse"},
				},
			},
			want: true,
		},
		{
			name: "target optional drifted",
			event: &models.Event{
				Organizer: selfOrganizer(),
				Attendees: []models.Attendee{
					{Email: "self@example.com", Self: true, ResponseStatus: "accepted", Optional: models.Bool(true)},
					{Email: target, ResponseStatus: "accepted"},
				},
			},
			want: true,
		},
		{
			name: "target matches status and optional",
			event: &models.Event{
				Organizer: selfOrganizer(),
				Attendees: []models.Attendee{
					{Email: "self@example.com", Self: true, ResponseStatus: "accepted"},
					{Email: target, ResponseStatus: "accepted", Optional: models.Bool(false)},
				},
			},
			want: false,
		},
		{
			name: "guest event that allows inviting",
			event: &models.Event{
				Organizer: &models.Organizer{Email: "someone@example.com"},
				Attendees: []models.Attendee{{Email: "self@example.com", Self: true}},
			},
			want: true,
		},
		{
			name: "guest event already in sync",
			event: &models.Event{
				Organizer: &models.Organizer{Email: "someone@example.com"},
				Attendees: []models.Attendee{
					{Email: "someone@example.com"},
					{Email: "self@example.com", Self: true, ResponseStatus: "needsAction"},
					{Email: target, ResponseStatus: "needsAction"},
				},
			},
			want: false,
		},
		{
			name: "guest event where target drifted",
			event: &models.Event{
				Organizer: &models.Organizer{Email: "someone@example.com"},
				Attendees: []models.Attendee{
					{Email: "self@example.com", Self: true, ResponseStatus: "accepted"},
					{Email: target, ResponseStatus: "needsAction"},
				},
			},
			want: true,
		},
		{
			name: "guests cannot invite others",
			event: &models.Event{
				Organizer:             &models.Organizer{Email: "someone@example.com"},
				GuestsCanInviteOthers: models.Bool(false),
				Attendees:             []models.Attendee{{Email: "self@example.com", Self: true}},
			},
			want: false,
		},
		{
			name: "guests cannot invite others and no attendees",
			event: &models.Event{
				Organizer:             &models.Organizer{Email: "someone@example.com"},
				GuestsCanInviteOthers: models.Bool(false),
			},
			want: false,
		},
		{
			name: "cancelled event",
			event: &models.Event{
				Status:    "cancelled",
				Organizer: selfOrganizer(),
			},
			want: false,
		},
		{
			name: "cancelled event with drifted target",
			event: &models.Event{
				Status:    "cancelled",
				Organizer: selfOrganizer(),
				Attendees: []models.Attendee{
					{Email: "self@example.com", Self: true, ResponseStatus: "accepted"},
					{Email: target, ResponseStatus: "declined"},
				},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mirror.ShouldUpdate(tt.event, []string{target})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldUpdate_MissingSelfAttendee(t *testing.T) {
	event := &models.Event{
		ID:        "ev1",
		Organizer: &models.Organizer{Email: "someone@example.com"},
		Attendees: []models.Attendee{{Email: "someone@example.com"}},
	}

	_, err := mirror.ShouldUpdate(event, []string{target})
	require.ErrorIs(t, err, mirror.ErrMissingSelfAttendee)
}

func TestShouldUpdate_MultipleTargets(t *testing.T) {
	event := &models.Event{
		Organizer: selfOrganizer(),
		Attendees: []models.Attendee{
			{Email: "self@example.dev", Self: true, ResponseStatus: "accepted"},
			{Email: "t1@example.com", ResponseStatus: "accepted"},
		},
	}

	got, err := mirror.ShouldUpdate(event, []string{"t1@example.com"})
	require.NoError(t, err)
	assert.False(t, got)

	got, err = mirror.ShouldUpdate(event, []string{"t1@example.com", "t2@example.com"})
	require.NoError(t, err)
	assert.True(t, got, "a target without an attendee entry must be added")
}

func TestRewrite_AddsTargetsInOrder(t *testing.T) {
	event := &models.Event{
		ID:        "ev1",
		ETag:      "etag-1",
		Organizer: selfOrganizer(),
		Attendees: []models.Attendee{
			{Email: "a@b.c", Self: true, ResponseStatus: "needsAction"},
		},
	}

	res, err := mirror.Rewrite(event, []string{"t1", "t2"})
	require.NoError(t, err)

	assert.Equal(t, []models.Attendee{
		{Email: "a@b.c", Self: true, ResponseStatus: "needsAction"},
		{Email: "t1", ResponseStatus: "needsAction", Optional: models.Bool(false)},
		{Email: "t2", ResponseStatus: "needsAction", Optional: models.Bool(false)},
	}, res.Event.Attendees)
	assert.Empty(t, res.Previous)
	assert.Len(t, res.Next, 2)
	assert.Equal(t, "etag-1", res.Event.ETag)

	assert.Len(t, event.Attendees, 1, "input event must not be modified")
}

func TestRewrite_PreservesOthersAndRegroupsTargets(t *testing.T) {
	event := &models.Event{
		Organizer: selfOrganizer(),
		Attendees: []models.Attendee{
			{Email: "t2", ResponseStatus: "needsAction", Optional: models.Bool(true)},
			{Email: "user@example.com", Self: true, ResponseStatus: "declined"},
			{Email: "other@example.com", ResponseStatus: "accepted"},
			{Email: "t1", ResponseStatus: "accepted", Extra: map[string]json.RawMessage{"comment": json.RawMessage(`"see you"`)}},
			{Email: "other2@example.dev", ResponseStatus: "needsAction", Optional: models.Bool(true)},
		},
	}

	res, err := mirror.Rewrite(event, []string{"t1", "t2"})
	require.NoError(t, err)

	assert.Equal(t, []models.Attendee{
		{Email: "user@example.com", Self: true, ResponseStatus: "declined"},
		{Email: "other@example.com", ResponseStatus: "accepted"},
		{Email: "other2@example.dev", ResponseStatus: "needsAction", Optional: models.Bool(true)},
		{Email: "t1", ResponseStatus: "declined", Optional: models.Bool(false), Extra: map[string]json.RawMessage{"comment": json.RawMessage(`"see you"`)}},
		{Email: "t2", ResponseStatus: "declined", Optional: models.Bool(false)},
	}, res.Event.Attendees)
	assert.Len(t, res.Previous, 2)
}

func TestRewrite_NoAttendees(t *testing.T) {
	event := &models.Event{Organizer: selfOrganizer()}

	res, err := mirror.Rewrite(event, []string{target})
	require.NoError(t, err)

	assert.Equal(t, []models.Attendee{
		{Email: target, ResponseStatus: "accepted", Optional: models.Bool(false)},
	}, res.Event.Attendees)
	assert.Nil(t, event.Attendees)
}

func TestRewrite_KeepsOtherEventFields(t *testing.T) {
	event := &models.Event{
		ID:        "ev1",
		Summary:   "standup",
		Organizer: selfOrganizer(),
		Attendees: []models.Attendee{{Email: "a@b.c", Self: true, ResponseStatus: "accepted"}},
		Extra: map[string]json.RawMessage{
			"some": json.RawMessage(`"data"`),
			"the":  json.RawMessage(`{"other":"data"}`),
		},
	}

	res, err := mirror.Rewrite(event, []string{target})
	require.NoError(t, err)

	assert.Equal(t, event.Extra, res.Event.Extra)
	assert.Equal(t, "standup", res.Event.Summary)
	assert.Equal(t, event.Organizer, res.Event.Organizer)
}

func TestRewrite_Converges(t *testing.T) {
	events := []*models.Event{
		{
			Organizer: selfOrganizer(),
			Attendees: []models.Attendee{{Email: "a@b.c", Self: true, ResponseStatus: "accepted"}},
		},
		{
			Organizer: &models.Organizer{Email: "someone@example.com"},
			Attendees: []models.Attendee{
				{Email: "someone@example.com", ResponseStatus: "accepted"},
				{Email: "a@b.c", Self: true, ResponseStatus: "tentative", Optional: models.Bool(true)},
				{Email: "t2", ResponseStatus: "accepted"},
			},
		},
	}
	targets := []string{"t1", "t2"}

	for _, event := range events {
		update, err := mirror.ShouldUpdate(event, targets)
		require.NoError(t, err)
		require.True(t, update)

		res, err := mirror.Rewrite(event, targets)
		require.NoError(t, err)

		update, err = mirror.ShouldUpdate(res.Event, targets)
		require.NoError(t, err)
		assert.False(t, update, "a rewritten event must not need another update")
	}
}

func TestRewrite_MissingSelfAttendee(t *testing.T) {
	event := &models.Event{Attendees: []models.Attendee{{Email: "x@example.com"}}}

	_, err := mirror.Rewrite(event, []string{target})
	require.ErrorIs(t, err, mirror.ErrMissingSelfAttendee)
}

func TestDecide_Reasons(t *testing.T) {
	d, err := mirror.Decide(&models.Event{Status: "cancelled"}, []string{target})
	require.NoError(t, err)
	assert.Equal(t, mirror.Decision{Reason: "event is cancelled"}, d)

	d, err = mirror.Decide(&models.Event{Organizer: selfOrganizer()}, []string{target})
	require.NoError(t, err)
	assert.Equal(t, mirror.Decision{Update: true, Reason: "event has no attendees"}, d)
}
