package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"calmirror/internal/mirror"
	"calmirror/internal/models"

	"github.com/google/uuid"
)

// sendUpdatesNone keeps the calendar from emailing attendees about rewrites.
const sendUpdatesNone = "none"

// EventSource lists and updates the events of a calendar.
type EventSource interface {
	ListFull(ctx context.Context, calendarID, pageToken string) (*models.EventPage, error)
	ListChanged(ctx context.Context, calendarID, syncToken string) (*models.EventPage, error)
	SubmitUpdate(ctx context.Context, calendarID, eventID string, event *models.Event, opts models.UpdateOptions) (*models.Event, error)
}

// CursorStore persists the synchronization cursor between runs.
type CursorStore interface {
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// TargetSource provides the target emails for a run.
type TargetSource interface {
	TargetEmails() ([]string, error)
}

// Report summarizes one synchronization pass.
type Report struct {
	RunID        string
	Bootstrapped bool
	Listed       int
	Updated      int
	Skipped      int
	Failed       int
}

// Syncer mirrors the primary account's attendance onto the target attendees
// of one calendar.
type Syncer struct {
	logger     *slog.Logger
	source     EventSource
	cursor     CursorStore
	targets    TargetSource
	calendarID string
	dryRun     bool
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, source EventSource, cursor CursorStore, targets TargetSource, calendarID string, dryRun bool) *Syncer {
	return &Syncer{
		logger:     logger,
		source:     source,
		cursor:     cursor,
		targets:    targets,
		calendarID: calendarID,
		dryRun:     dryRun,
	}
}

// Sync performs one synchronization pass.
//
// Without a persisted cursor the pass only establishes one and touches no
// event. Otherwise every event changed since the cursor is checked and, where
// needed, rewritten; a fresh cursor is persisted afterwards even when some
// updates failed.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := s.logger.With("run", report.RunID)
	logger.Info("Starting sync cycle.", "calendarID", s.calendarID)

	cursor, ok, err := s.cursor.Load(ctx)
	if err != nil {
		return report, err
	}
	if !ok {
		logger.Info("No sync token found, establishing one without syncing events.")
		return report, s.bootstrap(ctx, logger, report)
	}

	targets, err := s.targets.TargetEmails()
	if err != nil {
		return report, fmt.Errorf("failed to read target emails: %w", err)
	}

	page, err := s.source.ListChanged(ctx, s.calendarID, cursor)
	if errors.Is(err, models.ErrCursorExpired) {
		logger.Warn("Sync token was rejected, establishing a new one.", "error", err)
		return report, s.bootstrap(ctx, logger, report)
	}
	if err != nil {
		return report, fmt.Errorf("failed to fetch changed events: %w", err)
	}
	report.Listed = len(page.Items)

	for _, event := range page.Items {
		updated, err := s.syncEvent(ctx, logger, event, targets)
		switch {
		case err != nil:
			report.Failed++
			// Continue with the next event even if one fails.
			logger.Error("Failed to sync event", "id", event.ID, "summary", event.Summary, "error", err)
		case updated:
			report.Updated++
		default:
			report.Skipped++
		}
	}

	if err := s.storeFreshCursor(ctx, logger); err != nil {
		return report, err
	}

	logger.Info("Sync cycle finished.",
		"listed", report.Listed, "updated", report.Updated, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

// syncEvent applies the attendee rewrite to a single event. It reports whether
// an update was submitted.
func (s *Syncer) syncEvent(ctx context.Context, logger *slog.Logger, event *models.Event, targets []string) (bool, error) {
	decision, err := mirror.Decide(event, targets)
	if err != nil {
		return false, err
	}
	if !decision.Update {
		logger.Debug("Event does not need to be updated.", "id", event.ID, "reason", decision.Reason)
		return false, nil
	}

	res, err := mirror.Rewrite(event, targets)
	if err != nil {
		return false, err
	}

	if s.dryRun {
		logger.Info("[DRY RUN] Would update event attendees", "id", event.ID, "summary", event.Summary,
			"reason", decision.Reason, "from", attendeeJSON(res.Previous), "to", attendeeJSON(res.Next))
		return true, nil
	}

	updated, err := s.source.SubmitUpdate(ctx, s.calendarID, event.ID, res.Event, models.UpdateOptions{
		SendUpdates: sendUpdatesNone,
		IfMatch:     event.ETag,
	})
	if err != nil {
		return false, fmt.Errorf("failed to submit update: %w", err)
	}

	logger.Info("Updated event attendees", "id", event.ID, "start", updated.Start.String(), "summary", updated.Summary,
		"from", attendeeJSON(res.Previous), "to", attendeeJSON(res.Next))
	return true, nil
}

func (s *Syncer) bootstrap(ctx context.Context, logger *slog.Logger, report *Report) error {
	report.Bootstrapped = true
	return s.storeFreshCursor(ctx, logger)
}

func (s *Syncer) storeFreshCursor(ctx context.Context, logger *slog.Logger) error {
	token, err := s.NextSyncToken(ctx)
	if err != nil {
		return err
	}
	if s.dryRun {
		logger.Info("[DRY RUN] Would save sync token.")
		return nil
	}
	if err := s.cursor.Save(ctx, token); err != nil {
		return err
	}
	logger.Info("Saved sync token.")
	return nil
}

// Reset forgets the persisted cursor; the next pass bootstraps again.
func (s *Syncer) Reset(ctx context.Context) error {
	return s.cursor.Clear(ctx)
}

// Cursor returns the persisted cursor, if any.
func (s *Syncer) Cursor(ctx context.Context) (string, bool, error) {
	return s.cursor.Load(ctx)
}

func attendeeJSON(attendees []models.Attendee) string {
	if len(attendees) == 0 {
		return "[]"
	}
	b, err := json.Marshal(attendees)
	if err != nil {
		return fmt.Sprintf("%v", attendees)
	}
	return string(b)
}
