package syncer

import (
	"context"
	"fmt"
)

// CursorResolutionError means a full listing ended without yielding a sync
// token.
type CursorResolutionError struct {
	CalendarID string
	PageToken  string
	Reason     string
}

func (e *CursorResolutionError) Error() string {
	if e.PageToken != "" {
		return fmt.Sprintf("resolving sync token for %s: %s (page token %q)", e.CalendarID, e.Reason, e.PageToken)
	}
	return fmt.Sprintf("resolving sync token for %s: %s", e.CalendarID, e.Reason)
}

// NextSyncToken pages through a full listing of the calendar and returns the
// sync token carried by its last page.
func (s *Syncer) NextSyncToken(ctx context.Context) (string, error) {
	pageToken := ""
	for pages := 0; ; pages++ {
		page, err := s.source.ListFull(ctx, s.calendarID, pageToken)
		if err != nil {
			return "", fmt.Errorf("failed to list events for sync token: %w", err)
		}

		switch {
		case page.NextSyncToken != "":
			s.logger.Debug("Resolved sync token.", "pages", pages+1)
			return page.NextSyncToken, nil
		case page.NextPageToken == "":
			return "", &CursorResolutionError{CalendarID: s.calendarID, PageToken: pageToken, Reason: "response has neither nextSyncToken nor nextPageToken"}
		case page.NextPageToken == pageToken:
			return "", &CursorResolutionError{CalendarID: s.calendarID, PageToken: pageToken, Reason: "page token repeated"}
		}
		pageToken = page.NextPageToken
	}
}
