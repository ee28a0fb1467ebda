package history

import (
	"context"
	"time"

	"github.com/polaris-ai/polaris-cli/internal/models"
)

// SessionGroups partitions sessions by recency of their last update. Every
// session lands in exactly one bucket.
type SessionGroups struct {
	Today     []models.ChatSession
	Yesterday []models.ChatSession
	LastWeek  []models.ChatSession
	LastMonth []models.ChatSession
	Older     []models.ChatSession
}

// Grouped fetches all sessions and buckets them relative to now.
func (c *Client) Grouped(ctx context.Context, now time.Time) (SessionGroups, error) {
	sessions, err := c.List(ctx)
	if err != nil {
		return SessionGroups{}, err
	}
	return GroupSessions(sessions, now), nil
}

// GroupSessions buckets sessions by UpdatedAt truncated to the local day.
// Cutoffs: today, yesterday, 7 days, 30 days, older.
func GroupSessions(sessions []models.ChatSession, now time.Time) SessionGroups {
	today := startOfDay(now)
	yesterday := today.AddDate(0, 0, -1)
	weekCutoff := today.AddDate(0, 0, -7)
	monthCutoff := today.AddDate(0, 0, -30)

	var groups SessionGroups
	for _, s := range sessions {
		day := startOfDay(s.UpdatedAt.In(now.Location()))
		switch {
		case !day.Before(today):
			groups.Today = append(groups.Today, s)
		case !day.Before(yesterday):
			groups.Yesterday = append(groups.Yesterday, s)
		case !day.Before(weekCutoff):
			groups.LastWeek = append(groups.LastWeek, s)
		case !day.Before(monthCutoff):
			groups.LastMonth = append(groups.LastMonth, s)
		default:
			groups.Older = append(groups.Older, s)
		}
	}
	return groups
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
