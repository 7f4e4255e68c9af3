package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/repository"
)

const dateLayout = "2006-01-02"

// Summary is a user's weekly completion summary
type Summary struct {
	UserID      string                `json:"user_id"`
	WeekStart   string                `json:"week_start"`
	WeekEnd     string                `json:"week_end"`
	Counts      map[entity.Status]int `json:"counts"`
	Total       int                   `json:"total"`
	Done        int                   `json:"done"`
	Completion  float64               `json:"completion"` // done / total, 0 when there are no tasks
	SnoozesUsed int                   `json:"snoozes_used"`
}

// CompletionPercent returns the completion ratio rounded to a whole percent
func (s *Summary) CompletionPercent() int {
	return int(s.Completion*100 + 0.5)
}

// Text renders the summary as a chat message
func (s *Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Weekly report %s – %s\n", s.WeekStart, s.WeekEnd)
	fmt.Fprintf(&b, "Completion: %d%%\n", s.CompletionPercent())
	fmt.Fprintf(&b, "Done: %d\n", s.Counts[entity.StatusDone])
	fmt.Fprintf(&b, "Skipped: %d\n", s.Counts[entity.StatusSkip])
	fmt.Fprintf(&b, "Timed out: %d\n", s.Counts[entity.StatusTimeout])
	if open := s.Counts[entity.StatusPending] + s.Counts[entity.StatusSnoozed]; open > 0 {
		fmt.Fprintf(&b, "Still open: %d\n", open)
	}
	fmt.Fprintf(&b, "Snoozes used: %d\n", s.SnoozesUsed)
	fmt.Fprintf(&b, "Total: %d", s.Total)
	return b.String()
}

// WeekRange returns the first and last date of the seven days ending on day, inclusive
func WeekRange(day time.Time) (start, end string) {
	return day.AddDate(0, 0, -6).Format(dateLayout), day.Format(dateLayout)
}

// Summarize counts tasks per status and snooze events
func Summarize(userID, weekStart, weekEnd string, tasks []*entity.Task, events []*entity.Event) *Summary {
	summary := &Summary{
		UserID:    userID,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Counts:    make(map[entity.Status]int, len(entity.Statuses)),
	}
	for _, status := range entity.Statuses {
		summary.Counts[status] = 0
	}

	for _, task := range tasks {
		summary.Counts[task.Status]++
		summary.Total++
	}
	summary.Done = summary.Counts[entity.StatusDone]
	if summary.Total > 0 {
		summary.Completion = float64(summary.Done) / float64(summary.Total)
	}

	for _, event := range events {
		if event.Type == entity.EventSnoozed {
			summary.SnoozesUsed++
		}
	}
	return summary
}

// Generator builds weekly summaries from the task store
type Generator struct {
	tasks  repository.TaskRepository
	events repository.EventRepository
	loc    *time.Location
}

// NewGenerator creates a report generator that reads dates in loc
func NewGenerator(tasks repository.TaskRepository, events repository.EventRepository, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{tasks: tasks, events: events, loc: loc}
}

// Build summarizes the seven local days ending on day
func (g *Generator) Build(ctx context.Context, userID string, day time.Time) (*Summary, error) {
	local := day.In(g.loc)
	start, end := WeekRange(local)

	tasks, err := g.tasks.ListByUser(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	endOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc).AddDate(0, 0, 1)
	events, err := g.events.ListEventsByUser(ctx, userID, endOfDay.AddDate(0, 0, -7), endOfDay)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return Summarize(userID, start, end, tasks, events), nil
}
