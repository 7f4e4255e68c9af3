package config

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"reminder-service/internal/domain/entity"

	"github.com/robfig/cron/v3"
)

// RotationEntry is one weekly reminder slot resolved from the rotation table
type RotationEntry struct {
	Weekday string // cron day-of-week expression, e.g. "mon" or "mon-fri"
	Time    string // HH:MM
	SlotID  string
	Spec    string // five-field cron spec
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token is required"))
	}
	for i, user := range c.Telegram.Users {
		if user.ChatID == "" {
			errs = append(errs, fmt.Errorf("telegram.users[%d].chat_id is required", i))
		}
	}

	if _, err := c.HTTP.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, fmt.Errorf("http.trusted_proxies: %w", err))
	}

	if c.Reminders.TimeoutMinutes < 0 {
		errs = append(errs, errors.New("reminders.timeout_minutes must be positive"))
	}
	if c.Reminders.SnoozeMinutes != nil && *c.Reminders.SnoozeMinutes < 0 {
		errs = append(errs, errors.New("reminders.snooze_minutes must not be negative"))
	}

	seen := make(map[string]bool)
	for group, slots := range c.Slots {
		for _, slot := range slots {
			if slot.ID == "" {
				errs = append(errs, fmt.Errorf("slot in group %q has no id", group))
				continue
			}
			if seen[slot.ID] {
				errs = append(errs, fmt.Errorf("duplicate slot id %q", slot.ID))
			}
			seen[slot.ID] = true
		}
	}

	if _, err := c.RotationEntries(); err != nil {
		errs = append(errs, err)
	}

	if c.WeeklyReport.Enabled {
		if _, err := c.WeeklyReportSpec(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlotIndex flattens the slot catalog by id
func (c *Config) SlotIndex() map[string]entity.Slot {
	index := make(map[string]entity.Slot)
	for group, slots := range c.Slots {
		for _, slot := range slots {
			index[slot.ID] = entity.Slot{
				ID:       slot.ID,
				Group:    group,
				Name:     slot.Name,
				Exercise: slot.Exercise,
				Reps:     slot.Reps,
				Image:    slot.Image,
			}
		}
	}
	return index
}

// Users returns the configured chats
func (c *Config) Users() []entity.User {
	users := make([]entity.User, 0, len(c.Telegram.Users))
	for _, u := range c.Telegram.Users {
		users = append(users, entity.User{ChatID: u.ChatID, Name: u.Name, Email: u.Email})
	}
	return users
}

// RotationEntries resolves the rotation table into cron jobs, sorted by weekday then time
func (c *Config) RotationEntries() ([]RotationEntry, error) {
	index := c.SlotIndex()

	var entries []RotationEntry
	for weekday, times := range c.Rotation {
		for slotTime, slotID := range times {
			if _, ok := index[slotID]; !ok {
				return nil, fmt.Errorf("rotation %s %s: unknown slot %q", weekday, slotTime, slotID)
			}
			spec, err := weeklySpec(weekday, slotTime)
			if err != nil {
				return nil, fmt.Errorf("rotation %s %s: %w", weekday, slotTime, err)
			}
			entries = append(entries, RotationEntry{
				Weekday: weekday,
				Time:    slotTime,
				SlotID:  slotID,
				Spec:    spec,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weekday != entries[j].Weekday {
			return entries[i].Weekday < entries[j].Weekday
		}
		return entries[i].Time < entries[j].Time
	})
	return entries, nil
}

// WeeklyReportSpec returns the cron spec of the weekly report job
func (c *Config) WeeklyReportSpec() (string, error) {
	spec, err := weeklySpec(c.WeeklyReport.DayOfWeek, c.WeeklyReport.Time)
	if err != nil {
		return "", fmt.Errorf("weekly_report: %w", err)
	}
	return spec, nil
}

func weeklySpec(weekday, hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("invalid time %q, want HH:MM", hhmm)
	}

	spec := fmt.Sprintf("%d %d * * %s", t.Minute(), t.Hour(), weekday)
	if _, err := cron.ParseStandard(spec); err != nil {
		return "", fmt.Errorf("invalid day of week %q: %w", weekday, err)
	}
	return spec, nil
}
