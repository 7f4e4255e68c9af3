package entity

import "strings"

// Slot is a prompt variant: the exercise shown and the image that goes with it
type Slot struct {
	ID       string
	Group    string
	Name     string
	Exercise string
	Reps     string
	Image    string // http(s) URL or local file path
}

// IsRemoteImage reports whether image is an http(s) URL Telegram can fetch itself
func IsRemoteImage(image string) bool {
	return strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://")
}

// User is a chat that receives reminders
type User struct {
	ChatID string
	Name   string
	Email  string
}

// Callback is a button press delivered by the messaging client
type Callback struct {
	UpdateID   int64
	CallbackID string
	ChatID     string
	Data       string // "<action>:<task_id>"
}

// ParseData splits callback data into action and task id
func (c *Callback) ParseData() (action, taskID string, ok bool) {
	action, taskID, ok = strings.Cut(c.Data, ":")
	if !ok || action == "" || taskID == "" {
		return "", "", false
	}
	return action, taskID, true
}
