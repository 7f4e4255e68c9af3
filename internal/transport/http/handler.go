package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/service"
)

const (
	secretHeader = "X-Telegram-Bot-Api-Secret-Token"
	queryTimeout = 10 * time.Second
)

// Handler serves the Telegram webhook and the read API
type Handler struct {
	reminderService service.ReminderService
	webhookSecret   string
	callbackTimeout time.Duration
	location        *time.Location
	now             func() time.Time
	log             *slog.Logger
}

// NewHandler creates a new handler. An empty secret disables the webhook secret check.
// callbackTimeout bounds the work done for one webhook update and must stay below the server write timeout.
func NewHandler(reminderService service.ReminderService, webhookSecret string, callbackTimeout time.Duration, location *time.Location, log *slog.Logger) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		reminderService: reminderService,
		webhookSecret:   webhookSecret,
		callbackTimeout: callbackTimeout,
		location:        location,
		now:             time.Now,
		log:             log,
	}
}

type chat struct {
	ID int64 `json:"id"`
}

type callbackQuery struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	From *chat  `json:"from"`
	// Absent when the original message is too old
	Message *struct {
		Chat chat `json:"chat"`
	} `json:"message"`
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

// toCallback returns nil for updates that carry no button press
func (u *update) toCallback() *entity.Callback {
	q := u.CallbackQuery
	if q == nil {
		return nil
	}

	var chatID int64
	switch {
	case q.Message != nil:
		chatID = q.Message.Chat.ID
	case q.From != nil:
		chatID = q.From.ID
	}

	return &entity.Callback{
		UpdateID:   u.UpdateID,
		CallbackID: q.ID,
		ChatID:     strconv.FormatInt(chatID, 10),
		Data:       q.Data,
	}
}

// Webhook receives Telegram updates.
// Telegram redelivers on any non-2xx, so processing failures are logged and still acknowledged.
// @Summary Telegram webhook
// @Description Receives Telegram updates. Button presses are recorded; every well-formed update is acknowledged.
// @Tags telegram
// @Accept json
// @Produce json
// @Param X-Telegram-Bot-Api-Secret-Token header string false "Webhook secret configured with setWebhook"
// @Param update body object true "Telegram update"
// @Success 200 {object} object{ok=bool}
// @Failure 400 {string} string "Invalid request body"
// @Failure 401 {string} string "Bad webhook secret"
// @Router /webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.webhookSecret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var upd update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if callback := upd.toCallback(); callback != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.callbackTimeout)
		defer cancel()

		if _, err := h.reminderService.HandleCallback(ctx, callback); err != nil {
			h.log.Error("failed to handle callback", "update_id", upd.UpdateID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// WeeklyReport returns the summary of the week ending on date, today by default
// @Summary Weekly report
// @Description Counts per status, completion ratio and snoozes for the seven days ending on date
// @Tags reports
// @Produce json
// @Param user_id query string true "Telegram chat id"
// @Param date query string false "Last day of the week, YYYY-MM-DD; today by default"
// @Success 200 {object} report.Summary
// @Failure 400 {string} string "Missing user_id or bad date"
// @Failure 500 {string} string "Internal server error"
// @Router /api/v1/reports/weekly [get]
func (h *Handler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	day := h.now().In(h.location)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.location)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	summary, err := h.reminderService.WeeklyReport(ctx, userID, day)
	if err != nil {
		h.log.Error("failed to build weekly report", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type eventResponse struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"task_id"`
	UserID     string            `json:"user_id"`
	EventType  string            `json:"event_type"`
	FromStatus string            `json:"from_status,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Meta       map[string]string `json:"meta,omitempty"`
}

func toEventResponse(event *entity.Event) eventResponse {
	return eventResponse{
		ID:         event.ID,
		TaskID:     event.TaskID,
		UserID:     event.UserID,
		EventType:  string(event.Type),
		FromStatus: string(event.FromStatus),
		CreatedAt:  event.CreatedAt,
		Meta:       event.Meta,
	}
}

// TaskEvents returns the event log of a task
// @Summary Task event log
// @Description Lifecycle events of one task, oldest first
// @Tags tasks
// @Produce json
// @Param task_id query string true "Task ID"
// @Success 200 {object} object{task_id=string,events=[]eventResponse}
// @Failure 400 {string} string "Missing task_id"
// @Failure 404 {string} string "Task not found"
// @Failure 500 {string} string "Internal server error"
// @Router /api/v1/tasks/events [get]
func (h *Handler) TaskEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	events, err := h.reminderService.TaskEvents(ctx, taskID)
	if err != nil {
		if errors.Is(err, entity.ErrTaskNotFound) {
			http.Error(w, "Task not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to list task events", "task_id", taskID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, toEventResponse(event))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id": taskID,
		"events":  resp,
	})
}

// Health reports liveness
// @Summary Liveness check
// @Tags health
// @Produce plain
// @Success 200 {string} string "OK"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
