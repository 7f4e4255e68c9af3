package smtp

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"reminder-service/internal/config"
	"reminder-service/internal/domain/entity"
	"reminder-service/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func testSummary() *report.Summary {
	return report.Summarize("42", "2024-01-08", "2024-01-14",
		[]*entity.Task{{Status: entity.StatusDone}, {Status: entity.StatusTimeout}, {Status: entity.StatusPending}},
		[]*entity.Event{{Type: entity.EventSnoozed}},
	)
}

func TestRender_DefaultTemplate(t *testing.T) {
	client, err := NewClient(&config.SMTPConfig{TemplatesPath: t.TempDir()})
	require.NoError(t, err)

	body, err := client.Render(&entity.User{Name: "<alice>"}, testSummary())
	require.NoError(t, err)

	assert.Contains(t, body, "2024-01-08 to 2024-01-14")
	assert.Contains(t, body, "&lt;alice&gt;", "names are html escaped")
	assert.Contains(t, body, "<strong>33%</strong>")
	assert.Contains(t, body, "Still open")
}

func TestRender_CustomTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weekly_report.html"), []byte(`done={{.Done}} total={{.Total}}`), 0o600))

	client, err := NewClient(&config.SMTPConfig{TemplatesPath: dir})
	require.NoError(t, err)

	body, err := client.Render(&entity.User{}, testSummary())
	require.NoError(t, err)
	assert.Equal(t, "done=1 total=3", body)
}

func TestSendWeeklyReport(t *testing.T) {
	client, err := NewClient(&config.SMTPConfig{FromName: "Bot", FromEmail: "bot@example.com"})
	require.NoError(t, err)

	var sent *gomail.Message
	client.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	err = client.SendWeeklyReport(context.Background(), "alice@example.com", &entity.User{Name: "alice"}, testSummary())
	require.NoError(t, err)
	require.NotNil(t, sent)

	assert.Equal(t, []string{"alice@example.com"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"Bot <bot@example.com>"}, sent.GetHeader("From"))
	assert.Equal(t, []string{"Weekly report 2024-01-08 - 2024-01-14"}, sent.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err = sent.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "text/plain")
}
