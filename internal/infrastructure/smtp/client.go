package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"path/filepath"

	"reminder-service/internal/config"
	"reminder-service/internal/domain/entity"
	"reminder-service/internal/report"

	"gopkg.in/gomail.v2"
)

// Client emails weekly reports
type Client struct {
	cfg      *config.SMTPConfig
	template *template.Template
	send     func(m *gomail.Message) error
}

// NewClient creates a new SMTP client
func NewClient(cfg *config.SMTPConfig) (*Client, error) {
	client := &Client{cfg: cfg}
	client.send = client.dialAndSend

	if err := client.loadTemplate(); err != nil {
		return nil, fmt.Errorf("failed to load email template: %w", err)
	}

	return client, nil
}

// loadTemplate prefers weekly_report.html from the templates dir over the built-in one
func (c *Client) loadTemplate() error {
	tmpl, err := template.ParseFiles(filepath.Join(c.cfg.TemplatesPath, "weekly_report.html"))
	if err != nil {
		tmpl, err = template.New("weekly_report").Parse(defaultWeeklyReportTemplate)
		if err != nil {
			return fmt.Errorf("failed to parse default weekly report template: %w", err)
		}
	}
	c.template = tmpl
	return nil
}

// SendWeeklyReport emails a weekly summary
func (c *Client) SendWeeklyReport(ctx context.Context, to string, user *entity.User, summary *report.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := c.Render(user, summary)
	if err != nil {
		return fmt.Errorf("failed to render weekly report email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", c.cfg.FromName, c.cfg.FromEmail))
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Weekly report %s - %s", summary.WeekStart, summary.WeekEnd))
	m.SetBody("text/html", body)
	m.AddAlternative("text/plain", summary.Text())

	return c.send(m)
}

// Render executes the report template
func (c *Client) Render(user *entity.User, summary *report.Summary) (string, error) {
	data := map[string]interface{}{
		"Name":        user.Name,
		"WeekStart":   summary.WeekStart,
		"WeekEnd":     summary.WeekEnd,
		"Completion":  summary.CompletionPercent(),
		"Done":        summary.Counts[entity.StatusDone],
		"Skipped":     summary.Counts[entity.StatusSkip],
		"TimedOut":    summary.Counts[entity.StatusTimeout],
		"Open":        summary.Counts[entity.StatusPending] + summary.Counts[entity.StatusSnoozed],
		"SnoozesUsed": summary.SnoozesUsed,
		"Total":       summary.Total,
	}

	var buf bytes.Buffer
	if err := c.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// dialAndSend uses STARTTLS when UseTLS is set, implicit SSL otherwise
func (c *Client) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(c.cfg.Host, c.cfg.Port, c.cfg.Username, c.cfg.Password)
	d.SSL = !c.cfg.UseTLS
	d.TLSConfig = &tls.Config{
		ServerName: c.cfg.Host,
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

const defaultWeeklyReportTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Weekly report</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4CAF50;">Your week: {{.WeekStart}} to {{.WeekEnd}}</h2>
        <p>Hi {{.Name}},</p>
        <p style="font-size: 20px;">Completion: <strong>{{.Completion}}%</strong></p>
        <table style="border-collapse: collapse;">
            <tr><td style="padding: 4px 16px 4px 0;">Done</td><td>{{.Done}}</td></tr>
            <tr><td style="padding: 4px 16px 4px 0;">Skipped</td><td>{{.Skipped}}</td></tr>
            <tr><td style="padding: 4px 16px 4px 0;">Timed out</td><td>{{.TimedOut}}</td></tr>
            {{if .Open}}<tr><td style="padding: 4px 16px 4px 0;">Still open</td><td>{{.Open}}</td></tr>{{end}}
            <tr><td style="padding: 4px 16px 4px 0;">Snoozes used</td><td>{{.SnoozesUsed}}</td></tr>
            <tr><td style="padding: 4px 16px 4px 0;"><strong>Total</strong></td><td><strong>{{.Total}}</strong></td></tr>
        </table>
        <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email, please do not reply.</p>
    </div>
</body>
</html>
`
