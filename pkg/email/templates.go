package email

import (
	"fmt"
	"html"
	"strings"
)

type Branding struct {
	AppName      string
	BaseURL      string
	PrimaryColor string
}

// Content is the variable part of a transactional email.
type Content struct {
	Greeting    string
	Title       string
	Paragraphs  []string
	ActionURL   string
	ActionLabel string
	Footer      string
}

// Build wraps content in the shared layout and returns the message with
// both plain-text and HTML bodies.
func Build(to string, subject string, b Branding, c Content) Message {
	appName := b.AppName
	if appName == "" {
		appName = "AI Rookie"
	}
	color := b.PrimaryColor
	if color == "" {
		color = "#2563eb"
	}
	footer := c.Footer
	if footer == "" {
		footer = fmt.Sprintf("Venlig hilsen\nTeamet bag %s", appName)
	}

	var text strings.Builder
	if c.Greeting != "" {
		text.WriteString(c.Greeting + "\n\n")
	}
	for _, p := range c.Paragraphs {
		text.WriteString(p + "\n\n")
	}
	if c.ActionURL != "" {
		text.WriteString(c.ActionURL + "\n\n")
	}
	text.WriteString(footer)

	var body strings.Builder
	if c.Greeting != "" {
		fmt.Fprintf(&body, `<h2 style="color: %s;">%s</h2>`, color, html.EscapeString(c.Greeting))
	}
	if c.Title != "" {
		fmt.Fprintf(&body, `<p><strong>%s</strong></p>`, html.EscapeString(c.Title))
	}
	for _, p := range c.Paragraphs {
		fmt.Fprintf(&body, `<p>%s</p>`, html.EscapeString(p))
	}
	if c.ActionURL != "" {
		label := c.ActionLabel
		if label == "" {
			label = "Åbn " + appName
		}
		fmt.Fprintf(&body, `<p style="text-align: center; margin: 30px 0;"><a href="%s" style="background-color: %s; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">%s</a></p>`,
			html.EscapeString(c.ActionURL), color, html.EscapeString(label))
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html lang="da">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="font-size: 20px; font-weight: bold; color: %s; margin-bottom: 24px;">%s</div>
    %s
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">%s</p>
</body>
</html>`,
		html.EscapeString(subject), color, html.EscapeString(appName), body.String(),
		strings.ReplaceAll(html.EscapeString(footer), "\n", "<br>"))

	return Message{
		To:       []string{to},
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: htmlBody,
	}
}
