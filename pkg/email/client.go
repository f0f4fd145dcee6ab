package email

import (
	"context"
	"crypto/tls"
	"io"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/rookie_backend/config"
)

type Client struct {
	cfg Config
}

// NewFromCentral creates a new email client from central config
func NewFromCentral(cfg *config.Config) (*Client, error) {
	return New(FromCentralConfig(cfg.App, cfg.Email))
}

func New(cfg Config) (*Client, error) {
	if cfg.Enabled && cfg.SMTPHost == "" {
		return nil, ErrInvalidMessage{Reason: "smtp host is required when email is enabled"}
	}
	return &Client{cfg: cfg}, nil
}

// Enabled reports whether Send will attempt delivery.
func (c *Client) Enabled() bool { return c.cfg.Enabled }

// Branding returns the layout settings templates should use.
func (c *Client) Branding() Branding {
	return Branding{AppName: c.cfg.AppName, BaseURL: c.cfg.BaseURL, PrimaryColor: c.cfg.PrimaryColor}
}

func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.cfg.Enabled {
		return ErrDisabled{}
	}

	msg, err := buildMessage(c.cfg.From, m)
	if err != nil {
		return err
	}

	d := c.newDialer()

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(msg)
	}()

	// Respect ctx deadline if it's sooner than our config timeout.
	wait := c.cfg.SMTPTimeout()
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}

	select {
	case err := <-done:
		if err != nil {
			return ErrSend{Provider: "gomail/smtp", Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return context.DeadlineExceeded
	}
}

func (c *Client) newDialer() *gomail.Dialer {
	d := gomail.NewDialer(c.cfg.SMTPHost, c.cfg.SMTPPort, c.cfg.SMTPUsername, c.cfg.SMTPPassword)

	d.SSL = c.cfg.SMTPUseTLS

	if c.cfg.SMTPUseTLS {
		d.TLSConfig = &tls.Config{ServerName: c.cfg.SMTPHost, MinVersion: tls.VersionTLS12}
	}

	return d
}

func buildMessage(from string, m Message) (*gomail.Message, error) {
	msg := gomail.NewMessage()

	// From
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, ErrInvalidMessage{Reason: "from is required"}
	}
	msg.SetHeader("From", from)

	// Recipients
	to := cleanAddrs(m.To)
	if len(to) == 0 {
		return nil, ErrInvalidMessage{Reason: "at least one recipient is required"}
	}
	msg.SetHeader("To", to...)
	if len(m.CC) > 0 {
		msg.SetHeader("Cc", cleanAddrs(m.CC)...)
	}
	if len(m.BCC) > 0 {
		msg.SetHeader("Bcc", cleanAddrs(m.BCC)...)
	}

	// Subject
	subj := strings.TrimSpace(m.Subject)
	if subj == "" {
		return nil, ErrInvalidMessage{Reason: "subject is required"}
	}
	msg.SetHeader("Subject", subj)

	// Extra headers
	for k, v := range m.Headers {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		msg.SetHeader(k, v)
	}

	// Body
	hasText := strings.TrimSpace(m.TextBody) != ""
	hasHTML := strings.TrimSpace(m.HTMLBody) != ""

	switch {
	case hasText && hasHTML:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case hasHTML:
		msg.SetBody("text/html", m.HTMLBody)
	case hasText:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, ErrInvalidMessage{Reason: "either TextBody or HTMLBody is required"}
	}

	for _, a := range m.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		msg.Attach(a.Filename, settings...)
	}

	return msg, nil
}

func cleanAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
