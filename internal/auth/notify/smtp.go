package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPDispatcher delivers mail over plain SMTP with STARTTLS when the server
// offers it. Auth is attempted only when a username is configured, which
// keeps local catch-all servers (MailHog and friends) working without creds.
type SMTPDispatcher struct {
	Host string
	Port int
	User string
	Pass string
	From string

	// InsecureSkipVerify disables certificate checks for local dev servers.
	InsecureSkipVerify bool
}

func (d *SMTPDispatcher) Send(ctx context.Context, to string, tmpl Template, payload map[string]string) error {
	subject, body, err := render(tmpl, payload)
	if err != nil {
		return err
	}
	return d.send(ctx, to, subject, body)
}

func render(tmpl Template, payload map[string]string) (subject, body string, err error) {
	switch tmpl {
	case TemplateVerificationCode:
		return "Confirm your email address",
			fmt.Sprintf("<h2>Confirm your email</h2><p>Your verification code is <b>%s</b>.</p><p>It expires in %s.</p>",
				payload["code"], payload["ttl"]),
			nil
	case TemplatePasswordReset:
		return "Reset your password",
			fmt.Sprintf("<h2>Password reset</h2><p>Use this link to choose a new password:</p><p><a href=%q>%s</a></p><p>The link expires in %s and can be used once.</p>",
				payload["link"], payload["link"], payload["ttl"]),
			nil
	default:
		return "", "", fmt.Errorf("notify: unknown template %q", tmpl)
	}
}

func (d *SMTPDispatcher) send(ctx context.Context, to, subject, htmlBody string) error {
	var msg strings.Builder
	msg.WriteString("From: " + d.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notify: dial smtp: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, d.Host)
	if err != nil {
		return fmt.Errorf("notify: smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		cfg := &tls.Config{
			ServerName:         d.Host,
			InsecureSkipVerify: d.InsecureSkipVerify,
		}
		if err := c.StartTLS(cfg); err != nil {
			return fmt.Errorf("notify: starttls: %w", err)
		}
	}

	if d.User != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", d.User, d.Pass, d.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("notify: smtp auth: %w", err)
			}
		}
	}

	if err := c.Mail(d.From); err != nil {
		return fmt.Errorf("notify: mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("notify: rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("notify: data: %w", err)
	}
	if _, err := w.Write([]byte(msg.String())); err != nil {
		return fmt.Errorf("notify: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: close body: %w", err)
	}

	return c.Quit()
}
