package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultDialTimeout = 15 * time.Second

// SMTPOptions configure the outbound relay connection.
type SMTPOptions struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DialTimeout time.Duration
}

// SMTPTransport speaks plain SMTP with opportunistic STARTTLS and PLAIN
// authentication when the relay offers them.
type SMTPTransport struct {
	opts   SMTPOptions
	logger *zap.Logger
}

func NewSMTPTransport(opts SMTPOptions, logger *zap.Logger) *SMTPTransport {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	return &SMTPTransport{opts: opts, logger: logger}
}

// Send delivers one message. The context deadline bounds the whole SMTP
// conversation, not just the dial.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if t.opts.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	if msg.From == "" {
		return fmt.Errorf("smtp from address not configured")
	}
	if msg.To == "" {
		return fmt.Errorf("message has no recipient")
	}

	addr := net.JoinHostPort(t.opts.Host, strconv.Itoa(t.opts.Port))
	dialer := net.Dialer{Timeout: t.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.opts.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: t.opts.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if t.opts.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", t.opts.Username, t.opts.Password, t.opts.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("mail from %s: %w", msg.From, err)
	}
	for _, rcpt := range msg.Recipients() {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(msg, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		t.logger.Debug("smtp quit failed", zap.Error(err))
	}
	return nil
}

// buildMessage renders the RFC 5322 byte stream: headers, blank line, body.
func buildMessage(msg Message, now time.Time) []byte {
	var b strings.Builder
	writeHeader := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeHeader("From", msg.From)
	writeHeader("To", msg.To)
	if len(msg.CC) > 0 {
		writeHeader("Cc", strings.Join(msg.CC, ", "))
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", now.Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/plain; charset="UTF-8"`)
	writeHeader("Content-Transfer-Encoding", "8bit")
	if msg.ReadReceipt {
		writeHeader("Disposition-Notification-To", msg.From)
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
