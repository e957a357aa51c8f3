package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientsDeduplicates(t *testing.T) {
	msg := Message{
		To: "amy@example.com",
		CC: []string{"it@example.com", "amy@example.com", "it@example.com", ""},
	}
	assert.Equal(t, []string{"amy@example.com", "it@example.com"}, msg.Recipients())
}

func TestBuildMessageHeaders(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	msg := Message{
		From:    "it@example.com",
		To:      "amy@example.com",
		CC:      []string{"manager@example.com"},
		Subject: "Password expires in 7 days",
		Body:    "Hi Amy,\nplease change your password.",
	}

	raw := string(buildMessage(msg, now))
	parts := strings.SplitN(raw, "\r\n\r\n", 2)
	require.Len(t, parts, 2)

	assert.Contains(t, parts[0], "From: it@example.com\r\n")
	assert.Contains(t, parts[0], "To: amy@example.com\r\n")
	assert.Contains(t, parts[0], "Cc: manager@example.com\r\n")
	assert.Contains(t, parts[0], "Subject: Password expires in 7 days\r\n")
	assert.Contains(t, parts[0], "Date: Fri, 15 Mar 2024 09:30:00 +0000\r\n")
	assert.Contains(t, parts[0], `Content-Type: text/plain; charset="UTF-8"`)
	assert.NotContains(t, parts[0], "Disposition-Notification-To")

	assert.Equal(t, "Hi Amy,\r\nplease change your password.", parts[1])
}

func TestBuildMessageReadReceipt(t *testing.T) {
	msg := Message{
		From:        "it@example.com",
		To:          "amy@example.com",
		Subject:     "expiry",
		Body:        "body",
		ReadReceipt: true,
	}

	raw := string(buildMessage(msg, time.Now()))
	assert.Contains(t, raw, "Disposition-Notification-To: it@example.com\r\n")
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	msg := Message{From: "a@b.c", To: "d@e.f", Subject: "Passwort läuft ab", Body: "x"}

	raw := string(buildMessage(msg, time.Now()))
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
}
