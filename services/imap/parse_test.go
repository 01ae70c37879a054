package imap

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessage_PrefersPlainText(t *testing.T) {
	raw := crlf(`From: "Ana Souza" <Ana@Example.com>
To: ops@example.com
Subject: Intimação processo 123
Date: Mon, 02 Jun 2025 10:15:00 -0300
Message-ID: <abc123@mail.example.com>
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>html version</p>
--b1
Content-Type: text/plain; charset=utf-8

plain version
--b1--
`)

	parsed, err := parseMessage(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, "<abc123@mail.example.com>", parsed.MessageID)
	assert.Equal(t, "Intimação processo 123", parsed.Subject)
	assert.Equal(t, "plain version", parsed.BodyText)
	assert.Equal(t, time.Date(2025, 6, 2, 13, 15, 0, 0, time.UTC), parsed.ReceivedAt)
	assert.True(t, strings.HasPrefix(parsed.Sender, "Ana Souza <"))
	assert.Contains(t, strings.ToLower(parsed.Sender), "ana@example.com")
}

func TestParseMessage_HTMLOnlyBodyIsConvertedToText(t *testing.T) {
	raw := crlf(`From: alerts@example.com
Subject: Alert
Content-Type: text/html; charset=utf-8

<html><head><style>p { color: red; }</style></head><body><script>alert(1)</script><p>Server down</p><p>Since 10:00</p></body></html>
`)

	parsed, err := parseMessage(raw, nil)
	require.NoError(t, err)

	assert.Contains(t, parsed.BodyText, "Server down")
	assert.Contains(t, parsed.BodyText, "Since 10:00")
	assert.NotContains(t, parsed.BodyText, "alert(1)")
	assert.NotContains(t, parsed.BodyText, "color")
}

func TestParseMessage_DecodesEncodedSubject(t *testing.T) {
	raw := crlf(`From: finance@example.com
Subject: =?UTF-8?B?UmVsYXTDs3JpbyBtZW5zYWw=?=
Content-Type: text/plain; charset=utf-8

body
`)

	parsed, err := parseMessage(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "Relatório mensal", parsed.Subject)
	assert.Equal(t, "finance@example.com", parsed.Sender)
}

func TestParseMessage_Defaults(t *testing.T) {
	raw := crlf(`From: someone@example.com
Content-Type: text/plain

hello
`)

	before := time.Now().UTC().Add(-time.Second)
	parsed, err := parseMessage(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, defaultSubject, parsed.Subject)
	assert.Empty(t, parsed.MessageID)
	assert.True(t, parsed.ReceivedAt.After(before))
	assert.Equal(t, "hello", parsed.BodyText)
}

func TestParseMessage_EnvelopeFillsMissingHeaders(t *testing.T) {
	raw := crlf(`Content-Type: text/plain

hello
`)
	date := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	envelope := &imap.Envelope{
		Subject:   "From envelope",
		MessageId: "<env@example.com>",
		Date:      date,
		From:      []*imap.Address{{PersonalName: "Bob", MailboxName: "bob", HostName: "example.com"}},
	}

	parsed, err := parseMessage(raw, envelope)
	require.NoError(t, err)

	assert.Equal(t, "From envelope", parsed.Subject)
	assert.Equal(t, "<env@example.com>", parsed.MessageID)
	assert.Equal(t, date, parsed.ReceivedAt)
	assert.Equal(t, "Bob <bob@example.com>", parsed.Sender)
}

func TestParseMessage_UnreadableDateHeaderFallsBackToEnvelope(t *testing.T) {
	raw := crlf(`From: someone@example.com
Subject: Prazo
Date: sometime last week
Content-Type: text/plain

hello
`)
	date := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)

	parsed, err := parseMessage(raw, &imap.Envelope{Date: date})
	require.NoError(t, err)
	assert.Equal(t, date, parsed.ReceivedAt)

	raw = crlf(`From: someone@example.com
Date: 2 Jun 2025 10:15:00 GMT
Content-Type: text/plain

hello
`)
	parsed, err = parseMessage(raw, &imap.Envelope{Date: date})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC), parsed.ReceivedAt)
}

func TestParseMessage_AttachmentIsNotBody(t *testing.T) {
	raw := crlf(`From: someone@example.com
Subject: Report
Content-Type: multipart/mixed; boundary="b2"

--b2
Content-Type: text/csv
Content-Disposition: attachment; filename="report.csv"

a,b,c
--b2--
`)

	parsed, err := parseMessage(raw, nil)
	require.NoError(t, err)
	assert.Empty(t, parsed.BodyText)
}
