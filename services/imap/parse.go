package imap

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/internal/utils"
)

const defaultSubject = "(no subject)"

// parsedMessage is a fetched message reduced to the fields stored on EmailMessage.
type parsedMessage struct {
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt time.Time
	BodyText   string
}

// parseMessage decodes the raw RFC 5322 bytes. The IMAP envelope, when present,
// fills headers the raw message is missing.
func parseMessage(raw []byte, envelope *imap.Envelope) (*parsedMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	parsed := &parsedMessage{
		MessageID: strings.TrimSpace(env.GetHeader("Message-Id")),
		Subject:   strings.TrimSpace(env.GetHeader("Subject")),
		Sender:    parseSender(env),
		BodyText:  strings.TrimSpace(selectBody(env)),
	}

	if date, err := env.Date(); err == nil {
		parsed.ReceivedAt = date.UTC()
	}

	if envelope != nil {
		if parsed.MessageID == "" {
			parsed.MessageID = strings.TrimSpace(envelope.MessageId)
		}
		if parsed.Subject == "" {
			parsed.Subject = strings.TrimSpace(envelope.Subject)
		}
		if parsed.Sender == "" && len(envelope.From) > 0 {
			parsed.Sender = formatSender(envelope.From[0].PersonalName, envelope.From[0].Address())
		}
		if parsed.ReceivedAt.IsZero() && !envelope.Date.IsZero() {
			parsed.ReceivedAt = envelope.Date.UTC()
		}
	}

	if parsed.Subject == "" {
		parsed.Subject = defaultSubject
	}
	if parsed.ReceivedAt.IsZero() {
		parsed.ReceivedAt = utils.Now()
	}

	return parsed, nil
}

func parseSender(env *enmime.Envelope) string {
	addresses, err := env.AddressList("From")
	if err != nil || len(addresses) == 0 {
		// keep whatever the header says, decoded
		return strings.TrimSpace(env.GetHeader("From"))
	}
	return formatSender(addresses[0].Name, addresses[0].Address)
}

func formatSender(name, address string) string {
	syntaxValidation := mailvalidate.ValidateEmailSyntax(address)
	if syntaxValidation.IsValid {
		address = syntaxValidation.CleanEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

// selectBody prefers an inline text/plain part, then the first text/* part.
func selectBody(env *enmime.Envelope) string {
	if env.Root == nil {
		return env.Text
	}

	plain := env.Root.DepthMatchFirst(func(p *enmime.Part) bool {
		return isInlineLeaf(p) && contentType(p) == "text/plain"
	})
	if plain != nil {
		return string(plain.Content)
	}

	textual := env.Root.DepthMatchFirst(func(p *enmime.Part) bool {
		return isInlineLeaf(p) && strings.HasPrefix(contentType(p), "text/")
	})
	if textual == nil {
		return ""
	}
	if contentType(textual) == "text/html" {
		return htmlToText(string(textual.Content))
	}
	return string(textual.Content)
}

func isInlineLeaf(p *enmime.Part) bool {
	return p.FirstChild == nil && !strings.EqualFold(p.Disposition, "attachment")
}

func contentType(p *enmime.Part) string {
	if p.ContentType == "" {
		return "text/plain"
	}
	return strings.ToLower(p.ContentType)
}

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4").AfterHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
