package processor

import (
	"fmt"
	"strings"
	"time"

	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/utils"
	"github.com/cadrius/mailpipe/services/extraction"
)

const currentDateToken = "{current_date}"

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown makes a value safe to interpolate into Telegram Markdown text.
func EscapeMarkdown(value string) string {
	return markdownEscaper.Replace(value)
}

// codeSpan content is not parsed, only a backtick can end it early.
func codeSpan(value string) string {
	return "`" + strings.ReplaceAll(value, "`", "'") + "`"
}

// RenderPrompt substitutes the current date into a profile template.
func RenderPrompt(template string, now time.Time) string {
	return strings.ReplaceAll(template, currentDateToken, now.Format(utils.DateLayout))
}

// FormatSummary renders the chat message for an extracted document.
func FormatSummary(rule *models.AutomationRule, message *models.EmailMessage, document extraction.Document) string {
	if legal, ok := document.(*extraction.LegalProcess); ok {
		return formatLegalProcess(rule, message, legal)
	}
	return formatGeneric(rule, message, document)
}

func formatLegalProcess(rule *models.AutomationRule, message *models.EmailMessage, legal *extraction.LegalProcess) string {
	deadline := "_Not identified_"
	if legal.Deadline != nil {
		deadline = fmt.Sprintf("*%s*", legal.Deadline.String())
	}

	return fmt.Sprintf(
		"⚖️ *New Legal Process Movement (Rule: %s)*\n\n"+
			"*Case:* %s\n"+
			"*E-mail Subject:* %s\n\n"+
			"*AI Summary:*\n_%s_\n\n"+
			"*Deadline:* %s\n\n"+
			"*➡️ Suggested Next Step:*\n%s",
		EscapeMarkdown(rule.Name),
		codeSpan(withDefault(legal.CaseNumber, "N/A")),
		EscapeMarkdown(message.Subject),
		EscapeMarkdown(withDefault(legal.MovementSummary, "No summary.")),
		deadline,
		codeSpan(withDefault(legal.SuggestedNextStep, "Manual review required.")),
	)
}

func formatGeneric(rule *models.AutomationRule, message *models.EmailMessage, document extraction.Document) string {
	confidence := "N/A"
	if document.ToMap()["confidence_score"] != nil {
		confidence = fmt.Sprintf("%d", document.Confidence())
	}

	return fmt.Sprintf(
		"✅ *Extraction Completed (%s) - Rule: %s*\n\n"+
			"*Subject:* %s\n"+
			"*AI Confidence:* %s%%\n\n"+
			"Extracted data saved for further processing.",
		EscapeMarkdown(withDefault(document.Type(), "Extracted Data")),
		EscapeMarkdown(rule.Name),
		EscapeMarkdown(message.Subject),
		confidence,
	)
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
