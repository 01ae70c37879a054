package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/utils"
	"github.com/cadrius/mailpipe/services/extraction"
)

func TestRenderPrompt(t *testing.T) {
	now := time.Date(2024, 1, 2, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "Hoje é 2024-01-02; prazo a partir de 2024-01-02.",
		RenderPrompt("Hoje é {current_date}; prazo a partir de {current_date}.", now))
	assert.Equal(t, "no placeholder", RenderPrompt("no placeholder", now))
}

func TestFormatSummary_LegalProcessDefaults(t *testing.T) {
	rule := &models.AutomationRule{Name: "Intimações"}
	message := &models.EmailMessage{Subject: "Intimação"}
	document := &extraction.LegalProcess{
		DocumentType:    extraction.DocumentTypeLegalProcess,
		ConfidenceScore: utils.ToPtr(70),
		MovementType:    "Despacho",
	}

	text := FormatSummary(rule, message, document)

	assert.Contains(t, text, "(Rule: Intimações)")
	assert.Contains(t, text, "*Case:* `N/A`")
	assert.Contains(t, text, "_No summary._")
	assert.Contains(t, text, "*Deadline:* _Not identified_")
	assert.Contains(t, text, "`Manual review required.`")
}

func TestFormatSummary_Generic(t *testing.T) {
	rule := &models.AutomationRule{Name: "Chamados"}
	message := &models.EmailMessage{Subject: "Sistema fora do ar"}
	document := &extraction.SupportRequest{
		DocumentType:    extraction.DocumentTypeSupportRequest,
		ConfidenceScore: utils.ToPtr(88),
	}

	text := FormatSummary(rule, message, document)

	assert.Equal(t, "✅ *Extraction Completed (SUPPORT\\_REQUEST) - Rule: Chamados*\n\n"+
		"*Subject:* Sistema fora do ar\n"+
		"*AI Confidence:* 88%\n\n"+
		"Extracted data saved for further processing.", text)
}

func TestFormatSummary_EscapesMarkdownInValues(t *testing.T) {
	rule := &models.AutomationRule{Name: "fin_ops"}
	message := &models.EmailMessage{Subject: "Invoice_2024 *urgent* [draft] `x`"}

	generic := FormatSummary(rule, message, &extraction.SupportRequest{
		DocumentType:    extraction.DocumentTypeSupportRequest,
		ConfidenceScore: utils.ToPtr(50),
	})
	assert.Contains(t, generic, "*Subject:* Invoice\\_2024 \\*urgent\\* \\[draft] \\`x\\`\n")
	assert.Contains(t, generic, "Rule: fin\\_ops*")
	assert.NotContains(t, generic, "Invoice_2024")

	legal := FormatSummary(rule, message, &extraction.LegalProcess{
		DocumentType:      extraction.DocumentTypeLegalProcess,
		CaseNumber:        "12`34_5",
		MovementSummary:   "prazo_final",
		SuggestedNextStep: "use `peticionar`",
	})
	assert.Contains(t, legal, "*Case:* `12'34_5`")
	assert.Contains(t, legal, "_prazo\\_final_")
	assert.Contains(t, legal, "`use 'peticionar'`")
	assert.Contains(t, legal, "*E-mail Subject:* Invoice\\_2024")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "plain text", EscapeMarkdown("plain text"))
	assert.Equal(t, "a\\_b\\*c\\`d\\[e]", EscapeMarkdown("a_b*c`d[e]"))
}
