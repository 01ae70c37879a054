package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
	"github.com/cadrius/mailpipe/services/extraction"
	"github.com/cadrius/mailpipe/services/rules"
)

// Extractor is satisfied by *extraction.Engine.
type Extractor interface {
	Extract(ctx context.Context, text string, schema extraction.SchemaName, promptTemplate string) (extraction.Document, bool)
}

type processor struct {
	log       logger.Logger
	messages  interfaces.EmailMessageRepository
	rules     interfaces.AutomationRuleRepository
	extractor Extractor
	notifier  interfaces.Notifier
	alerter   interfaces.OperatorAlerter
	now       func() time.Time
}

func NewProcessor(log logger.Logger, repositories *repository.Repositories, extractor Extractor, notifier interfaces.Notifier, alerter interfaces.OperatorAlerter) interfaces.Processor {
	return &processor{
		log:       log,
		messages:  repositories.EmailMessageRepository,
		rules:     repositories.AutomationRuleRepository,
		extractor: extractor,
		notifier:  notifier,
		alerter:   alerter,
		now:       utils.Now,
	}
}

// Process runs one message through rule matching, extraction and notification.
// Nothing escapes: every failure ends as a status plus an alert.
func (p *processor) Process(ctx context.Context, emailMessageID string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processor.Process")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, emailMessageID)

	var message *models.EmailMessage
	defer func() {
		if r := recover(); r != nil {
			span.SetTag("error", true)
			p.fail(ctx, emailMessageID, message, errors.Errorf("panic: %v", r))
		}
	}()

	claimed, err := p.messages.ClaimForProcessing(ctx, emailMessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		p.log.Errorf("Failed to claim email %s: %v", emailMessageID, err)
		p.alerter.Alert(ctx, fmt.Sprintf("⚠️ Critical pipeline error for email ID %s. Details: %v", emailMessageID, err))
		return
	}

	message, err = p.messages.GetByID(ctx, emailMessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		p.fail(ctx, emailMessageID, nil, err)
		return
	}
	if message == nil {
		p.log.Errorf("EmailMessage %s not found", emailMessageID)
		return
	}
	if !claimed {
		// another worker has it, or it is not pending
		p.log.Infof("EmailMessage %s is %s, skipping", emailMessageID, message.Status)
		span.SetTag("skipped", true)
		return
	}

	if err := p.run(ctx, message); err != nil {
		tracing.TraceErr(span, err)
		p.fail(ctx, emailMessageID, message, err)
	}
}

func (p *processor) run(ctx context.Context, message *models.EmailMessage) error {
	active, err := p.rules.GetActiveByMailbox(ctx, message.MailboxID)
	if err != nil {
		return errors.Wrap(err, "failed to load automation rules")
	}

	rule := rules.Match(message, active)
	if rule == nil {
		p.log.Infof("No automation rule matched email ID %s", message.ID)
		return p.messages.UpdateStatus(ctx, message.ID, enum.MessageStatusPending)
	}
	p.log.Infof("Automation rule matched: %s", rule.Name)

	profile := rule.ExtractionProfile
	if profile == nil {
		text := fmt.Sprintf("Rule '%s' has no extraction profile. Requires review.", rule.Name)
		p.log.Error(text)
		if err := p.messages.UpdateStatus(ctx, message.ID, enum.MessageStatusRequiresReview); err != nil {
			return err
		}
		p.alert(ctx, message, text)
		return nil
	}

	schema, err := extraction.LookupSchema(profile.SchemaName)
	if err != nil {
		text := fmt.Sprintf("Schema '%s' not found in the known schemas. Critical failure.", profile.SchemaName)
		p.log.Error(text)
		if err := p.messages.UpdateStatus(ctx, message.ID, enum.MessageStatusFailed); err != nil {
			return err
		}
		p.alert(ctx, message, text)
		return nil
	}

	p.log.Infof("Starting AI extraction for email ID %s using profile %s", message.ID, profile.Name)
	prompt := RenderPrompt(profile.SystemPromptTemplate, p.now())
	document, ok := p.extractor.Extract(ctx, message.BodyText, schema, prompt)
	if !ok {
		if err := p.messages.UpdateStatus(ctx, message.ID, enum.MessageStatusRequiresReview); err != nil {
			return err
		}
		p.alert(ctx, message, fmt.Sprintf("Review required for email ID %s. AI extraction failed for profile '%s'.", message.ID, profile.Name))
		return nil
	}

	data := document.ToMap()
	if err := p.messages.SaveExtractedData(ctx, message.ID, data); err != nil {
		return errors.Wrap(err, "failed to save extracted data")
	}
	message.ExtractedData = data
	message.Status = enum.MessageStatusExtracted

	p.log.Infof("Sending notification for email ID %s", message.ID)
	if _, err := p.notifier.Notify(ctx, message, FormatSummary(rule, message, document)); err != nil {
		return errors.Wrap(err, "notification failed")
	}

	if rule.WantsTrackingCard() {
		if _, err := p.notifier.CreateTrackingCard(ctx, message, data); err != nil {
			return errors.Wrap(err, "tracking card creation failed")
		}
	}

	return p.messages.MarkIntegrated(ctx, message.ID, p.now())
}

// fail marks the message FAILED and tells someone. It never panics out.
func (p *processor) fail(ctx context.Context, emailMessageID string, message *models.EmailMessage, cause error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("Double failure while handling email %s: %v", emailMessageID, r)
		}
	}()

	p.log.Errorf("Critical error processing email %s: %v", emailMessageID, cause)
	if err := p.messages.UpdateStatus(ctx, emailMessageID, enum.MessageStatusFailed); err != nil {
		p.log.Errorf("Failed to mark email %s as FAILED: %v", emailMessageID, err)
	}

	text := fmt.Sprintf("⚠️ Critical pipeline error for email ID %s. Details: %v", emailMessageID, cause)
	if message == nil {
		p.alerter.Alert(ctx, text)
		return
	}
	p.alert(ctx, message, text)
}

// alert goes to the mailbox's chat first and to the operators when that fails.
// The operator channel is plain text and gets the unescaped version.
func (p *processor) alert(ctx context.Context, message *models.EmailMessage, text string) {
	if _, err := p.notifier.Notify(ctx, message, EscapeMarkdown(text)); err != nil {
		p.log.Warnf("Could not notify mailbox chat for email %s: %v", message.ID, err)
		p.alerter.Alert(ctx, text)
	}
}
