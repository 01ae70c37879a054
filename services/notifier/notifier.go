package notifier

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/enum"
	mailpipeErrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type notifier struct {
	log       logger.Logger
	mailboxes interfaces.MailboxRepository
	configs   interfaces.IntegrationConfigRepository
	logs      interfaces.IntegrationLogRepository
	telegram  *telegramClient
	trello    *trelloClient
}

func NewNotifier(log logger.Logger, repositories *repository.Repositories, endpoints *config.IntegrationEndpoints) interfaces.Notifier {
	return &notifier{
		log:       log,
		mailboxes: repositories.MailboxRepository,
		configs:   repositories.IntegrationConfigRepository,
		logs:      repositories.IntegrationLogRepository,
		telegram:  newTelegramClient(endpoints.TelegramUrl),
		trello:    newTrelloClient(endpoints.TrelloUrl),
	}
}

// Notify sends text to the Telegram chat of the message's mailbox and returns
// the Telegram message id.
func (n *notifier) Notify(ctx context.Context, message *models.EmailMessage, text string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notifier.Notify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, message.ID)

	cfg, err := n.resolveConfig(ctx, message)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if !cfg.HasTelegram() {
		err := errors.Wrapf(mailpipeErrors.ErrTelegramCredentials, "integration config %s", cfg.Name)
		n.log.Errorf("Telegram credentials incomplete for config %s", cfg.Name)
		tracing.TraceErr(span, err)
		return "", err
	}

	entry := &models.IntegrationLog{
		EmailMessageID: message.ID,
		Service:        enum.IntegrationServiceTelegram,
		Status:         enum.IntegrationStatusPending,
		RequestData: models.JSONMap{
			"chat_id": cfg.TelegramChatID,
			"message": text,
		},
	}
	if err := n.logs.Create(ctx, entry); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to create integration log")
	}

	code, body, sendErr := n.telegram.SendMessage(ctx, cfg.TelegramBotToken, cfg.TelegramChatID, text, parseModeMarkdown)
	if sendErr != nil {
		n.markFailed(ctx, entry.ID, code, sendErr, nil)
		n.log.Errorf("Telegram notification failed for email %s (status %d): %v", message.ID, code, sendErr)
		tracing.TraceErr(span, sendErr)
		return "", sendErr
	}

	if err := n.logs.MarkSuccess(ctx, entry.ID, code, body); err != nil {
		n.log.Warnf("Failed to mark integration log %s as successful: %v", entry.ID, err)
	}
	n.log.Infof("Telegram notification sent for email %s", message.ID)

	return telegramMessageID(body), nil
}

// CreateTrackingCard creates a Trello card from the extracted document and
// returns the card url.
func (n *notifier) CreateTrackingCard(ctx context.Context, message *models.EmailMessage, document map[string]any) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notifier.CreateTrackingCard")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, message.ID)

	cfg, err := n.resolveConfig(ctx, message)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if !cfg.HasTrello() {
		err := errors.Wrapf(mailpipeErrors.ErrTrelloCredentials, "integration config %s", cfg.Name)
		n.log.Errorf("Trello credentials incomplete for config %s", cfg.Name)
		tracing.TraceErr(span, err)
		return "", err
	}

	card := buildCard(cfg.TrelloListID, message.Subject, document)
	requestData := models.JSONMap{}
	for key, value := range document {
		requestData[key] = value
	}
	requestData["trello_payload"] = card.loggable()

	entry := &models.IntegrationLog{
		EmailMessageID: message.ID,
		Service:        enum.IntegrationServiceTrello,
		Status:         enum.IntegrationStatusPending,
		RequestData:    requestData,
	}
	if err := n.logs.Create(ctx, entry); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to create integration log")
	}

	code, body, sendErr := n.trello.CreateCard(ctx, cfg.TrelloApiKey, cfg.TrelloToken, card)
	if sendErr != nil {
		n.markFailed(ctx, entry.ID, code, sendErr, card.loggable())
		n.log.Errorf("Trello card creation failed for email %s (status %d): %v", message.ID, code, sendErr)
		tracing.TraceErr(span, sendErr)
		return "", sendErr
	}

	if err := n.logs.MarkSuccess(ctx, entry.ID, code, body); err != nil {
		n.log.Warnf("Failed to mark integration log %s as successful: %v", entry.ID, err)
	}

	cardURL, _ := body["url"].(string)
	if cardURL == "" {
		cardURL, _ = body["id"].(string)
	}
	n.log.Infof("Trello card created for email %s: %s", message.ID, cardURL)
	return cardURL, nil
}

// resolveConfig loads the active integration config linked to the message's mailbox.
func (n *notifier) resolveConfig(ctx context.Context, message *models.EmailMessage) (*models.IntegrationConfig, error) {
	mailbox := message.Mailbox
	if mailbox == nil {
		var err error
		mailbox, err = n.mailboxes.GetMailbox(ctx, message.MailboxID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load mailbox")
		}
		if mailbox == nil {
			return nil, errors.Wrapf(mailpipeErrors.ErrMailboxNotFound, "mailbox %s", message.MailboxID)
		}
	}

	if mailbox.IntegrationConfigID == nil || *mailbox.IntegrationConfigID == "" {
		n.log.Errorf("Mailbox %s has no integration config", mailbox.ID)
		return nil, errors.Wrapf(mailpipeErrors.ErrIntegrationConfigMissing, "mailbox %s", mailbox.ID)
	}

	cfg, err := n.configs.GetByID(ctx, *mailbox.IntegrationConfigID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load integration config")
	}
	if cfg == nil || !cfg.IsActive {
		n.log.Errorf("Integration config %s of mailbox %s is missing or inactive", *mailbox.IntegrationConfigID, mailbox.ID)
		return nil, errors.Wrapf(mailpipeErrors.ErrIntegrationConfigMissing, "mailbox %s", mailbox.ID)
	}
	return cfg, nil
}

func (n *notifier) markFailed(ctx context.Context, logID string, code int, sendErr error, payload map[string]any) {
	body := models.JSONMap{"error": sendErr.Error()}
	if payload != nil {
		body["payload"] = payload
	}
	if err := n.logs.MarkFailed(ctx, logID, code, body); err != nil {
		n.log.Warnf("Failed to mark integration log %s as failed: %v", logID, err)
	}
}

func telegramMessageID(body map[string]any) string {
	result, ok := body["result"].(map[string]any)
	if !ok {
		return ""
	}
	switch id := result["message_id"].(type) {
	case float64:
		return fmt.Sprintf("%.0f", id)
	case string:
		return id
	}
	return ""
}
