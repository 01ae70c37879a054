package notifier

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type operatorAlerter struct {
	log      logger.Logger
	cfg      *config.OperatorConfig
	telegram *telegramClient
}

// NewOperatorAlerter sends alerts to the operators' Telegram chat. Without a
// configured bot the alert is only logged.
func NewOperatorAlerter(log logger.Logger, cfg *config.OperatorConfig, endpoints *config.IntegrationEndpoints) interfaces.OperatorAlerter {
	return &operatorAlerter{
		log:      log,
		cfg:      cfg,
		telegram: newTelegramClient(endpoints.TelegramUrl),
	}
}

func (a *operatorAlerter) Alert(ctx context.Context, text string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "operatorAlerter.Alert")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if a.cfg == nil || a.cfg.TelegramBotToken == "" || a.cfg.TelegramChatID == "" {
		a.log.Warnf("Operator alert (no channel configured): %s", text)
		return
	}

	// plain text: alerts carry ids and errors that break Markdown parsing
	if _, _, err := a.telegram.SendMessage(ctx, a.cfg.TelegramBotToken, a.cfg.TelegramChatID, text, ""); err != nil {
		tracing.TraceErr(span, err)
		a.log.Errorf("Failed to deliver operator alert %q: %v", text, err)
	}
}
