package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/dto"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/services/events"
)

type ProcessEmailListener struct {
	events.BaseEventListener
	processor interfaces.Processor
}

func NewProcessEmailListener(logger logger.Logger, processor interfaces.Processor) interfaces.EventListener {
	return &ProcessEmailListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.ProcessEmail](), // subscribed event
			events.QueueProcessEmail,                // listening on Direct queue
		),
		processor: processor,
	}
}

// Handle runs the pipeline for the message in the event. Pipeline failures are
// recorded on the message itself, so only malformed events are returned as errors.
func (l *ProcessEmailListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProcessEmailListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.ProcessEmail](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if request.EmailMessageID == "" {
		err := errors.New("emailMessageId is empty")
		tracing.TraceErr(span, err)
		return err
	}

	l.processor.Process(ctx, request.EmailMessageID)
	return nil
}
