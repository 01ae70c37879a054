package listeners

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadrius/mailpipe/dto"
	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/services/events"
)

type recordingProcessor struct {
	ids []string
}

func (p *recordingProcessor) Process(_ context.Context, id string) {
	p.ids = append(p.ids, id)
}

func newListener(t *testing.T) (*ProcessEmailListener, *recordingProcessor) {
	t.Helper()
	appLogger := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	appLogger.InitLogger()
	processor := &recordingProcessor{}
	return NewProcessEmailListener(appLogger, processor).(*ProcessEmailListener), processor
}

func processEvent(data any) dto.Event {
	return dto.Event{Event: dto.EventDetails{
		Id:         "evt-1",
		EntityId:   "emsg_1",
		EntityType: enum.EMAIL_MESSAGE,
		EventType:  events.GetEventType[dto.ProcessEmail](),
		Data:       data,
	}}
}

func TestProcessEmailListener_Routing(t *testing.T) {
	listener, _ := newListener(t)
	assert.Equal(t, "ProcessEmail", listener.GetEventType())
	assert.Equal(t, events.QueueProcessEmail, listener.GetQueueName())
}

func TestProcessEmailListener_RunsProcessor(t *testing.T) {
	listener, processor := newListener(t)

	// payloads arrive as generic maps after the JSON round trip
	err := listener.Handle(context.Background(), processEvent(map[string]any{"emailMessageId": "emsg_1"}))

	require.NoError(t, err)
	assert.Equal(t, []string{"emsg_1"}, processor.ids)
}

func TestProcessEmailListener_RejectsMalformedEvents(t *testing.T) {
	listener, processor := newListener(t)

	assert.Error(t, listener.Handle(context.Background(), "not an event"))
	assert.Error(t, listener.Handle(context.Background(), processEvent(nil)))
	assert.Error(t, listener.Handle(context.Background(), processEvent(map[string]any{"emailMessageId": ""})))

	wrongType := processEvent(map[string]any{"emailMessageId": "emsg_1"})
	wrongType.Event.EventType = "EmailReceived"
	assert.Error(t, listener.Handle(context.Background(), wrongType))

	assert.Empty(t, processor.ids)
}
