package extraction

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadrius/mailpipe/dto"
	"github.com/cadrius/mailpipe/internal/logger"
)

const validServiceOrder = `{
	"document_type": "SERVICE_ORDER",
	"confidence_score": 95,
	"customer_name": "Acme LTDA",
	"service_description": "Install the new module",
	"priority": "HIGH",
	"target_sla_days": 7,
	"delivery_date": null,
	"contact_phone": "9999-8888"
}`

type scriptedAI struct {
	responses []string
	err       error
	requests  []dto.CompletionRequest
}

func (s *scriptedAI) Complete(_ context.Context, request dto.CompletionRequest) (string, error) {
	s.requests = append(s.requests, request)
	if s.err != nil {
		return "", s.err
	}
	if len(s.requests) > len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[len(s.requests)-1], nil
}

func testLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	appLogger.InitLogger()
	return appLogger
}

func TestExtract_FirstValidResponseWins(t *testing.T) {
	ai := &scriptedAI{responses: []string{validServiceOrder}}
	engine := NewEngine(testLogger(), ai)

	document, ok := engine.Extract(context.Background(), "email body", SchemaServiceOrder, "Extract the order")

	require.True(t, ok)
	require.Len(t, ai.requests, 1)
	order, isOrder := document.(*ServiceOrder)
	require.True(t, isOrder)
	assert.Equal(t, "Acme LTDA", order.CustomerName)
	assert.Equal(t, 95, document.Confidence())
	assert.True(t, ai.requests[0].JSONMode)
	assert.Contains(t, ai.requests[0].System, "customer_name")
	assert.Equal(t, "Extract the order\n\nINPUT TEXT:\n---\nemail body", ai.requests[0].User)
}

func TestExtract_RepairsInvalidStructureWithinBudget(t *testing.T) {
	ai := &scriptedAI{responses: []string{`{"document_type": "SERVICE_ORDER", "confidence_score": 150}`, validServiceOrder}}
	engine := NewEngine(testLogger(), ai)

	document, ok := engine.Extract(context.Background(), "body", SchemaServiceOrder, "prompt")

	require.True(t, ok)
	assert.NotNil(t, document)
	require.Len(t, ai.requests, 2)
	assert.Contains(t, ai.requests[1].User, "failed validation")
	assert.Contains(t, ai.requests[1].User, "confidence_score")
	assert.Contains(t, ai.requests[1].User, "customer_name: field required")
}

func TestExtract_AlwaysInvalidGivesUpAfterBudget(t *testing.T) {
	ai := &scriptedAI{responses: []string{"not json at all"}}
	engine := NewEngine(testLogger(), ai)

	document, ok := engine.Extract(context.Background(), "body", SchemaServiceOrder, "prompt")

	assert.False(t, ok)
	assert.Nil(t, document)
	require.Len(t, ai.requests, MaxAttempts)
	assert.Contains(t, ai.requests[1].User, "not valid JSON")
	assert.Equal(t, 1, strings.Count(ai.requests[1].User, "not valid JSON"))
}

func TestExtract_ServiceErrorIsNotRetried(t *testing.T) {
	ai := &scriptedAI{err: errors.New("503 from provider")}
	engine := NewEngine(testLogger(), ai)

	document, ok := engine.Extract(context.Background(), "body", SchemaLegalProcess, "prompt")

	assert.False(t, ok)
	assert.Nil(t, document)
	assert.Len(t, ai.requests, 1)
}
