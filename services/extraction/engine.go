package extraction

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/dto"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
)

const MaxAttempts = 2

const (
	systemPromptTemplate = "You are a highly efficient data extractor. Your only task is to analyse the supplied text " +
		"and return the data strictly as JSON, conforming to the schema below. " +
		"If a field cannot be filled, use null or a reasonable default value.\n\nJSON SCHEMA: %s"
	userPromptTemplate  = "%s\n\nINPUT TEXT:\n---\n%s"
	invalidJSONSuffix   = "\nThe previous output was not valid JSON. Fix it and return ONLY the JSON."
	invalidSchemaSuffix = "\nFix the schema errors in your JSON:\nThe returned JSON failed validation. Errors:\n%s"
)

// Engine turns free text into a validated Document through the AI service.
type Engine struct {
	log logger.Logger
	ai  interfaces.AIService
}

func NewEngine(log logger.Logger, ai interfaces.AIService) *Engine {
	return &Engine{log: log, ai: ai}
}

// Extract returns false when the model never produced a valid document within
// MaxAttempts, or when the AI service itself failed.
func (e *Engine) Extract(ctx context.Context, text string, schema SchemaName, promptTemplate string) (Document, bool) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Engine.Extract")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("schema", string(schema))

	description, err := Describe(schema)
	if err != nil {
		tracing.TraceErr(span, err)
		e.log.Errorf("Cannot describe schema %s: %v", schema, err)
		return nil, false
	}

	request := dto.CompletionRequest{
		System:   fmt.Sprintf(systemPromptTemplate, description),
		User:     fmt.Sprintf(userPromptTemplate, promptTemplate, text),
		JSONMode: true,
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		e.log.Infof("Attempt %d: calling AI completion for schema %s", attempt, schema)

		raw, err := e.ai.Complete(ctx, request)
		if err != nil {
			// transport and provider errors are not retried
			tracing.TraceErr(span, err)
			e.log.Errorf("AI completion failed: %v", err)
			break
		}

		document, err := Decode(schema, raw)
		if err == nil {
			span.SetTag("attempts", attempt)
			return document, true
		}

		var parseErr *ParseError
		var validationErr *ValidationError
		switch {
		case errors.As(err, &parseErr):
			e.log.Warnf("Attempt %d: AI response is not valid JSON: %v", attempt, parseErr)
			request.User += invalidJSONSuffix
		case errors.As(err, &validationErr):
			e.log.Warnf("Attempt %d: AI response failed validation: %v", attempt, validationErr)
			request.User += fmt.Sprintf(invalidSchemaSuffix, validationErr.Error())
		default:
			tracing.TraceErr(span, err)
			e.log.Errorf("Attempt %d: unexpected decode error: %v", attempt, err)
			return nil, false
		}
	}

	e.log.Errorf("Extraction failed for schema %s, returning nothing", schema)
	span.SetTag("extracted", false)
	return nil, false
}
