package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/dto"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
)

const defaultTimeout = 60 * time.Second

var ErrEmptyCompletion = errors.New("completion returned no choices")

type aiService struct {
	cfg    *config.AIConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

func NewAIService(log logger.Logger, cfg *config.AIConfig) interfaces.AIService {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &aiService{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
	}
}

func (s *aiService) Complete(ctx context.Context, request dto.CompletionRequest) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.Complete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentExternalApi(span)
	span.SetTag("model", s.cfg.Model)

	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.complete(ctx, span, request)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return result.(string), nil
}

func (s *aiService) complete(ctx context.Context, span opentracing.Span, request dto.CompletionRequest) (string, error) {
	payload, err := json.Marshal(dto.NewChatCompletionRequest(s.cfg.Model, request))
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal payload")
	}

	url := strings.TrimSuffix(s.cfg.Url, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.ApiKey)
	req = tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
	}

	var response dto.ChatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	span.SetTag("response.length", len(response.Choices[0].Message.Content))
	return response.Choices[0].Message.Content, nil
}
