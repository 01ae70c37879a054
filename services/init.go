package services

import (
	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/services/ai"
	"github.com/cadrius/mailpipe/services/dispatch"
	"github.com/cadrius/mailpipe/services/events"
	"github.com/cadrius/mailpipe/services/extraction"
	"github.com/cadrius/mailpipe/services/imap"
	"github.com/cadrius/mailpipe/services/notifier"
	"github.com/cadrius/mailpipe/services/processor"
)

type Services struct {
	// EventsService is nil when no broker is configured; WorkerPool is nil otherwise.
	EventsService *events.EventsService
	WorkerPool    *dispatch.WorkerPool

	AIService        interfaces.AIService
	ExtractionEngine *extraction.Engine
	Notifier         interfaces.Notifier
	OperatorAlerter  interfaces.OperatorAlerter
	Processor        interfaces.Processor
	ProcessQueue     interfaces.ProcessQueue
	Fetcher          interfaces.Fetcher
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	s := &Services{}

	s.OperatorAlerter = notifier.NewOperatorAlerter(log, cfg.OperatorConfig, cfg.IntegrationEndpoints)
	s.Notifier = notifier.NewNotifier(log, repos, cfg.IntegrationEndpoints)
	s.AIService = ai.NewAIService(log, cfg.AIConfig)
	s.ExtractionEngine = extraction.NewEngine(log, s.AIService)
	s.Processor = processor.NewProcessor(log, repos, s.ExtractionEngine, s.Notifier, s.OperatorAlerter)

	if cfg.AppConfig.RabbitMQURL != "" {
		// events
		publisherConfig := events.DefaultPublisherConfig()

		subscriberConfig := &events.SubscriberConfig{
			MaxRetries:          events.DefaultMaxRetries,
			Prefetch:            cfg.AppConfig.WorkerCount,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
		}

		eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, publisherConfig, subscriberConfig)
		if err != nil {
			return nil, err
		}
		s.EventsService = eventsService
		s.ProcessQueue = eventsService.Publisher
	} else {
		log.Info("RABBITMQ_URL not set, processing messages in-process")
		s.WorkerPool = dispatch.NewWorkerPool(log, s.Processor, cfg.AppConfig.WorkerCount)
		s.ProcessQueue = s.WorkerPool
	}

	s.Fetcher = imap.NewFetcher(log, repos, s.ProcessQueue, s.OperatorAlerter, cfg.IMAPOverrideConfig)

	return s, nil
}

// Close releases the queue side; in-process workers drain what is already queued.
func (s *Services) Close() error {
	if s.WorkerPool != nil {
		s.WorkerPool.Stop()
	}
	if s.EventsService != nil {
		return s.EventsService.Close()
	}
	return nil
}
