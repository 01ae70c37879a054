package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/cadrius/mailpipe/api/handlers"
	"github.com/cadrius/mailpipe/api/middleware"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/tracing"
)

const (
	APIKeyHeader = "X-MAILPIPE-API-KEY"
	AppSource    = "mailpipe"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, log logger.Logger, repos *repository.Repositories, scheduler interfaces.MailboxScheduler, queue interfaces.ProcessQueue, apikey string) {
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	apiHandlers := handlers.InitHandlers(log, repos, scheduler, queue)

	// Health check (no custom context needed)
	r.GET("/health", handlers.HealthCheck(repos))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  APIKeyHeader,
		ValidAPIKey: apikey,
	})

	// API group with version and custom context
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.UserIdMiddleware())
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		mailboxes := api.Group("/mailboxes")
		{
			mailboxes.GET("", apiHandlers.Mailboxes.List())
			mailboxes.POST("", apiHandlers.Mailboxes.Create())
			mailboxes.DELETE("/:id", apiHandlers.Mailboxes.Delete())
			mailboxes.POST("/:id/fetch", apiHandlers.Mailboxes.Fetch())
		}

		emails := api.Group("/emails")
		{
			emails.GET("", apiHandlers.Emails.List())
			emails.GET("/:id", apiHandlers.Emails.Get())
			emails.POST("/:id/reprocess", apiHandlers.Emails.Reprocess())
		}

		rules := api.Group("/rules")
		{
			rules.GET("", apiHandlers.Settings.ListRules())
			rules.POST("", apiHandlers.Settings.CreateRule())
		}

		profiles := api.Group("/profiles")
		{
			profiles.GET("", apiHandlers.Settings.ListProfiles())
			profiles.POST("", apiHandlers.Settings.CreateProfile())
		}

		api.GET("/dashboard/stats", apiHandlers.Dashboard.Stats())

		integrations := api.Group("/integrations")
		{
			integrations.GET("", apiHandlers.Settings.ListIntegrations())
			integrations.POST("", apiHandlers.Settings.CreateIntegration())
		}
	}
}
