package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
	"github.com/cadrius/mailpipe/services/extraction"
)

// SettingsHandler serves automation rules, extraction profiles and integration configs.
type SettingsHandler struct {
	log          logger.Logger
	repositories *repository.Repositories
}

func NewSettingsHandler(log logger.Logger, repositories *repository.Repositories) *SettingsHandler {
	return &SettingsHandler{log: log, repositories: repositories}
}

type CreateRuleRequest struct {
	MailboxID           string         `json:"mailboxId" binding:"required"`
	Name                string         `json:"name" binding:"required"`
	Priority            *int           `json:"priority"`
	IsActive            *bool          `json:"isActive"`
	SubjectContains     string         `json:"subjectContains"`
	SenderContains      string         `json:"senderContains"`
	ExtractionProfileID *string        `json:"extractionProfileId"`
	ActionConfig        models.JSONMap `json:"actionConfig"`
}

type CreateProfileRequest struct {
	Name                 string `json:"name" binding:"required"`
	SystemPromptTemplate string `json:"systemPromptTemplate" binding:"required"`
	SchemaName           string `json:"schemaName" binding:"required"`
}

type CreateIntegrationRequest struct {
	Name             string `json:"name" binding:"required"`
	TrelloApiKey     string `json:"trelloApiKey"`
	TrelloToken      string `json:"trelloToken"`
	TrelloListID     string `json:"trelloListId"`
	TelegramBotToken string `json:"telegramBotToken"`
	TelegramChatID   string `json:"telegramChatId"`
	IsActive         *bool  `json:"isActive"`
}

func (h *SettingsHandler) ListRules() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SettingsHandler.ListRules")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		rules, err := h.repositories.AutomationRuleRepository.List(ctx)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, rules)
	}
}

func (h *SettingsHandler) CreateRule() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SettingsHandler.CreateRule")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request CreateRuleRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequest(c, span, err)
			return
		}

		rule := &models.AutomationRule{
			UserID:              utils.GetUserIdFromContext(ctx),
			MailboxID:           request.MailboxID,
			Name:                request.Name,
			Priority:            utils.GetOrDefault(request.Priority, 10),
			IsActive:            utils.GetOrDefault(request.IsActive, true),
			SubjectContains:     request.SubjectContains,
			SenderContains:      request.SenderContains,
			ExtractionProfileID: request.ExtractionProfileID,
			ActionConfig:        request.ActionConfig,
		}
		if err := h.repositories.AutomationRuleRepository.Create(ctx, rule); err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, rule)
	}
}

func (h *SettingsHandler) ListProfiles() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SettingsHandler.ListProfiles")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		profiles, err := h.repositories.ExtractionProfileRepository.List(ctx)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, profiles)
	}
}

// CreateProfile rejects schema names outside the known set.
func (h *SettingsHandler) CreateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SettingsHandler.CreateProfile")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request CreateProfileRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequest(c, span, err)
			return
		}
		schema, err := extraction.LookupSchema(request.SchemaName)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "knownSchemas": extraction.KnownSchemas()})
			return
		}

		profile := &models.ExtractionProfile{
			UserID:               utils.GetUserIdFromContext(ctx),
			Name:                 request.Name,
			SystemPromptTemplate: request.SystemPromptTemplate,
			SchemaName:           string(schema),
		}
		if err := h.repositories.ExtractionProfileRepository.Create(ctx, profile); err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, profile)
	}
}

func (h *SettingsHandler) ListIntegrations() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SettingsHandler.ListIntegrations")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		configs, err := h.repositories.IntegrationConfigRepository.List(ctx)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, configs)
	}
}

func (h *SettingsHandler) CreateIntegration() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "SettingsHandler.CreateIntegration")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request CreateIntegrationRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequest(c, span, err)
			return
		}
		if (request.TelegramBotToken == "") != (request.TelegramChatID == "") {
			badRequest(c, span, errors.New("telegramBotToken and telegramChatId must be set together"))
			return
		}

		config := &models.IntegrationConfig{
			UserID:           utils.GetUserIdFromContext(ctx),
			Name:             request.Name,
			TrelloApiKey:     request.TrelloApiKey,
			TrelloToken:      request.TrelloToken,
			TrelloListID:     request.TrelloListID,
			TelegramBotToken: request.TelegramBotToken,
			TelegramChatID:   request.TelegramChatID,
			IsActive:         utils.GetOrDefault(request.IsActive, true),
		}
		if err := h.repositories.IntegrationConfigRepository.Create(ctx, config); err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, config)
	}
}
