package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
)

// minutes of manual work one extracted message replaces
const minutesSavedPerMessage = 30

type DashboardStats struct {
	ActiveAutomations int64  `json:"activeAutomations"`
	ActiveProcesses   int64  `json:"activeProcesses"`
	EmailsToday       int64  `json:"emailsToday"`
	TimeSaved         string `json:"timeSaved"`
}

type DashboardHandler struct {
	log      logger.Logger
	rules    interfaces.AutomationRuleRepository
	messages interfaces.EmailMessageRepository
	now      func() time.Time
}

func NewDashboardHandler(log logger.Logger, rules interfaces.AutomationRuleRepository, messages interfaces.EmailMessageRepository) *DashboardHandler {
	return &DashboardHandler{log: log, rules: rules, messages: messages, now: utils.Now}
}

func (h *DashboardHandler) Stats() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DashboardHandler.Stats")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		activeAutomations, err := h.rules.CountActive(ctx)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		activeProcesses, err := h.messages.CountByStatus(ctx, enum.MessageStatusExtracted)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		startOfDay := h.now().UTC().Truncate(24 * time.Hour)
		emailsToday, err := h.messages.CountReceivedSince(ctx, startOfDay)
		if err != nil {
			abortWithError(c, span, err)
			return
		}

		c.JSON(http.StatusOK, DashboardStats{
			ActiveAutomations: activeAutomations,
			ActiveProcesses:   activeProcesses,
			EmailsToday:       emailsToday,
			TimeSaved:         fmt.Sprintf("%.1fh", float64(activeProcesses*minutesSavedPerMessage)/60),
		})
	}
}
