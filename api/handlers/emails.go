package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/enum"
	mperrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type EmailsHandler struct {
	log      logger.Logger
	messages interfaces.EmailMessageRepository
	queue    interfaces.ProcessQueue
}

func NewEmailsHandler(log logger.Logger, messages interfaces.EmailMessageRepository, queue interfaces.ProcessQueue) *EmailsHandler {
	return &EmailsHandler{log: log, messages: messages, queue: queue}
}

// List returns messages, newest first, optionally filtered by ?status= and
// searched by ?q= on subject and sender.
func (h *EmailsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailsHandler.List")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		status := enum.MessageStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
		if status != "" && !status.IsValid() {
			badRequest(c, span, errors.Errorf("unknown status %q", status))
			return
		}

		messages, err := h.messages.List(ctx, interfaces.EmailMessageFilter{Status: status, Query: c.Query("q")})
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, messages)
	}
}

func (h *EmailsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailsHandler.Get")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		message, err := h.messages.GetByID(ctx, c.Param("id"))
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		if message == nil {
			abortWithError(c, span, mperrors.ErrMessageNotFound)
			return
		}
		c.JSON(http.StatusOK, message)
	}
}

// Reprocess puts a message of any status back to PENDING and queues it again.
func (h *EmailsHandler) Reprocess() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "EmailsHandler.Reprocess")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		message, err := h.messages.RequeueForReprocessing(ctx, id)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		if message == nil {
			abortWithError(c, span, mperrors.ErrMessageNotFound)
			return
		}

		if err := h.queue.EnqueueProcessEmail(ctx, id); err != nil {
			tracing.TraceErr(span, err)
			h.log.Errorf("Failed to enqueue email %s for reprocessing: %v", id, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email reset to pending but could not be queued", "new_status": message.Status.Label()})
			return
		}

		h.log.Infof("Email %s queued for reprocessing (attempt %d)", id, message.ProcessingAttempts)
		c.JSON(http.StatusAccepted, gin.H{
			"detail":     "Email queued for reprocessing.",
			"new_status": message.Status.Label(),
		})
	}
}
