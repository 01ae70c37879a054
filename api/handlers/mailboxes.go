package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/cadrius/mailpipe/interfaces"
	mperrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
)

type MailboxesHandler struct {
	log       logger.Logger
	mailboxes interfaces.MailboxRepository
	scheduler interfaces.MailboxScheduler
}

func NewMailboxesHandler(log logger.Logger, mailboxes interfaces.MailboxRepository, scheduler interfaces.MailboxScheduler) *MailboxesHandler {
	return &MailboxesHandler{log: log, mailboxes: mailboxes, scheduler: scheduler}
}

type CreateMailboxRequest struct {
	Name                string  `json:"name" binding:"required"`
	ImapHost            string  `json:"imapHost" binding:"required"`
	ImapPort            int     `json:"imapPort" binding:"omitempty,min=1,max=65535"`
	ImapTLS             *bool   `json:"imapTls"`
	Username            string  `json:"username" binding:"required"`
	Password            string  `json:"password" binding:"required"`
	Folder              string  `json:"folder"`
	IsActive            *bool   `json:"isActive"`
	IntegrationConfigID *string `json:"integrationConfigId"`
	ExtractionProfileID *string `json:"extractionProfileId"`
}

func (r CreateMailboxRequest) toModel(userID string) *models.Mailbox {
	port := r.ImapPort
	if port == 0 {
		port = 993
	}
	return &models.Mailbox{
		UserID:              userID,
		Name:                r.Name,
		ImapHost:            r.ImapHost,
		ImapPort:            port,
		ImapTLS:             utils.GetOrDefault(r.ImapTLS, true),
		Username:            r.Username,
		Password:            r.Password,
		Folder:              utils.FirstNonEmpty(r.Folder, "INBOX"),
		IsActive:            utils.GetOrDefault(r.IsActive, true),
		IntegrationConfigID: r.IntegrationConfigID,
		ExtractionProfileID: r.ExtractionProfileID,
	}
}

func (h *MailboxesHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxesHandler.List")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		mailboxes, err := h.mailboxes.GetMailboxes(ctx)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, mailboxes)
	}
}

// Create stores the mailbox and schedules its recurring fetch.
func (h *MailboxesHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxesHandler.Create")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request CreateMailboxRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			badRequest(c, span, err)
			return
		}

		mailbox := request.toModel(utils.GetUserIdFromContext(ctx))
		if err := h.mailboxes.CreateMailbox(ctx, mailbox); err != nil {
			abortWithError(c, span, err)
			return
		}
		tracing.TagMailbox(span, mailbox.ID)

		if err := h.scheduler.ScheduleMailbox(mailbox); err != nil {
			// the mailbox exists; the periodic sync will pick it up
			tracing.TraceErr(span, err)
			h.log.Errorf("Failed to schedule mailbox %s: %v", mailbox.ID, err)
		}

		c.JSON(http.StatusCreated, mailbox)
	}
}

func (h *MailboxesHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxesHandler.Delete")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		tracing.TagMailbox(span, id)

		if err := h.mailboxes.DeleteMailbox(ctx, id); err != nil {
			abortWithError(c, span, err)
			return
		}
		h.scheduler.UnscheduleMailbox(id)

		c.JSON(http.StatusOK, gin.H{"status": "mailbox removed", "id": id})
	}
}

// Fetch runs one fetch right away and reports how many messages were stored.
func (h *MailboxesHandler) Fetch() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxesHandler.Fetch")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		tracing.TagMailbox(span, id)

		mailbox, err := h.mailboxes.GetMailbox(ctx, id)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		if mailbox == nil {
			abortWithError(c, span, mperrors.ErrMailboxNotFound)
			return
		}

		count, err := h.scheduler.FetchNow(ctx, id)
		if err != nil {
			abortWithError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"mailboxId": id, "newMessages": count})
	}
}
