package handlers

import (
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/repository"
)

type APIHandlers struct {
	Mailboxes *MailboxesHandler
	Emails    *EmailsHandler
	Settings  *SettingsHandler
	Dashboard *DashboardHandler
}

func InitHandlers(log logger.Logger, r *repository.Repositories, scheduler interfaces.MailboxScheduler, queue interfaces.ProcessQueue) *APIHandlers {
	return &APIHandlers{
		Mailboxes: NewMailboxesHandler(log, r.MailboxRepository, scheduler),
		Emails:    NewEmailsHandler(log, r.EmailMessageRepository, queue),
		Settings:  NewSettingsHandler(log, r),
		Dashboard: NewDashboardHandler(log, r.AutomationRuleRepository, r.EmailMessageRepository),
	}
}
