package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrUserIdMissing     = errors.New("user id is missing")
	ErrConnectionTimeout = errors.New("connection timeout")

	// mailbox errors
	ErrMailboxNotFound   = errors.New("mailbox not found")
	ErrMailboxIncomplete = errors.New("mailbox connection settings incomplete")
	ErrMailboxExists     = errors.New("mailbox already exists")
	ErrMailboxInUse      = errors.New("mailbox still has messages")
	ErrFetchInProgress   = errors.New("mailbox fetch already in progress")

	// message errors
	ErrMessageNotFound  = errors.New("email message not found")
	ErrDuplicateMessage = errors.New("email message already ingested")

	// integration errors
	ErrIntegrationConfigMissing = errors.New("integration config missing or inactive")
	ErrTelegramCredentials      = errors.New("telegram credentials incomplete")
	ErrTrelloCredentials        = errors.New("trello credentials incomplete")

	// extraction errors
	ErrUnknownSchema = errors.New("unknown extraction schema")
)
