package imap

import (
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/interfaces"
	"github.com/cadrius/mailpipe/internal/enum"
	mailpipeErrors "github.com/cadrius/mailpipe/internal/errors"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
)

const (
	batchSize      = 200
	defaultFolder  = "INBOX"
	defaultPort    = 993
	maxSubjectLen  = 1000
	maxSenderLen   = 500
	fetchLogPrefix = "[fetch]"
)

type storeResult int

const (
	// not stored and not counted for the checkpoint
	storeSkipped storeResult = iota
	// already known, counts for the checkpoint
	storeDuplicate
	storeCreated
)

type fetcher struct {
	log       logger.Logger
	mailboxes interfaces.MailboxRepository
	messages  interfaces.EmailMessageRepository
	queue     interfaces.ProcessQueue
	alerter   interfaces.OperatorAlerter
	overrides *config.IMAPOverrideConfig
	dial      dialFunc
}

func NewFetcher(log logger.Logger, repositories *repository.Repositories, queue interfaces.ProcessQueue, alerter interfaces.OperatorAlerter, overrides *config.IMAPOverrideConfig) interfaces.Fetcher {
	return &fetcher{
		log:       log,
		mailboxes: repositories.MailboxRepository,
		messages:  repositories.EmailMessageRepository,
		queue:     queue,
		alerter:   alerter,
		overrides: overrides,
		dial:      dialIMAP,
	}
}

// Fetch polls one mailbox and returns how many messages were newly stored.
func (f *fetcher) Fetch(ctx context.Context, mailboxID string) (created int) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Fetcher.Fetch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, mailboxID)

	defer func() {
		if r := recover(); r != nil {
			span.SetTag("error", true)
			f.report(ctx, fmt.Sprintf("%s Unexpected error for mailbox %s: %v", fetchLogPrefix, mailboxID, r))
			created = 0
		}
	}()

	mailbox, err := f.mailboxes.GetMailbox(ctx, mailboxID)
	if err != nil {
		tracing.TraceErr(span, err)
		f.report(ctx, fmt.Sprintf("%s Unexpected error for mailbox %s: %v", fetchLogPrefix, mailboxID, err))
		return 0
	}
	if mailbox == nil {
		tracing.TraceErr(span, mailpipeErrors.ErrMailboxNotFound)
		f.report(ctx, fmt.Sprintf("%s Mailbox %s not found.", fetchLogPrefix, mailboxID))
		return 0
	}
	if !mailbox.IsActive {
		f.log.Infof("[%s] Mailbox is inactive, skipping fetch", mailboxID)
		return 0
	}

	settings := f.resolveSettings(mailbox)
	if !settings.complete() {
		tracing.TraceErr(span, mailpipeErrors.ErrMailboxIncomplete)
		f.report(ctx, fmt.Sprintf("%s Mailbox %s incomplete: host/username/password missing.", fetchLogPrefix, mailboxID))
		return 0
	}
	prefix := logPrefix(settings)

	c, err := f.dial(ctx, settings)
	if err != nil {
		tracing.TraceErr(span, err)
		f.report(ctx, fmt.Sprintf("%s IMAP error for mailbox %s: %v", fetchLogPrefix, mailboxID, err))
		return 0
	}
	defer disconnect(mailboxID, c)

	if _, err := c.Select(settings.Folder, true); err != nil {
		tracing.TraceErr(span, err)
		f.report(ctx, fmt.Sprintf("%s IMAP error for mailbox %s: failed to select %s: %v", fetchLogPrefix, mailboxID, settings.Folder, err))
		return 0
	}

	uids := f.searchCandidates(c, settings, mailbox.LastUID)
	span.SetTag("candidates", len(uids))
	if len(uids) == 0 {
		f.log.Infof("%s No candidate messages", prefix)
		f.saveCheckpoint(ctx, settings, 0)
		return 0
	}
	span.SetTag("cursor", mailbox.Cursor())
	f.log.Infof("%s Fetching %d candidate messages above UID %d", prefix, len(uids), mailbox.Cursor())

	var highest uint32
	for _, batch := range batches(uids, batchSize) {
		batchCreated, batchHighest, err := f.fetchBatch(ctx, c, mailbox, settings, batch)
		if err != nil {
			// keep what earlier batches completed
			tracing.TraceErr(span, err)
			f.saveCheckpoint(ctx, settings, highest)
			f.report(ctx, fmt.Sprintf("%s IMAP error for mailbox %s: %v", fetchLogPrefix, mailboxID, err))
			return 0
		}
		created += batchCreated
		if batchHighest > highest {
			highest = batchHighest
		}
	}

	f.saveCheckpoint(ctx, settings, highest)
	f.log.Infof("%s Stored %d new messages", prefix, created)
	span.SetTag("created", created)
	return created
}

// fetchBatch downloads one batch and stores every message in it. The returned
// error is a transport failure; per-message failures are reported and skipped.
func (f *fetcher) fetchBatch(ctx context.Context, c mailClient, mailbox *models.Mailbox, settings connectionSettings, batch []uint32) (int, uint32, error) {
	prefix := logPrefix(settings)

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(batch...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(batch))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	fetched := make(map[uint32]*imap.Message, len(batch))
	for msg := range messages {
		if msg != nil {
			fetched[msg.Uid] = msg
		}
	}
	if err := <-done; err != nil {
		return 0, 0, errors.Wrap(err, "uid fetch failed")
	}

	var created int
	var highest uint32
	for _, uid := range batch {
		msg, ok := fetched[uid]
		if !ok {
			f.log.Warnf("%s UID %d missing from fetch response", prefix, uid)
			continue
		}

		result, err := f.storeMessage(ctx, mailbox, settings, msg)
		if err != nil {
			text := fmt.Sprintf("%s Failed to store UID %d for mailbox %s: %v", fetchLogPrefix, uid, mailbox.ID, err)
			f.report(ctx, text)
			continue
		}

		switch result {
		case storeCreated:
			created++
		case storeSkipped:
			continue
		}
		if uid > highest {
			highest = uid
		}
	}

	return created, highest, nil
}

func (f *fetcher) storeMessage(ctx context.Context, mailbox *models.Mailbox, settings connectionSettings, msg *imap.Message) (result storeResult, err error) {
	prefix := logPrefix(settings)

	defer func() {
		if r := recover(); r != nil {
			result, err = storeSkipped, errors.Errorf("panic while storing message: %v", r)
		}
	}()

	raw := messageBody(msg)
	if len(raw) == 0 {
		f.log.Warnf("%s UID %d has no body", prefix, msg.Uid)
		return storeSkipped, nil
	}

	parsed, err := parseMessage(raw, msg.Envelope)
	if err != nil {
		return storeSkipped, err
	}

	messageID := parsed.MessageID
	if messageID == "" {
		messageID = utils.SyntheticMessageID(msg.Uid, settings.Host)
	}

	exists, err := f.messages.ExistsByMessageID(ctx, mailbox.ID, messageID)
	if err != nil {
		return storeSkipped, err
	}
	if exists {
		return storeDuplicate, nil
	}

	emailMessage := &models.EmailMessage{
		MailboxID:  mailbox.ID,
		MessageID:  messageID,
		ImapUID:    msg.Uid,
		Subject:    utils.Truncate(parsed.Subject, maxSubjectLen),
		Sender:     utils.Truncate(parsed.Sender, maxSenderLen),
		ReceivedAt: parsed.ReceivedAt,
		BodyText:   parsed.BodyText,
		Status:     enum.MessageStatusPending,
	}
	if err := f.messages.Create(ctx, emailMessage); err != nil {
		if errors.Is(err, mailpipeErrors.ErrDuplicateMessage) {
			f.log.Infof("%s Duplicate message UID %d, ignoring", prefix, msg.Uid)
			return storeDuplicate, nil
		}
		return storeSkipped, err
	}

	if err := f.queue.EnqueueProcessEmail(ctx, emailMessage.ID); err != nil {
		// stored; the reprocess action can still pick it up
		f.report(ctx, fmt.Sprintf("%s Stored email %s but failed to enqueue it: %v", fetchLogPrefix, emailMessage.ID, err))
	}

	return storeCreated, nil
}

func (f *fetcher) saveCheckpoint(ctx context.Context, settings connectionSettings, highest uint32) {
	if err := f.mailboxes.UpdateCheckpoint(ctx, settings.MailboxID, highest, utils.Now()); err != nil {
		f.report(ctx, fmt.Sprintf("%s Failed to update checkpoint for mailbox %s: %v", fetchLogPrefix, settings.MailboxID, err))
	}
}

func (f *fetcher) resolveSettings(mailbox *models.Mailbox) connectionSettings {
	settings := connectionSettings{
		MailboxID: mailbox.ID,
		Host:      mailbox.ImapHost,
		Port:      mailbox.ImapPort,
		TLS:       mailbox.ImapTLS,
		Username:  mailbox.Username,
		Password:  mailbox.Password,
		Folder:    utils.FirstNonEmpty(mailbox.Folder, defaultFolder),
	}

	if o := f.overrides; o != nil {
		if o.Host != "" {
			settings.Host = o.Host
		}
		if o.Port > 0 {
			settings.Port = o.Port
		}
		if o.Username != "" {
			settings.Username = o.Username
		}
		if o.Password != "" {
			settings.Password = utils.StripSpaces(o.Password)
		}
	}

	if settings.Port == 0 {
		settings.Port = defaultPort
	}
	return settings
}

func (f *fetcher) report(ctx context.Context, text string) {
	f.log.Error(text)
	f.alerter.Alert(ctx, text)
}

// messageBody returns the full message bytes from a BODY.PEEK[] response.
func messageBody(msg *imap.Message) []byte {
	for section, literal := range msg.Body {
		if section == nil || literal == nil {
			continue
		}
		if len(section.Path) != 0 || section.Specifier != imap.EntireSpecifier {
			continue
		}
		raw := make([]byte, literal.Len())
		n, _ := io.ReadFull(literal, raw)
		return raw[:n]
	}
	return nil
}

func logPrefix(settings connectionSettings) string {
	return fmt.Sprintf("[%s][%s]", settings.MailboxID, settings.Folder)
}
