package imap

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/internal/enum"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/utils"
)

type fakeMailClient struct {
	mu        sync.Mutex
	messages  map[uint32][]byte
	unseen    []uint32
	fetchErr  error
	searches  []string
	selected  string
	readOnly  bool
	loggedOut bool
}

func newFakeMailClient() *fakeMailClient {
	return &fakeMailClient{messages: map[uint32][]byte{}}
}

func (c *fakeMailClient) allUIDs() []uint32 {
	uids := make([]uint32, 0, len(c.messages))
	for uid := range c.messages {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}

func (c *fakeMailClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	c.selected, c.readOnly = name, readOnly
	return &imap.MailboxStatus{Name: name}, nil
}

func (c *fakeMailClient) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.allUIDs()
	switch {
	case criteria.Uid != nil:
		c.searches = append(c.searches, "UID")
		var out []uint32
		for _, uid := range all {
			if criteria.Uid.Contains(uid) {
				out = append(out, uid)
			}
		}
		// servers answer "N:*" with the highest UID even when it is below N
		if len(out) == 0 && len(all) > 0 {
			out = append(out, all[len(all)-1])
		}
		return out, nil
	case len(criteria.WithoutFlags) > 0:
		c.searches = append(c.searches, "UNSEEN")
		return c.unseen, nil
	default:
		c.searches = append(c.searches, "ALL")
		return all, nil
	}
}

func (c *fakeMailClient) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	if c.fetchErr != nil {
		return c.fetchErr
	}
	for _, uid := range c.allUIDs() {
		if !seqset.Contains(uid) {
			continue
		}
		msg := imap.NewMessage(0, items)
		msg.Uid = uid
		msg.Body = map[*imap.BodySectionName]imap.Literal{
			{}: bytes.NewBuffer(c.messages[uid]),
		}
		ch <- msg
	}
	return nil
}

func (c *fakeMailClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) EnqueueProcessEmail(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *recordingAlerter) Alert(_ context.Context, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
}

type fetcherFixture struct {
	fetcher      *fetcher
	client       *fakeMailClient
	queue        *recordingQueue
	alerter      *recordingAlerter
	repositories *repository.Repositories
	dialed       int
}

func newFetcherFixture(t *testing.T) *fetcherFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	appLogger := logger.NewAppLogger(&logger.Config{LogLevel: "error", Encoder: "console"})
	appLogger.InitLogger()

	fx := &fetcherFixture{
		client:       newFakeMailClient(),
		queue:        &recordingQueue{},
		alerter:      &recordingAlerter{},
		repositories: repository.InitRepositories(db),
	}
	fx.fetcher = NewFetcher(appLogger, fx.repositories, fx.queue, fx.alerter, &config.IMAPOverrideConfig{}).(*fetcher)
	fx.fetcher.dial = func(ctx context.Context, settings connectionSettings) (mailClient, error) {
		fx.dialed++
		return fx.client, nil
	}
	return fx
}

func (fx *fetcherFixture) createMailbox(t *testing.T, mailbox *models.Mailbox) *models.Mailbox {
	t.Helper()
	if mailbox == nil {
		mailbox = &models.Mailbox{
			Name:     "juridico",
			ImapHost: "imap.example.com",
			ImapPort: 993,
			ImapTLS:  true,
			Username: "ops@example.com",
			Password: "secret",
			IsActive: true,
		}
	}
	require.NoError(t, fx.repositories.MailboxRepository.CreateMailbox(context.Background(), mailbox))
	return mailbox
}

func (fx *fetcherFixture) reload(t *testing.T, id string) *models.Mailbox {
	t.Helper()
	mailbox, err := fx.repositories.MailboxRepository.GetMailbox(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, mailbox)
	return mailbox
}

func (fx *fetcherFixture) countMessages(t *testing.T, mailboxID string) int64 {
	t.Helper()
	count, err := fx.repositories.EmailMessageRepository.CountByMailbox(context.Background(), mailboxID)
	require.NoError(t, err)
	return count
}

func rawMessage(uid uint32, withMessageID bool) []byte {
	var b strings.Builder
	b.WriteString("From: Sender <sender@example.com>\r\n")
	b.WriteString(fmt.Sprintf("Subject: Message %d\r\n", uid))
	b.WriteString("Date: Tue, 03 Jun 2025 09:00:00 +0000\r\n")
	if withMessageID {
		b.WriteString(fmt.Sprintf("Message-ID: <msg-%d@example.com>\r\n", uid))
	}
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(fmt.Sprintf("body %d\r\n", uid))
	return []byte(b.String())
}

func TestFetch_FirstRunUsesUnseenAndCheckpoints(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	for uid := uint32(1); uid <= 3; uid++ {
		fx.client.messages[uid] = rawMessage(uid, true)
	}
	fx.client.unseen = []uint32{2, 1}

	created := fx.fetcher.Fetch(context.Background(), mailbox.ID)

	assert.Equal(t, 2, created)
	assert.Equal(t, []string{"UNSEEN"}, fx.client.searches)
	assert.Equal(t, "INBOX", fx.client.selected)
	assert.True(t, fx.client.readOnly)
	assert.True(t, fx.client.loggedOut)
	assert.Len(t, fx.queue.ids, 2)
	assert.Empty(t, fx.alerter.alerts)

	stored := fx.reload(t, mailbox.ID)
	require.NotNil(t, stored.LastUID)
	assert.Equal(t, uint32(2), *stored.LastUID)
	assert.NotNil(t, stored.LastFetchAt)

	message, err := fx.repositories.EmailMessageRepository.GetByID(context.Background(), fx.queue.ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Message 1", message.Subject)
	assert.Equal(t, "body 1", message.BodyText)
	assert.Equal(t, enum.MessageStatusPending, message.Status)
	assert.Equal(t, uint32(1), message.ImapUID)
}

func TestFetch_UsesCursorOnNextRun(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	for uid := uint32(1); uid <= 3; uid++ {
		fx.client.messages[uid] = rawMessage(uid, true)
	}
	fx.client.unseen = []uint32{1, 2}

	require.Equal(t, 2, fx.fetcher.Fetch(context.Background(), mailbox.ID))

	fx.client.searches = nil
	created := fx.fetcher.Fetch(context.Background(), mailbox.ID)

	assert.Equal(t, 1, created)
	assert.Equal(t, []string{"UID"}, fx.client.searches)
	assert.Equal(t, uint32(3), *fx.reload(t, mailbox.ID).LastUID)
	assert.Equal(t, int64(3), fx.countMessages(t, mailbox.ID))
}

func TestFetch_IsIdempotent(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	for uid := uint32(1); uid <= 2; uid++ {
		fx.client.messages[uid] = rawMessage(uid, true)
	}
	fx.client.unseen = []uint32{1, 2}

	require.Equal(t, 2, fx.fetcher.Fetch(context.Background(), mailbox.ID))
	firstFetchAt := *fx.reload(t, mailbox.ID).LastFetchAt

	// nothing above the cursor, unseen messages are the same ones
	created := fx.fetcher.Fetch(context.Background(), mailbox.ID)

	assert.Equal(t, 0, created)
	assert.Equal(t, int64(2), fx.countMessages(t, mailbox.ID))
	assert.Len(t, fx.queue.ids, 2)

	stored := fx.reload(t, mailbox.ID)
	assert.Equal(t, uint32(2), *stored.LastUID)
	assert.False(t, stored.LastFetchAt.Before(firstFetchAt))
}

func TestFetch_SynthesizesMissingMessageID(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	fx.client.messages[7] = rawMessage(7, false)
	fx.client.unseen = []uint32{7}

	require.Equal(t, 1, fx.fetcher.Fetch(context.Background(), mailbox.ID))

	exists, err := fx.repositories.EmailMessageRepository.ExistsByMessageID(context.Background(), mailbox.ID, "<uid-7@imap.example.com>")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFetch_FallsBackToRecentWindow(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	for uid := uint32(1); uid <= 60; uid++ {
		fx.client.messages[uid] = rawMessage(uid, true)
	}

	created := fx.fetcher.Fetch(context.Background(), mailbox.ID)

	assert.Equal(t, 50, created)
	assert.Equal(t, []string{"UNSEEN", "ALL"}, fx.client.searches)
	assert.Equal(t, uint32(60), *fx.reload(t, mailbox.ID).LastUID)

	exists, err := fx.repositories.EmailMessageRepository.ExistsByMessageID(context.Background(), mailbox.ID, "<msg-10@example.com>")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFetch_EmptyMailboxStillTouchesCheckpoint(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)

	assert.Equal(t, 0, fx.fetcher.Fetch(context.Background(), mailbox.ID))

	stored := fx.reload(t, mailbox.ID)
	assert.Nil(t, stored.LastUID)
	assert.NotNil(t, stored.LastFetchAt)
	assert.True(t, fx.client.loggedOut)
}

func TestFetch_IncompleteMailboxAlerts(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, &models.Mailbox{
		Name:     "broken",
		ImapHost: "imap.example.com",
		Username: "ops@example.com",
		IsActive: true,
	})

	assert.Equal(t, 0, fx.fetcher.Fetch(context.Background(), mailbox.ID))
	assert.Equal(t, 0, fx.dialed)
	require.Len(t, fx.alerter.alerts, 1)
	assert.Contains(t, fx.alerter.alerts[0], "incomplete")
}

func TestFetch_UnknownMailboxAlerts(t *testing.T) {
	fx := newFetcherFixture(t)

	assert.Equal(t, 0, fx.fetcher.Fetch(context.Background(), "mbox_missing"))
	require.Len(t, fx.alerter.alerts, 1)
	assert.Contains(t, fx.alerter.alerts[0], "not found")
}

func TestFetch_InactiveMailboxIsSkipped(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, &models.Mailbox{
		Name:     "paused",
		ImapHost: "imap.example.com",
		Username: "ops@example.com",
		Password: "secret",
	})

	assert.Equal(t, 0, fx.fetcher.Fetch(context.Background(), mailbox.ID))
	assert.Equal(t, 0, fx.dialed)
	assert.Nil(t, fx.reload(t, mailbox.ID).LastFetchAt)
}

func TestFetch_ConnectionErrorAlertsAndReturnsZero(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	fx.fetcher.dial = func(ctx context.Context, settings connectionSettings) (mailClient, error) {
		return nil, errors.New("connection refused")
	}

	assert.Equal(t, 0, fx.fetcher.Fetch(context.Background(), mailbox.ID))
	require.Len(t, fx.alerter.alerts, 1)
	assert.Contains(t, fx.alerter.alerts[0], "connection refused")
	assert.Nil(t, fx.reload(t, mailbox.ID).LastFetchAt)
}

func TestFetch_TransportErrorDuringFetchStillLogsOut(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	fx.client.messages[1] = rawMessage(1, true)
	fx.client.unseen = []uint32{1}
	fx.client.fetchErr = errors.New("connection reset")

	assert.Equal(t, 0, fx.fetcher.Fetch(context.Background(), mailbox.ID))
	assert.True(t, fx.client.loggedOut)
	require.Len(t, fx.alerter.alerts, 1)
	assert.Contains(t, fx.alerter.alerts[0], "connection reset")
	assert.Equal(t, int64(0), fx.countMessages(t, mailbox.ID))
}

func TestFetch_PanicIsRecovered(t *testing.T) {
	fx := newFetcherFixture(t)
	mailbox := fx.createMailbox(t, nil)
	fx.fetcher.dial = func(ctx context.Context, settings connectionSettings) (mailClient, error) {
		panic("boom")
	}

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, fx.fetcher.Fetch(context.Background(), mailbox.ID))
	})
	require.Len(t, fx.alerter.alerts, 1)
	assert.Contains(t, fx.alerter.alerts[0], "boom")
}

func TestResolveSettings_AppliesOverrides(t *testing.T) {
	f := &fetcher{overrides: &config.IMAPOverrideConfig{
		Host:     "imap.gmail.com",
		Port:     1993,
		Username: "override@example.com",
		Password: "abcd efgh ijkl mnop",
	}}

	settings := f.resolveSettings(&models.Mailbox{ID: "mbox_1", ImapHost: "imap.example.com", ImapPort: 993, Username: "a", Password: "b"})

	assert.Equal(t, "imap.gmail.com", settings.Host)
	assert.Equal(t, 1993, settings.Port)
	assert.Equal(t, "override@example.com", settings.Username)
	assert.Equal(t, "abcdefghijklmnop", settings.Password)
	assert.Equal(t, "INBOX", settings.Folder)
}

func TestSearchHelpers(t *testing.T) {
	assert.Equal(t, []uint32{5, 9}, aboveCursor([]uint32{3, 9, 5}, 4))
	assert.Equal(t, []uint32{1, 2, 3}, sortedUIDs([]uint32{3, 1, 2}))

	chunks := batches([]uint32{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]uint32{{1, 2}, {3, 4}, {5}}, chunks)
	assert.Nil(t, batches(nil, 200))
}

func TestSyntheticIDUsesResolvedHost(t *testing.T) {
	assert.Equal(t, "<uid-3@imap.example.com>", utils.SyntheticMessageID(3, "imap.example.com"))
}
