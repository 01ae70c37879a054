package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/cadrius/mailpipe/internal/tracing"
)

const (
	connectTimeout = 30 * time.Second
	logoutTimeout  = 5 * time.Second
)

// mailClient is the subset of *client.Client the fetcher needs.
type mailClient interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// connectionSettings is what is actually used to log in, after env overrides.
type connectionSettings struct {
	MailboxID string
	Host      string
	Port      int
	TLS       bool
	Username  string
	Password  string
	Folder    string
}

func (s connectionSettings) complete() bool {
	return s.Host != "" && s.Username != "" && s.Password != ""
}

func (s connectionSettings) address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type dialFunc func(ctx context.Context, settings connectionSettings) (mailClient, error)

// dialIMAP connects and logs in.
func dialIMAP(ctx context.Context, settings connectionSettings) (mailClient, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "Fetcher.dialIMAP")
	defer span.Finish()
	tracing.TagComponentExternalApi(span)
	tracing.TagMailbox(span, settings.MailboxID)
	span.SetTag("server", settings.Host)
	span.SetTag("port", settings.Port)
	span.SetTag("tls", settings.TLS)

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: connectTimeout,
	}

	var c *client.Client
	var err error
	if settings.TLS {
		c, err = client.DialWithDialerTLS(dialer, settings.address(), &tls.Config{
			ServerName: settings.Host,
		})
	} else {
		c, err = client.DialWithDialer(dialer, settings.address())
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to connect to %s", settings.address())
	}

	// bound the login, then leave the connection without a deadline for long fetches
	c.Timeout = connectTimeout
	if err := c.Login(settings.Username, settings.Password); err != nil {
		disconnect(settings.MailboxID, c)
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "login failed for %s", settings.Username)
	}
	c.Timeout = 0

	return c, nil
}

// disconnect logs out without letting a dead server hold the worker.
func disconnect(mailboxID string, c mailClient) {
	if c == nil {
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Logout()
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("[%s] Error during logout: %v", mailboxID, err)
		}
	case <-time.After(logoutTimeout):
		log.Printf("[%s] Logout timed out", mailboxID)
	}
}
