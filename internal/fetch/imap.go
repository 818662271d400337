package fetch

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/marcus/mailgrab/internal/provider"
	"github.com/marcus/mailgrab/pkg/types"
)

// mailSession is one authenticated, read-only view of a remote inbox. The
// session controller drives it strictly sequentially; Terminate may be
// called concurrently to force teardown.
type mailSession interface {
	Login(username, password string) error
	// SelectInbox opens INBOX read-only and returns its total message count.
	SelectInbox() (uint32, error)
	// SearchSubject returns the server-ordered identifiers of messages
	// whose Subject header contains the given substring.
	SearchSubject(substring string) ([]uint32, error)
	// FetchMessage streams one message without marking it seen and parses
	// it into the normalized record.
	FetchMessage(id uint32) (*types.NormalizedMessage, error)
	Logout() error
	Terminate() error
}

// dialFunc opens a connection to the provider's endpoint. Swapped out in tests.
type dialFunc func(cfg provider.Config) (mailSession, error)

// imapSession implements mailSession over go-imap.
type imapSession struct {
	client      *client.Client
	authTimeout time.Duration
}

// dialIMAP establishes the TLS connection to the provider's IMAP endpoint.
func dialIMAP(cfg provider.Config) (mailSession, error) {
	dialer := &net.Dialer{Timeout: cfg.ConnTimeout}
	cl, err := client.DialWithDialerTLS(dialer, cfg.Addr(), &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.AllowUnverifiedCert,
		MinVersion:         tls.VersionTLS12,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	return &imapSession{client: cl, authTimeout: cfg.AuthTimeout}, nil
}

func (s *imapSession) Login(username, password string) error {
	// Bound the LOGIN round-trip separately; a stalled greeting otherwise
	// eats the whole session budget before the search even starts.
	s.client.Timeout = s.authTimeout
	defer func() { s.client.Timeout = 0 }()

	if err := s.client.Login(username, password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	return nil
}

func (s *imapSession) SelectInbox() (uint32, error) {
	mbox, err := s.client.Select("INBOX", true)
	if err != nil {
		return 0, fmt.Errorf("failed to open INBOX: %w", err)
	}
	return mbox.Messages, nil
}

func (s *imapSession) SearchSubject(substring string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Subject", substring)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	return ids, nil
}

func (s *imapSession) FetchMessage(id uint32) (*types.NormalizedMessage, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(id)

	// Peek keeps the \Seen flag untouched; the fetch never mutates remote state.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d not returned by server", id)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message %d has no body section", id)
	}

	return normalizeMessage(body)
}

func (s *imapSession) Logout() error {
	return s.client.Logout()
}

func (s *imapSession) Terminate() error {
	return s.client.Terminate()
}
