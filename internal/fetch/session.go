// Package fetch implements the single-message retrieval core. Each request
// gets its own IMAP connection, driven through connect, login, read-only
// INBOX open, subject search, fetch and parse, bounded by a two-timer
// deadline race.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcus/mailgrab/internal/provider"
)

// terminateLead is how far ahead of the caller-facing deadline the inner
// timer fires. Forcibly closing a live connection can itself take time, so
// teardown starts before the caller has to be answered.
const terminateLead = 2 * time.Second

// Fetcher runs one mailbox session per call. It holds no per-request state
// and is safe for concurrent use.
type Fetcher struct {
	dial    dialFunc
	timeout time.Duration
	logger  *logrus.Logger
}

// NewFetcher creates a fetcher with the given overall per-request deadline.
func NewFetcher(timeout time.Duration, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		dial:    dialIMAP,
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch retrieves the most recent INBOX message whose subject contains the
// given substring. It always returns within the fetcher's deadline: if the
// session has not reached a terminal state by then, the caller gets a
// TimedOut outcome immediately (or Canceled, when the request context was
// canceled first) and the connection is torn down in the background without
// the caller waiting on it.
func (f *Fetcher) Fetch(ctx context.Context, cfg provider.Config, subject string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	slot := &outcomeSlot{}
	done := make(chan Outcome, 1)

	go func() {
		done <- f.runSession(cfg, subject, slot)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		// First terminal event wins: whatever the session goroutine
		// produces after this point is discarded. A caller that walked
		// away is not a timeout and is journaled separately.
		out := Outcome{Kind: OutcomeTimedOut}
		if errors.Is(ctx.Err(), context.Canceled) {
			out = Outcome{Kind: OutcomeCanceled}
			f.logger.WithField("provider", cfg.Name).Info("Request canceled before completion")
		} else {
			f.logger.WithField("provider", cfg.Name).Warn("Fetch deadline elapsed")
		}
		slot.record(out)
		return out
	}
}

// runSession drives one connection through its full lifecycle. Every exit
// path records exactly one outcome into the slot and returns whatever the
// slot holds, so a timeout recorded concurrently always takes precedence.
func (f *Fetcher) runSession(cfg provider.Config, subject string, slot *outcomeSlot) Outcome {
	log := f.logger.WithField("provider", cfg.Name)

	sess, err := f.dial(cfg)
	if err != nil {
		log.WithError(err).Error("Failed to connect to IMAP server")
		slot.record(Outcome{Kind: OutcomeTransportError, Err: err})
		return slot.get()
	}

	// Inner timer: fires ahead of the caller-facing deadline and forcibly
	// closes the connection, unblocking whichever round-trip is stalled.
	inner := f.timeout - terminateLead
	if inner < time.Second {
		inner = time.Second
	}
	timer := time.AfterFunc(inner, func() {
		if slot.record(Outcome{Kind: OutcomeTimedOut}) {
			log.Warn("Session deadline elapsed, terminating connection")
		}
		// Terminate regardless of who claimed the outcome: if the caller
		// already has its answer the connection is still stalled here and
		// must be torn down, not leaked.
		sess.Terminate() //nolint:errcheck
	})
	defer timer.Stop()

	if err := sess.Login(cfg.Username, cfg.Password); err != nil {
		if isAuthFailure(err) {
			log.WithError(err).Warn("IMAP server rejected credentials")
			slot.record(Outcome{Kind: OutcomeAuthFailed, Err: err})
		} else {
			log.WithError(err).Error("Failed to login to IMAP server")
			slot.record(Outcome{Kind: OutcomeTransportError, Err: err})
		}
		sess.Logout() //nolint:errcheck
		return slot.get()
	}
	defer sess.Logout() //nolint:errcheck

	total, err := sess.SelectInbox()
	if err != nil {
		log.WithError(err).Error("Failed to open INBOX")
		slot.record(Outcome{Kind: OutcomeTransportError, Err: err})
		return slot.get()
	}

	// An empty mailbox resolves without issuing a search.
	if total == 0 {
		log.Info("Mailbox is empty")
		slot.record(Outcome{Kind: OutcomeNotFound})
		return slot.get()
	}

	ids, err := sess.SearchSubject(subject)
	if err != nil {
		log.WithError(err).Error("Subject search failed")
		slot.record(Outcome{Kind: OutcomeTransportError, Err: err})
		return slot.get()
	}
	if len(ids) == 0 {
		log.Info("No messages matched the subject")
		slot.record(Outcome{Kind: OutcomeNotFound})
		return slot.get()
	}

	// "Most recent" is the last identifier in the server-returned sequence,
	// not a date sort. Servers hand back ascending internal sequence
	// numbers, which tracks arrival order closely enough.
	selected := ids[len(ids)-1]
	log.WithFields(logrus.Fields{
		"matches":  len(ids),
		"selected": selected,
	}).Debug("Search complete")

	msg, err := sess.FetchMessage(selected)
	if err != nil {
		log.WithError(err).Error("Failed to fetch message")
		slot.record(Outcome{Kind: OutcomeTransportError, Err: err})
		return slot.get()
	}

	log.WithField("subject", msg.Subject).Info("Message fetched")
	slot.record(Outcome{Kind: OutcomeFound, Message: msg})
	return slot.get()
}
