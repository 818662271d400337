// Package provider maps a named mail provider to its IMAP connection
// parameters. The table is static: three well-known providers, all on
// IMAP-over-TLS port 993.
package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrUnknownProvider is returned for any provider name outside the table.
// It is a client error, not a retryable condition.
var ErrUnknownProvider = errors.New("unknown provider")

// Config holds the resolved connection parameters for one request. It is
// built fresh per request and never shared.
type Config struct {
	Name     string
	Host     string
	Port     int
	Username string
	Password string

	// TLS is always on; AllowUnverifiedCert relaxes certificate
	// verification the way the hosted providers require behind some
	// corporate proxies.
	AllowUnverifiedCert bool

	AuthTimeout time.Duration
	ConnTimeout time.Duration
}

// Addr returns the host:port dial address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type endpoint struct {
	host    string
	port    int
	helpURL string
}

// All three providers reject account passwords for IMAP and require an
// app-specific password; helpURL points at the page that issues one.
var endpoints = map[string]endpoint{
	"gmail": {
		host:    "imap.gmail.com",
		port:    993,
		helpURL: "https://myaccount.google.com/apppasswords",
	},
	"outlook": {
		host:    "outlook.office365.com",
		port:    993,
		helpURL: "https://account.live.com/proofs/AppPassword",
	},
	"yahoo": {
		host:    "imap.mail.yahoo.com",
		port:    993,
		helpURL: "https://login.yahoo.com/account/security",
	},
}

// Resolve returns the connection parameters for a provider name
// (case-insensitive) and the given credentials.
func Resolve(name, username, password string) (Config, error) {
	ep, ok := endpoints[strings.ToLower(name)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	return Config{
		Name:                strings.ToLower(name),
		Host:                ep.host,
		Port:                ep.port,
		Username:            username,
		Password:            password,
		AllowUnverifiedCert: true,
		AuthTimeout:         5 * time.Second,
		ConnTimeout:         10 * time.Second,
	}, nil
}

// HelpURL returns the app-password setup page for a provider, or "" if the
// provider is unknown.
func HelpURL(name string) string {
	ep, ok := endpoints[strings.ToLower(name)]
	if !ok {
		return ""
	}
	return ep.helpURL
}

// Names returns the supported provider names, sorted.
func Names() []string {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
