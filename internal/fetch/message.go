package fetch

import (
	"fmt"
	"html"
	"io"
	"net/mail"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/marcus/mailgrab/pkg/types"
)

// htmlFallback wraps a plain-text body when the message carries no native
// HTML part. The <pre> block keeps the original whitespace intact.
const htmlFallback = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { margin: 16px; background: #ffffff; }
pre { font-family: monospace; font-size: 14px; white-space: pre-wrap; word-wrap: break-word; }
</style>
</head>
<body>
<pre>%s</pre>
</body>
</html>
`

// normalizeMessage parses a raw RFC822 message stream into the normalized
// output record. A parse failure is fatal to the session; every missing
// field degrades to its documented fallback instead.
func normalizeMessage(r io.Reader) (*types.NormalizedMessage, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &types.NormalizedMessage{
		Subject:  env.GetHeader("Subject"),
		From:     env.GetHeader("From"),
		To:       env.GetHeader("To"),
		Date:     parseDate(env.GetHeader("Date")),
		HTMLBody: env.HTML,
		TextBody: env.Text,
	}

	if msg.HTMLBody == "" && msg.TextBody != "" {
		msg.HTMLBody = fmt.Sprintf(htmlFallback, html.EscapeString(msg.TextBody))
	}

	return msg, nil
}

// parseDate parses an RFC 5322 Date header. A missing or malformed header
// falls back to the time of parsing rather than failing the session; a
// message without a date therefore reports fetch-time as its date.
func parseDate(header string) time.Time {
	if header == "" {
		return time.Now()
	}
	date, err := mail.ParseDate(header)
	if err != nil {
		return time.Now()
	}
	return date
}
