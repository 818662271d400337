package fetch

import "strings"

// Rejection strings observed from the three supported providers, plus the
// generic IMAP AUTHENTICATIONFAILED response code.
var authFailurePhrases = []string{
	"authenticationfailed",
	"authentication failed",
	"invalid credentials",
	"invalid login",
	"login failed",
	"username and password not accepted",
	"log in via your web browser",
}

// isAuthFailure reports whether a login-time error looks like a credential
// rejection. This is a best-effort classifier over the server's error text:
// an unusual rejection phrase will be reported as a transport error instead.
func isAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range authFailurePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
