// Package notify delivers out-of-band alerts that do not need operator
// interaction, currently email for approved schedules and factory
// failures.
package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/novaboard/lineplan/planner/observability"
)

// Emailer sends plain-text mail over SMTP with optional AUTH. A nil
// Emailer (no SMTP host configured) turns every send into a no-op.
type Emailer struct {
	addr string // host:port
	auth smtp.Auth
	from string
	to   []string
}

// NewEmailer returns nil when host is empty so callers can hold a nil
// notifier without guarding every call site twice.
func NewEmailer(host string, port int, username, password, from string, to []string) *Emailer {
	if host == "" || from == "" || len(to) == 0 {
		return nil
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &Emailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
		to:   to,
	}
}

// Send delivers one message. Errors are logged and returned; delivery
// is best-effort and never blocks scheduling decisions.
func (e *Emailer) Send(subject, body string) error {
	if e == nil {
		return nil
	}
	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + strings.Join(e.to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(e.addr, e.auth, e.from, e.to, []byte(msg)); err != nil {
		observability.OperatorNotifications.WithLabelValues("email", "error").Inc()
		log.Printf("[NOTIFY] email %q failed: %v", subject, err)
		return err
	}
	observability.OperatorNotifications.WithLabelValues("email", "ok").Inc()
	return nil
}
