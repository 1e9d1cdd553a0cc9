// internal/provider/email.go
//
// Email sender selection.
//
// Context
// -------
// Unlike storage, email selection is by priority across configuration
// sources, not by string shape.  The fixed order is:
//
//   1. SMTP, when host, username, and password are all present.
//   2. Managed-email-service connection string.
//   3. Transactional-email API key.
//   4. The no-op sender, which logs intent and sends nothing—the only
//      case allowed to silently "succeed".
//
// The first matching source wins; a later source being present alongside
// an earlier one is ignored, never an error.  Where each *value* came
// from (env var vs. per-tenant row) was already decided field by field
// in internal/settings before this code runs.
package provider

import (
	"context"

	"github.com/versohq/verso/internal/settings"
)

// Message is one outbound email.
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// EmailSender is the narrow interface every mail driver satisfies.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailSettings holds the per-field resolved values the selector reads.
type EmailSettings struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	ManagedConn  string
	APIKey       string
	From         string
}

// EmailSettingsFrom applies the env-over-database origin order to every
// field of the EMAIL group.  dbValues is the tenant's settings row map
// (may be nil).
func EmailSettingsFrom(dbValues map[string]string) EmailSettings {
	field := func(key string) string {
		return settings.Resolve(settings.GroupEmail, key, dbValues)
	}
	return EmailSettings{
		SMTPHost:     field("SMTP_HOST"),
		SMTPPort:     field("SMTP_PORT"),
		SMTPUsername: field("SMTP_USERNAME"),
		SMTPPassword: field("SMTP_PASSWORD"),
		ManagedConn:  field("MANAGED_CONN"),
		APIKey:       field("API_KEY"),
		From:         field("FROM"),
	}
}

// SelectEmail returns the sender for the first matching source in the
// fixed priority order.  Never errors; a malformed value in the chosen
// source surfaces as a typed failure from Send, where callers can tell
// misconfiguration from transport trouble.
func SelectEmail(set EmailSettings) EmailSender {
	switch {
	case set.SMTPHost != "" && set.SMTPUsername != "" && set.SMTPPassword != "":
		return newSMTPSender(set)
	case set.ManagedConn != "":
		return newManagedSender(set.ManagedConn)
	case set.APIKey != "":
		return newAPISender(set.APIKey)
	default:
		return noopSender{}
	}
}
