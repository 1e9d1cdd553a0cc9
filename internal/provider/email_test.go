// internal/provider/email_test.go
//
// Selection-priority coverage: SMTP beats a present API key, the no-op
// sender is the only silent fallback, and per-field origin resolution
// feeds the selector correctly.
//
// Run: go test ./internal/provider -v

package provider

import (
	"testing"

	"github.com/versohq/verso/internal/settings"
)

func TestSelectEmail_SMTPWinsOverAPIKey(t *testing.T) {
	set := EmailSettings{
		SMTPHost:     "smtp.acme.example",
		SMTPUsername: "mailer",
		SMTPPassword: "hunter2",
		APIKey:       "SG.also-present",
	}
	if _, ok := SelectEmail(set).(*smtpSender); !ok {
		t.Fatalf("selected %T, want *smtpSender", SelectEmail(set))
	}
}

func TestSelectEmail_IncompleteSMTPFallsThrough(t *testing.T) {
	// Host present but no credentials: SMTP does not qualify.
	set := EmailSettings{
		SMTPHost: "smtp.acme.example",
		APIKey:   "SG.key",
	}
	if _, ok := SelectEmail(set).(*apiSender); !ok {
		t.Fatalf("selected %T, want *apiSender", SelectEmail(set))
	}
}

func TestSelectEmail_ManagedBeatsAPIKey(t *testing.T) {
	set := EmailSettings{
		ManagedConn: "endpoint=https://mail.example;accesskey=a2V5",
		APIKey:      "SG.key",
	}
	if _, ok := SelectEmail(set).(*managedSender); !ok {
		t.Fatalf("selected %T, want *managedSender", SelectEmail(set))
	}
}

func TestSelectEmail_NothingConfiguredIsNoopNotError(t *testing.T) {
	sender := SelectEmail(EmailSettings{})
	if _, ok := sender.(noopSender); !ok {
		t.Fatalf("selected %T, want noopSender", sender)
	}
	// The no-op sender must silently succeed.
	if err := sender.Send(t.Context(), Message{To: "a@b.c", Subject: "hi"}); err != nil {
		t.Fatalf("noop Send error: %v", err)
	}
}

func TestEmailSettingsFrom_OriginOrder(t *testing.T) {
	t.Setenv(settings.EnvKey(settings.GroupEmail, "SMTP_HOST"), "smtp.env.example")

	set := EmailSettingsFrom(map[string]string{
		"SMTP_HOST":     "smtp.db.example", // loses to env
		"SMTP_USERNAME": "mailer",          // only in db
		"API_KEY":       "SG.db",
	})

	if set.SMTPHost != "smtp.env.example" {
		t.Fatalf("SMTPHost = %q, want env value", set.SMTPHost)
	}
	if set.SMTPUsername != "mailer" {
		t.Fatalf("SMTPUsername = %q, want db value", set.SMTPUsername)
	}
	if set.APIKey != "SG.db" {
		t.Fatalf("APIKey = %q", set.APIKey)
	}
	// Provider order is unaffected by where values came from: password is
	// still missing, so SMTP must not be chosen.
	if _, ok := SelectEmail(set).(*apiSender); !ok {
		t.Fatalf("selected %T, want *apiSender", SelectEmail(set))
	}
}

func TestSelectStorage_UnsupportedShapeFailsFast(t *testing.T) {
	if _, err := SelectStorage(t.Context(), ""); err == nil {
		t.Fatalf("empty connection string must not select a driver")
	}
}
