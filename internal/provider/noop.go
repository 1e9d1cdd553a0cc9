// internal/provider/noop.go
//
// No-op email driver: logs intent, sends nothing.  Chosen only when no
// other source is configured; the single case allowed to silently
// "succeed".
package provider

import (
	"context"

	"go.uber.org/zap"
)

type noopSender struct{}

func (noopSender) Send(_ context.Context, msg Message) error {
	zap.L().Info("email suppressed (no sender configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
