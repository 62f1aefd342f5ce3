package notify

import (
	"context"
	"log/slog"

	"github.com/tillhq/till/pkg/slogx"
)

// LogDispatcher is the development fallback used when no SMTP host is
// configured. It records that a dispatch happened without the payload, so
// secrets never end up in log output.
type LogDispatcher struct{}

func (LogDispatcher) Send(ctx context.Context, to string, tmpl Template, _ map[string]string) error {
	slogx.FromContext(ctx).Info("dispatch suppressed, no mailer configured",
		slog.String("to", to),
		slog.String("template", string(tmpl)),
	)
	return nil
}
