package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogSender writes messages to the logger instead of delivering them.
// Bodies carry reset links, so they are only logged when ShowBody is set.
type LogSender struct {
	log      *slog.Logger
	ShowBody bool
}

func NewLogSender(log *slog.Logger, showBody bool) *LogSender {
	return &LogSender{log: log, ShowBody: showBody}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	attrs := []any{
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
	}
	if s.ShowBody {
		attrs = append(attrs, "html", msg.HTML, "text", msg.Text)
	}

	s.log.InfoContext(ctx, "notification.email", attrs...)
	return nil
}
