package logger

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry returns a hub tagged with module, or (nil, nil) when SENTRY_DSN
// is not set. Error reporting is optional.
func InitSentry(release, module string) (*sentry.Hub, error) {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          release,
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
	})
	if err != nil {
		return nil, err
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("module", module)
	})
	return hub, nil
}

// FlushSentry drains buffered events; safe to call when Sentry is disabled.
func FlushSentry(hub *sentry.Hub) {
	if hub == nil {
		return
	}
	hub.Flush(2 * time.Second)
}
