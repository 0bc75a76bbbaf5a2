package obs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// RequestID returns the request ID stored by the HTTP middleware, if any.
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(RequestIDKey).(string)
	return reqID
}

// Time starts a span named name and returns a function that logs its
// duration, and the error pointed to by errp when non-nil, through the
// context logger.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)
		l := zerolog.Ctx(ctx)

		if errp != nil && *errp != nil {
			l.Warn().Str("op", name).Int64("dur_ms", dur.Milliseconds()).Err(*errp).Msg("op failed")
			return
		}
		l.Debug().Str("op", name).Int64("dur_ms", dur.Milliseconds()).Msg("op done")
	}
}
