package reqctx

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	keyRequestMeta ctxKey = iota
	keyUserID
)

// RequestMeta holds per-request metadata set by HTTP middleware.
type RequestMeta struct {
	RequestID   string
	ClientIP    string
	UserAgent   string
	RequestedAt time.Time
}

func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, keyRequestMeta, meta)
}

func RequestMetaFromContext(ctx context.Context) (*RequestMeta, bool) {
	meta, ok := ctx.Value(keyRequestMeta).(*RequestMeta)
	return meta, ok && meta != nil
}

// RequestIDFromContext returns "" when no metadata is attached.
func RequestIDFromContext(ctx context.Context) string {
	if meta, ok := RequestMetaFromContext(ctx); ok {
		return meta.RequestID
	}
	return ""
}

// WithUserID records the authenticated user.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyUserID, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(keyUserID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// LogAttrs returns the request id and user id as slog arguments, skipping
// whichever is absent.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}
	if id, ok := UserIDFromContext(ctx); ok {
		attrs = append(attrs, "user_id", id.String())
	}
	return attrs
}
