// Package reqctx carries request-scoped values through context.Context:
// request metadata set by the HTTP middleware and the id of the
// authenticated user. Keys are unexported; use the accessors.
//
//	ctx = reqctx.WithRequestMeta(ctx, &reqctx.RequestMeta{RequestID: rid})
//	ctx = reqctx.WithUserID(ctx, user.ID)
//
//	log := slog.With(reqctx.LogAttrs(ctx)...)
package reqctx
