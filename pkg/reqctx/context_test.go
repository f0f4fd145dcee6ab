package reqctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestLogAttrs(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"empty", context.Background(), 0},
		{"request only", WithRequestMeta(context.Background(), &RequestMeta{RequestID: "r1"}), 2},
		{"user only", WithUserID(context.Background(), id), 2},
		{"nil user ignored", WithUserID(context.Background(), uuid.Nil), 0},
		{"both", WithUserID(WithRequestMeta(context.Background(), &RequestMeta{RequestID: "r1"}), id), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LogAttrs(tt.ctx); len(got) != tt.want {
				t.Errorf("Expected %d attrs, got %v", tt.want, got)
			}
		})
	}

	ctx := WithUserID(context.Background(), id)
	if got, ok := UserIDFromContext(ctx); !ok || got != id {
		t.Errorf("Expected user id %s, got %s", id, got)
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		t.Errorf("Expected empty request id, got %q", rid)
	}
}
