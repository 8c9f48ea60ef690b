package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	_, ok := UserIDFromContext(ctx)
	assert.False(t, ok)

	ctx = ContextWithUserID(ctx, "user-1")
	ctx = ContextWithRequestID(ctx, "req-1")

	userID, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)

	reqID, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", reqID)

	assert.NotNil(t, WithContext(ctx))
}

func TestEmptyUserIDIsAbsent(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "")
	_, ok := UserIDFromContext(ctx)
	assert.False(t, ok)
}
