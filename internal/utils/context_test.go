package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAppSourceInContext_KeepsUserId(t *testing.T) {
	ctx := WithCustomContext(context.Background(), &CustomContext{AppSource: "mailpipe", UserId: "u-1"})

	ctx = SetAppSourceInContext(ctx, "mailpipe-cron")

	assert.Equal(t, "mailpipe-cron", GetAppSourceFromContext(ctx))
	assert.Equal(t, "u-1", GetUserIdFromContext(ctx))
}

func TestGetContext_EmptyWhenUnset(t *testing.T) {
	assert.Equal(t, "", GetAppSourceFromContext(context.Background()))
	assert.Equal(t, "", GetUserIdFromContext(context.Background()))
}
