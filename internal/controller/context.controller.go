package controller

import (
	"context"

	"github.com/citycast/server/internal/service/channel"
)

type contextKey int

const (
	sessionIdCtxKey contextKey = iota
	senderCtxKey
)

func (c controller) getSessionIdFromCtx(ctx context.Context) string {
	sessionId, ok := ctx.Value(sessionIdCtxKey).(string)
	if !ok {
		return ""
	}

	return sessionId
}

func (c controller) getSenderFromCtx(ctx context.Context) channel.Sender {
	sender, ok := ctx.Value(senderCtxKey).(channel.Sender)
	if !ok {
		return nil
	}

	return sender
}
