package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxPhoneNumber
)

func WithIdentity(ctx context.Context, userID, phoneNumber string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxPhoneNumber, phoneNumber)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxUserID).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

// PhoneNumber is only present for voice-token requests.
func PhoneNumber(ctx context.Context) string {
	s, _ := ctx.Value(ctxPhoneNumber).(string)
	return s
}
