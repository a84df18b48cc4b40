package middleware

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

const operatorIDKey contextKey = "operatorID"

var errUnauthorized = errors.New("unauthorized")

// ContextWithOperatorID returns a new context with the given operator ID set.
// This is intended for use in tests and middleware.
func ContextWithOperatorID(ctx context.Context, operatorID uuid.UUID) context.Context {
	return context.WithValue(ctx, operatorIDKey, operatorID)
}

func GetOperatorIDFromContext(ctx context.Context) (uuid.UUID, error) {
	v := ctx.Value(operatorIDKey)
	if v == nil {
		return uuid.Nil, errUnauthorized
	}

	switch id := v.(type) {
	case uuid.UUID:
		return id, nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, errUnauthorized
		}
		return parsed, nil
	default:
		return uuid.Nil, errUnauthorized
	}
}
