package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
)

type subjectKey struct{}

// WithSubject records the authenticated user for downstream handlers.
func WithSubject(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, subjectKey{}, userID)
}

// SubjectFromContext returns the authenticated user, if any.
func SubjectFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(subjectKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// SubjectOrNil is SubjectFromContext for optional-auth handlers.
func SubjectOrNil(ctx context.Context) *uuid.UUID {
	if id, ok := SubjectFromContext(ctx); ok {
		return &id
	}
	return nil
}

// AuthorizeUser checks that the caller may act for userID. Guests and
// deployments without bearer auth carry no subject and pass.
func AuthorizeUser(ctx context.Context, userID uuid.UUID) error {
	subject, ok := SubjectFromContext(ctx)
	if ok && subject != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "token subject does not match userId")
	}
	return nil
}
