package middleware

import (
	"context"

	pkgauth "github.com/angelmondragon/angkor-storefront/pkg/auth"
)

type contextKey string

const ctxSubject contextKey = "subject"

// WithSubject injects the authenticated caller into the context.
func WithSubject(ctx context.Context, subject pkgauth.Subject) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSubject, subject)
}

// SubjectFromContext returns the caller, or an anonymous subject.
func SubjectFromContext(ctx context.Context) pkgauth.Subject {
	if ctx == nil {
		return pkgauth.Subject{}
	}
	if v, ok := ctx.Value(ctxSubject).(pkgauth.Subject); ok {
		return v
	}
	return pkgauth.Subject{}
}

// UserIDFromContext returns zero when the request is anonymous.
func UserIDFromContext(ctx context.Context) int64 {
	return SubjectFromContext(ctx).UserID
}
