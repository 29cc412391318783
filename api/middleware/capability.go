package middleware

import (
	"net/http"

	"github.com/angelmondragon/angkor-storefront/api/responses"
	pkgauth "github.com/angelmondragon/angkor-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// RequireCapability rejects the request before the handler runs unless the
// authorizer grants capability to the caller. It must run after Auth.
func RequireCapability(authz pkgauth.Authorizer, capability pkgauth.Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := SubjectFromContext(r.Context())
			if subject.IsAnonymous() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if authz == nil || !authz.HasCapability(subject, capability) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "missing capability").
					WithDetails(map[string]string{"capability": capability.String()}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
