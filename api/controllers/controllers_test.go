package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/angkor-storefront/api/middleware"
	pkgauth "github.com/angelmondragon/angkor-storefront/pkg/auth"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: io.Discard})
}

// newRequest builds a request with chi URL params and, when userID > 0, an
// authenticated subject.
func newRequest(method, target string, body io.Reader, userID int64, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	if userID > 0 {
		ctx = middleware.WithSubject(ctx, pkgauth.Subject{UserID: userID})
	}
	return req.WithContext(ctx)
}
