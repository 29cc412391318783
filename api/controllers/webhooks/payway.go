package webhooks

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/angkor-storefront/api/responses"
	"github.com/angelmondragon/angkor-storefront/internal/payments"
	paywaywebhook "github.com/angelmondragon/angkor-storefront/internal/webhooks/payway"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
)

const maxPushbackBytes = 64 << 10

type PayWayWebhookService interface {
	HandleCallback(ctx context.Context, payload payway.CallbackPayload) (*payments.ReconcileResult, error)
	RecordDuplicate()
}

// PayWayWebhookGuard suppresses exact re-deliveries.
type PayWayWebhookGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// PayWayWebhook receives gateway pushbacks. Bodies arrive either
// form-encoded or as JSON depending on the merchant profile.
func PayWayWebhook(svc PayWayWebhookService, guard PayWayWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"remote_addr":    r.RemoteAddr,
				"forwarded_for":  r.Header.Get("X-Forwarded-For"),
				"user_agent":     r.UserAgent(),
				"content_type":   r.Header.Get("Content-Type"),
				"content_length": r.ContentLength,
			})
		}

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := parsePushback(r)
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "payway pushback could not be parsed")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pushback body"))
			return
		}

		key := paywaywebhook.DeliveryKey(payload)
		if guard != nil && payload.TranID != "" {
			seen, err := guard.CheckAndMark(ctx, key)
			if err != nil {
				// redis outage must not block settlement; the database gate still applies
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "payway pushback idempotency check failed")
				}
			} else if seen {
				svc.RecordDuplicate()
				responses.WriteSuccess(w, map[string]any{"received": true, "duplicate": true})
				return
			}
		}

		result, err := svc.HandleCallback(ctx, payload)
		if err != nil {
			if guard != nil && payload.TranID != "" {
				_ = guard.Delete(ctx, key)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := map[string]any{"received": true}
		if result != nil {
			resp["status"] = result.Status
			if result.Dropped {
				resp["dropped"] = true
			}
		}
		responses.WriteSuccess(w, resp)
	}
}

func parsePushback(r *http.Request) (payway.CallbackPayload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxPushbackBytes); err != nil {
			return payway.CallbackPayload{}, err
		}
		return payway.ParseCallbackForm(url.Values(r.MultipartForm.Value)), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushbackBytes))
	if err != nil {
		return payway.CallbackPayload{}, err
	}
	if mediaType == "application/json" || (mediaType == "" && strings.HasPrefix(strings.TrimSpace(string(body)), "{")) {
		return payway.ParseCallbackJSON(body)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return payway.CallbackPayload{}, err
	}
	return payway.ParseCallbackForm(values), nil
}
