package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rassdread/homecheff-app-sub014/internal/shipping"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

const maxWebhookBody = 1 << 20

type CarrierEventHandler interface {
	HandleEvent(ctx context.Context, event shipping.WebhookEvent) error
}

type SignatureChecker interface {
	Verify(carrier string, header http.Header, body []byte) (bool, error)
}

type ReplayGuard interface {
	CheckAndMark(ctx context.Context, carrier, eventID string) (bool, error)
	Delete(ctx context.Context, carrier, eventID string) error
}

type OutcomeRecorder interface {
	Observe(carrier, outcome string)
}

// CarrierWebhook receives shipment notifications. Responses follow the carrier
// contract rather than the API envelope.
func CarrierWebhook(handler CarrierEventHandler, verifier SignatureChecker, guard ReplayGuard, metrics OutcomeRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		carrier := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "carrier")))
		if carrier == "" {
			carrier = "unknown"
		}
		ctx = logg.WithField(ctx, "carrier", carrier)
		observe := func(outcome string) {
			if metrics != nil {
				metrics.Observe(carrier, outcome)
			}
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			observe("error")
			writeCarrierError(w, http.StatusBadRequest, "Kon webhook niet lezen", err)
			return
		}

		if verifier != nil {
			signed, err := verifier.Verify(carrier, r.Header, body)
			if err != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "carrier webhook signature rejected")
				observe("unauthorized")
				writeCarrierError(w, http.StatusUnauthorized, "Ongeldige handtekening", err)
				return
			}
			if !signed {
				logg.Warn(ctx, "carrier webhook accepted without signing secret")
			}
		}

		event, err := shipping.ParseWebhookEvent(body)
		if err != nil {
			logg.Error(ctx, "carrier webhook payload invalid", err)
			observe("error")
			writeCarrierError(w, http.StatusInternalServerError, "Webhook verwerking mislukt", err)
			return
		}
		if event.Carrier == "" {
			event.Carrier = carrier
		}
		ctx = logg.WithFields(ctx, map[string]any{"event_type": event.Type, "event_id": event.ID})

		if guard != nil && event.ID != "" {
			seen, err := guard.CheckAndMark(ctx, carrier, event.ID)
			if err != nil {
				// redis outage: process anyway, transitions are conditional
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "carrier webhook idempotency check failed")
			} else if seen {
				observe("duplicate")
				writeReceived(w)
				return
			}
		}

		if err := handler.HandleEvent(ctx, event); err != nil {
			if guard != nil && event.ID != "" {
				if delErr := guard.Delete(ctx, carrier, event.ID); delErr != nil {
					logg.Warn(logg.WithField(ctx, "error", delErr.Error()), "carrier webhook idempotency key not cleared")
				}
			}
			logg.Error(ctx, "carrier webhook processing failed", err)
			observe("error")
			writeCarrierError(w, http.StatusInternalServerError, "Webhook verwerking mislukt", err)
			return
		}

		observe("processed")
		logg.Info(ctx, "carrier webhook processed")
		writeReceived(w)
	}
}

func writeReceived(w http.ResponseWriter) {
	writeCarrierJSON(w, http.StatusOK, map[string]any{"received": true})
}

func writeCarrierError(w http.ResponseWriter, status int, message string, err error) {
	details := ""
	if err != nil && !errors.Is(err, context.Canceled) {
		details = err.Error()
	}
	writeCarrierJSON(w, status, map[string]any{"error": message, "details": details})
}

func writeCarrierJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode webhook response","err":"%v"}`, err)
	}
}
