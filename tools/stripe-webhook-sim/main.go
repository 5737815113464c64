package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "gateway base url")
		evtType  = flag.String("type", getenv("STRIPE_EVENT_TYPE", "payment_intent.succeeded"), "stripe event type")
		intentID = flag.String("intent-id", getenv("INTENT_ID", ""), "payment intent id")
		amount   = flag.Int64("amount", 2500, "amount in minor units")
		currency = flag.String("currency", getenv("PAYMENTS_CURRENCY", "usd"), "currency")
		secret   = flag.String("secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*intentID) == "" {
		fatal("INTENT_ID is required")
	}

	now := time.Now().UTC()
	eventID := fmt.Sprintf("evt_test_%d", now.UnixNano())

	payload, err := buildEventJSON(eventID, *evtType, now, *intentID, *amount, *currency)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/billing/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Printf("event=%s status=%d body=%s\n", eventID, resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildEventJSON(eventID, eventType string, t time.Time, intentID string, amount int64, currency string) ([]byte, error) {
	var object map[string]any
	switch eventType {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		st := "succeeded"
		if eventType == "payment_intent.payment_failed" {
			st = "requires_payment_method"
		}
		object = map[string]any{
			"id":       intentID,
			"object":   "payment_intent",
			"amount":   amount,
			"currency": currency,
			"status":   st,
		}
	case "charge.refunded":
		object = map[string]any{
			"id":              "ch_test_" + eventID,
			"object":          "charge",
			"amount":          amount,
			"amount_refunded": amount,
			"currency":        currency,
			"refunded":        true,
			"payment_intent":  intentID,
			"refunds": map[string]any{
				"object": "list",
				"data": []map[string]any{{
					"id":       "re_test_" + eventID,
					"object":   "refund",
					"amount":   amount,
					"currency": currency,
					"status":   "succeeded",
				}},
			},
		}
	default:
		return nil, fmt.Errorf("unsupported event type %q", eventType)
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": object,
		},
	})
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
