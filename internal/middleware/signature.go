package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const SignatureHeader = "X-Esign-Signature"

const rawBodyContextKey contextKey = "esignRawBody"

// GetRawBody returns the verified raw webhook body captured by the
// signature middleware.
func GetRawBody(ctx context.Context) []byte {
	if body, ok := ctx.Value(rawBodyContextKey).([]byte); ok {
		return body
	}
	return nil
}

// WebhookVerifier verifies an HMAC signature over exact raw bytes.
type WebhookVerifier interface {
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool
}

// ESignSignatureMiddleware authenticates inbound provider webhooks before
// any parsing or database access. The raw body is captured once, verified
// as-is (never re-serialized), and passed down via context so the handler
// parses the same bytes that were verified.
type ESignSignatureMiddleware struct {
	verifier   WebhookVerifier
	configured bool
}

func NewESignSignatureMiddleware(verifier WebhookVerifier, configured bool) *ESignSignatureMiddleware {
	return &ESignSignatureMiddleware{verifier: verifier, configured: configured}
}

func (m *ESignSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.configured {
			log.Warn().Msg("esign signature verification bypassed: ESIGN_WEBHOOK_SECRET is not configured")
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "Failed to read request body",
				})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), rawBodyContextKey, body)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		signature := r.Header.Get(SignatureHeader)
		if signature == "" {
			log.Warn().Msg("esign signature middleware: missing signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("esign signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if !m.verifier.VerifyWebhookSignature(body, signature) {
			// No deal lookup happens on failure: the endpoint must not act
			// as an oracle for guessing invitation ids.
			log.Warn().Msg("esign signature middleware: invalid signature")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		ctx := context.WithValue(r.Context(), rawBodyContextKey, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
