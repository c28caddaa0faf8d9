package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

type contextKey string

const ClinicianKey contextKey = "clinician"

// ClinicianAuth resolves the bearer key to the clinician it belongs to.
func ClinicianAuth(keys map[string]analysis.Clinician) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// constant-time comparison
			var (
				found     bool
				clinician analysis.Clinician
			)
			for key, c := range keys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					found = true
					clinician = c
				}
			}
			if !found {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := WithClinician(r.Context(), clinician)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithClinician(ctx context.Context, c analysis.Clinician) context.Context {
	if slot, ok := ctx.Value(slotKey).(*clinicianSlot); ok {
		slot.id = c.ID
	}
	return context.WithValue(ctx, ClinicianKey, c)
}

// ClinicianFromContext returns the authenticated clinician.
func ClinicianFromContext(ctx context.Context) (analysis.Clinician, bool) {
	c, ok := ctx.Value(ClinicianKey).(analysis.Clinician)
	return c, ok
}
