package middleware

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

type contextKey string

const (
	guestKey contextKey = "guest_id"
	userKey  contextKey = "user_id"
)

const maxGuestIDLength = 128

// RequireGuest reads the guest identity set by the upstream gateway. The
// engine trusts these headers; it never issues or validates identity tokens.
func RequireGuest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guestID := strings.TrimSpace(r.Header.Get("X-Guest-ID"))
		if guestID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing X-Guest-ID header"})
			return
		}
		if len(guestID) > maxGuestIDLength {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid X-Guest-ID header"})
			return
		}

		ctx := context.WithValue(r.Context(), guestKey, guestID)
		if userID := strings.TrimSpace(r.Header.Get("X-User-ID")); userID != "" {
			ctx = context.WithValue(ctx, userKey, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GuestFromContext returns the guest id stored by RequireGuest.
func GuestFromContext(ctx context.Context) string {
	id, _ := ctx.Value(guestKey).(string)
	return id
}

// UserFromContext returns the optional logged-in user id.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

// maxSignedBody bounds the body read for signature checks.
const maxSignedBody = 1 << 20

// VerifySignature rejects requests whose X-Signature header is not the hex
// HMAC-SHA256 of the raw body under secret. The body is restored for the
// next handler.
func VerifySignature(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
				return
			}
			r.Body.Close()

			got, err := hex.DecodeString(r.Header.Get("X-Signature"))
			if err != nil || !hmac.Equal(got, Sign(secret, body)) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// Sign computes the HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
