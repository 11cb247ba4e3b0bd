package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTTL bounds how long a checkout session id can be redeemed after
// the payment redirect.
const SessionTTL = 24 * time.Hour

// SessionClaims correlate a checkout attempt with the guest and the orders
// it pays for.
type SessionClaims struct {
	TransactionReference string      `json:"txn"`
	GuestID              string      `json:"guest_id"`
	OrderIDs             []uuid.UUID `json:"order_ids"`
	jwt.RegisteredClaims
}

// Session holds the decoded content of a checkout session id.
type Session struct {
	ID                   string
	TransactionReference string
	GuestID              string
	OrderIDs             []uuid.UUID
	ExpiresAt            time.Time
}

// SessionSigner issues and verifies checkout session ids with an HMAC
// secret.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionSigner(secret string) *SessionSigner {
	return &SessionSigner{secret: []byte(secret), ttl: SessionTTL, now: time.Now}
}

func (s *SessionSigner) Sign(txnRef, guestID string, orderIDs []uuid.UUID) (string, error) {
	now := s.now()
	claims := SessionClaims{
		TransactionReference: txnRef,
		GuestID:              guestID,
		OrderIDs:             orderIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   guestID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *SessionSigner) Verify(sessionID string) (*Session, error) {
	token, err := jwt.ParseWithClaims(sessionID, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session")
	}
	sess := &Session{
		ID:                   claims.ID,
		TransactionReference: claims.TransactionReference,
		GuestID:              claims.GuestID,
		OrderIDs:             claims.OrderIDs,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}
