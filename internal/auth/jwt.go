package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatewaylabs/payment-gateway/internal/domain"
)

const issuer = "payment-gateway"

// Principal is the authenticated party a verified token resolves to.
// The role travels in the token so route guards never need a user
// lookup to tell clients and merchants apart.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   domain.Role
}

type gatewayClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Manager issues and verifies the gateway's bearer tokens. HS256 only;
// the signing method and issuer are pinned at verification time.
type Manager struct {
	secret []byte
	expiry time.Duration
}

func NewManager(secret string, expiry time.Duration) *Manager {
	return &Manager{secret: []byte(secret), expiry: expiry}
}

func (m *Manager) Issue(user *domain.User) (string, error) {
	now := time.Now()
	claims := gatewayClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		Email: user.Email,
		Role:  string(user.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("Issue: %w", err)
	}
	return signed, nil
}

func (m *Manager) Verify(token string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &gatewayClaims{},
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	claims, ok := parsed.Claims.(*gatewayClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("Verify: unexpected claims type")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("Verify: subject: %w", err)
	}

	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("Verify: unknown role %q", claims.Role)
	}

	return &Principal{UserID: userID, Email: claims.Email, Role: role}, nil
}
