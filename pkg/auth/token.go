package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	EntityUser   = "USER"
	EntityDevice = "DEVICE"

	issuer = "shyra-hub"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity is the decoded principal behind a credential.
type Identity struct {
	Id         string `json:"id"`
	EntityType string `json:"entity_type"`
	Role       string `json:"role"`
	DeviceType string `json:"device_type,omitempty"`
}

// Claims defines the JWT payload. Tokens minted for the web app carry only
// user_id, so a missing entity_type means USER.
type Claims struct {
	EntityID   string `json:"entity_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	Role       string `json:"role,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	jwtlib.RegisteredClaims
}

// TokenVerifier turns a bearer credential into an Identity.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

type JWTManager struct {
	secret []byte
}

func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{secret: []byte(secret)}
}

// Issue signs a token for identity valid for ttl.
func (m *JWTManager) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		EntityID:   identity.Id,
		EntityType: identity.EntityType,
		Role:       identity.Role,
		DeviceType: identity.DeviceType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.Id,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify validates signature and expiry and extracts the identity.
func (m *JWTManager) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	id := claims.EntityID
	if id == "" {
		id = claims.UserID
	}
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	entityType := strings.ToUpper(claims.EntityType)
	switch entityType {
	case "":
		entityType = EntityUser
	case EntityUser, EntityDevice:
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidToken, claims.EntityType)
	}

	identity := &Identity{
		Id:         id,
		EntityType: entityType,
		Role:       claims.Role,
	}
	if entityType == EntityDevice {
		identity.DeviceType = claims.DeviceType
	}
	return identity, nil
}

// BearerToken strips the "Bearer " prefix from an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
