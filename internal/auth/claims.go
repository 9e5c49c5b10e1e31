package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the authorisation tier carried in a token.
type Role string

// Roles.
const (
	RoleViewer     Role = "viewer"
	RoleController Role = "controller"
)

// issuer is set on every token the bridge signs.
const issuer = "dyson360-bridge"

// defaultTTL applies when the configured TTL is not positive.
const defaultTTL = 15 * time.Minute

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleViewer || r == RoleController
}

// CanControl reports whether the role may send commands to the robot.
func (r Role) CanControl() bool {
	return r == RoleController
}

// Claims extends the registered JWT claims with the bridge role.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// GenerateAccessToken signs a token for subject.
//
// Parameters:
//   - subject: Who the token is for (free text, e.g. "home-assistant")
//   - role: RoleViewer or RoleController
//   - secret: HMAC secret; must not be empty
//   - ttl: Lifetime; non-positive selects 15 minutes
//
// Returns:
//   - string: Signed compact JWT
//   - error: ErrSecretMissing, or an invalid subject/role, or a signing failure
func GenerateAccessToken(subject string, role Role, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrSecretMissing
	}
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if !role.IsValid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, expiry and issuer, and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}
