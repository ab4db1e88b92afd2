// Package authz evaluates who may invoke which pipeline operations.
package authz

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Role is a caller's access level.
type Role string

// Caller roles.
const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleOperator  Role = "operator"
)

// Operation is a guarded action category.
type Operation string

// Guarded operations.
const (
	OpRunPipeline Operation = "pipeline:run"
	OpModerate    Operation = "facts:moderate"
)

// rolePermissions maps each role to the operations it may invoke.
var rolePermissions = map[Role]map[Operation]bool{
	RoleAdmin:     {OpRunPipeline: true, OpModerate: true},
	RoleModerator: {OpModerate: true},
	RoleOperator:  {OpRunPipeline: true},
}

// Claims are the access-token claims carried by pipeline callers.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Policy validates bearer tokens and evaluates role permissions. A shared
// scheduler token lets the cron caller hit the refresh endpoint without a JWT.
type Policy struct {
	signingKey     []byte
	issuer         string
	schedulerToken string
}

// NewPolicy creates a policy evaluator.
func NewPolicy(signingKey, issuer, schedulerToken string) *Policy {
	return &Policy{
		signingKey:     []byte(signingKey),
		issuer:         issuer,
		schedulerToken: schedulerToken,
	}
}

// IssueToken mints an HS256 access token for the subject with the given role.
func (p *Policy) IssueToken(subject string, role Role, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    p.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", eris.Wrap(err, "authz: sign token")
	}
	return signed, nil
}

// Validate parses and verifies a bearer token, returning its claims.
func (p *Policy) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return p.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, eris.New("authz: token has expired")
		}
		return nil, eris.Wrap(err, "authz: invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, eris.New("authz: invalid token claims")
	}
	if p.issuer != "" && claims.Issuer != p.issuer {
		return nil, eris.New("authz: unexpected token issuer")
	}
	return claims, nil
}

// Allowed reports whether the role may invoke the operation.
func Allowed(role Role, op Operation) bool {
	return rolePermissions[role][op]
}

// AllowScheduler checks the shared scheduler token in constant time. An empty
// configured token disables the bypass entirely.
func (p *Policy) AllowScheduler(header string) bool {
	if p.schedulerToken == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(p.schedulerToken), []byte(header)) == 1
}
