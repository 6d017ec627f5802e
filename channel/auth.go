package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"i4.energy/across/smsbridge/telephony"
)

var ErrUnauthenticated = errors.New("channel: caller not authenticated")

// Claims are the JWT claims a caller presents. Permissions become the
// caller's grants for the duration of the call.
type Claims struct {
	jwt.RegisteredClaims
	Permissions []string `json:"permissions,omitempty"`
}

// Authenticator verifies HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify parses token and returns its claims.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return claims, nil
}

// Sign issues a token for claims. Used by operators and tests to mint
// caller tokens.
func (a *Authenticator) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authorize verifies token and attaches the caller's permissions to ctx.
func (a *Authenticator) Authorize(ctx context.Context, token string) (context.Context, error) {
	claims, err := a.Verify(token)
	if err != nil {
		return ctx, err
	}
	perms := make([]telephony.Permission, 0, len(claims.Permissions))
	for _, p := range claims.Permissions {
		perms = append(perms, telephony.Permission(p))
	}
	return telephony.WithGrantedPermissions(ctx, perms), nil
}

// bearerToken extracts the token of an "Authorization: Bearer" header value.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
