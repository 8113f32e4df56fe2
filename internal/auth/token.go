package auth

import (
	"context"
	"fmt"

	"github.com/amoylab/mdprovider/internal/auth/jwt"
)

// JWTAuthenticator accepts a signed AuthenticationToken element.
type JWTAuthenticator struct {
	svc *jwt.Service
}

// Authenticate implements Authenticator.Authenticate
func (a *JWTAuthenticator) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if creds.Token == "" {
		return "", ErrMissingCredentials
	}
	claims, err := a.svc.ValidateToken(creds.Token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if creds.User != "" && claims.Username != creds.User {
		return "", fmt.Errorf("%w: token issued to another user", ErrInvalidCredentials)
	}
	return claims.Username, nil
}
