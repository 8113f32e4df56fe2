package auth

import (
	"context"
	"fmt"

	"github.com/amoylab/mdprovider/internal/common/config"
	"golang.org/x/crypto/bcrypt"
)

// StaticAuthenticator checks a user name and password against bcrypt hashes
// from the configuration.
type StaticAuthenticator struct {
	users map[string][]byte
}

func NewStaticAuthenticator(users []config.UserConfig) *StaticAuthenticator {
	a := &StaticAuthenticator{users: make(map[string][]byte, len(users))}
	for _, u := range users {
		a.users[u.Username] = []byte(u.Password)
	}
	return a
}

// Authenticate implements Authenticator.Authenticate
func (a *StaticAuthenticator) Authenticate(_ context.Context, creds Credentials) (string, error) {
	if creds.User == "" || creds.Password == "" {
		return "", ErrMissingCredentials
	}
	hash, ok := a.users[creds.User]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownUser, creds.User)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return creds.User, nil
}
