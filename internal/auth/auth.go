// Package auth decides whether a login request is let in.
package auth

import (
	"context"
	"errors"

	"github.com/amoylab/mdprovider/pkg/omm"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownUser        = errors.New("unknown user")
)

// Credentials are what a login request carries.
type Credentials struct {
	// User is the login name from the request attrib.
	User          string
	ApplicationID string
	Position      string
	Password      string
	Token         string
}

// Authenticator validates login credentials. On success it returns the user
// name the session is logged in as.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (string, error)
}

// CredentialsFromAttrib pulls the credential elements out of a login attrib.
func CredentialsFromAttrib(a *omm.Attrib) Credentials {
	if a == nil {
		return Credentials{}
	}
	creds := Credentials{User: a.Name}
	creds.ApplicationID, _ = a.Elements.GetString(omm.ElemApplicationID)
	creds.Position, _ = a.Elements.GetString(omm.ElemPosition)
	creds.Password, _ = a.Elements.GetString(omm.ElemPassword)
	creds.Token, _ = a.Elements.GetString(omm.ElemAuthenticationToken)
	return creds
}

// NoopAuthenticator lets every login in.
type NoopAuthenticator struct{}

// Authenticate implements Authenticator.Authenticate
func (NoopAuthenticator) Authenticate(_ context.Context, creds Credentials) (string, error) {
	return creds.User, nil
}
