package auth

import (
	"context"
	"testing"
	"time"

	"github.com/amoylab/mdprovider/internal/auth/jwt"
	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/pkg/omm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestCredentialsFromAttrib(t *testing.T) {
	assert.Equal(t, Credentials{}, CredentialsFromAttrib(nil))

	a := &omm.Attrib{Name: "alice"}
	a.Elements = a.Elements.
		Set(omm.ElemApplicationID, "256").
		Set(omm.ElemPosition, "127.0.0.1/net").
		Set(omm.ElemPassword, "pw").
		Set(omm.ElemAuthenticationToken, "tok")
	assert.Equal(t, Credentials{
		User:          "alice",
		ApplicationID: "256",
		Position:      "127.0.0.1/net",
		Password:      "pw",
		Token:         "tok",
	}, CredentialsFromAttrib(a))
}

func TestNoopAuthenticator(t *testing.T) {
	user, err := NoopAuthenticator{}.Authenticate(context.Background(), Credentials{User: "anyone"})
	require.NoError(t, err)
	assert.Equal(t, "anyone", user)
}

func TestStaticAuthenticator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a := NewStaticAuthenticator([]config.UserConfig{{Username: "alice", Password: string(hash)}})
	ctx := context.Background()

	user, err := a.Authenticate(ctx, Credentials{User: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	_, err = a.Authenticate(ctx, Credentials{User: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, Credentials{User: "bob", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrUnknownUser)
	_, err = a.Authenticate(ctx, Credentials{User: "alice"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestJWTAuthenticator(t *testing.T) {
	a, err := NewAuthenticator(zap.NewNop(), &config.LoginConfig{
		Auth: cnst.AuthJWT,
		JWT:  config.JWTConfig{SecretKey: testSecret, Issuer: "mdprovider"},
	})
	require.NoError(t, err)

	svc, err := jwt.NewService(jwt.Config{SecretKey: testSecret, Issuer: "mdprovider"})
	require.NoError(t, err)
	tok, err := svc.GenerateToken("carol", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := a.Authenticate(ctx, Credentials{Token: tok})
	require.NoError(t, err)
	assert.Equal(t, "carol", user)

	_, err = a.Authenticate(ctx, Credentials{User: "dave", Token: tok})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Authenticate(ctx, Credentials{User: "carol"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = a.Authenticate(ctx, Credentials{Token: "garbage"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestNewAuthenticator(t *testing.T) {
	a, err := NewAuthenticator(zap.NewNop(), &config.LoginConfig{Auth: cnst.AuthNone})
	require.NoError(t, err)
	assert.IsType(t, NoopAuthenticator{}, a)

	a, err = NewAuthenticator(zap.NewNop(), &config.LoginConfig{Auth: cnst.AuthStatic})
	require.NoError(t, err)
	assert.IsType(t, &StaticAuthenticator{}, a)

	_, err = NewAuthenticator(zap.NewNop(), &config.LoginConfig{Auth: cnst.AuthJWT, JWT: config.JWTConfig{SecretKey: "short"}})
	assert.ErrorIs(t, err, jwt.ErrWeakSecretKey)

	_, err = NewAuthenticator(zap.NewNop(), &config.LoginConfig{Auth: "kerberos"})
	assert.ErrorIs(t, err, cnst.ErrInvalidConfig)
}
